package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/naf-analyzer/internal/model"
	"github.com/sells-group/naf-analyzer/internal/store"
)

var (
	resultsLabel  int
	resultsSource string
	resultsRef    string
	resultsFailed bool
	resultsLimit  int
	resultsOffset int
	resultsFormat string
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List stored classifications, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("persist"); err != nil {
			return err
		}
		filter, err := resultsFilter(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		results, err := st.ListClassifications(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "results: list")
		}
		return writeClassifications(os.Stdout, resultsFormat, results)
	},
}

func init() {
	resultsCmd.Flags().IntVar(&resultsLabel, "label", -1, "only this label (0 or 1)")
	resultsCmd.Flags().StringVar(&resultsSource, "source", "", "only this decision source (rule or model)")
	resultsCmd.Flags().StringVar(&resultsRef, "ref", "", "only this profile reference")
	resultsCmd.Flags().BoolVar(&resultsFailed, "failed", false, "only records that failed (false lists only successes)")
	resultsCmd.Flags().IntVar(&resultsLimit, "limit", store.DefaultListLimit, "max rows")
	resultsCmd.Flags().IntVar(&resultsOffset, "offset", 0, "rows to skip")
	resultsCmd.Flags().StringVar(&resultsFormat, "format", "json", "output format: json or csv")
	rootCmd.AddCommand(resultsCmd)
}

// resultsFilter builds the store filter from the flags that were set.
func resultsFilter(cmd *cobra.Command) (store.Filter, error) {
	f := store.Filter{Ref: resultsRef, Limit: resultsLimit, Offset: resultsOffset}
	switch resultsLabel {
	case -1:
	case 0, 1:
		label := resultsLabel
		f.Label = &label
	default:
		return f, eris.Errorf("results: --label must be 0 or 1, got %d", resultsLabel)
	}
	switch src := model.DecisionSource(resultsSource); src {
	case "", model.SourceRule, model.SourceModel:
		f.Source = src
	default:
		return f, eris.Errorf("results: unknown --source %q", resultsSource)
	}
	if cmd.Flags().Changed("failed") {
		failed := resultsFailed
		f.Failed = &failed
	}
	return f, nil
}

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/naf-analyzer/internal/fetcher"
	"github.com/sells-group/naf-analyzer/internal/model"
)

var (
	classifyInput       string
	classifyFromDB      bool
	classifyLimit       int
	classifyOffset      int
	classifyFormat      string
	classifyOutput      string
	classifyPersist     bool
	classifyOffline     bool
	classifyConcurrency int
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a batch of profiles",
	Long: `Reads profiles from a CSV, XLSX or JSON file, or from the crawler table,
and writes one classification per row.

Examples:
  # Classify a spreadsheet, CSV to stdout
  naf-analyzer classify --input profiles.xlsx --format csv

  # Classify crawled profiles and store the results
  naf-analyzer classify --from-db --limit 500 --persist

  # No network: geocode from the configured place list only
  naf-analyzer classify --input profiles.csv --offline`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if (classifyInput == "") == !classifyFromDB {
			return eris.New("classify: exactly one of --input or --from-db is required")
		}
		if classifyFormat != "json" && classifyFormat != "csv" {
			return eris.Errorf("classify: unsupported format %q (json or csv)", classifyFormat)
		}
		mode := "classify"
		if classifyPersist {
			mode = "persist"
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rs, err := loadProfiles(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("classify: profiles loaded", zap.Int("records", rs.Len()))

		env, err := initClassifier(ctx, envOptions{Offline: classifyOffline})
		if err != nil {
			return eris.Wrap(err, "classify: init")
		}
		defer env.Close()

		concurrency := classifyConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.Concurrency
		}
		results, _ := env.Classifier.ClassifyBatch(ctx, rs, concurrency)

		stats := env.Geocoder.Stats()
		zap.L().Info("classify: geocode cache",
			zap.Int("entries", stats.Entries),
			zap.Int64("hits", stats.Hits),
			zap.Int64("provider_calls", stats.ProviderCalls),
			zap.Int64("unresolved", stats.Unresolved),
		)

		if classifyPersist {
			if err := persistResults(ctx, results); err != nil {
				return err
			}
		}

		w, closeOut, err := openOutput(classifyOutput)
		if err != nil {
			return err
		}
		if err := writeClassifications(w, classifyFormat, results); err != nil {
			_ = closeOut()
			return err
		}
		return closeOut()
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyInput, "input", "", "path to a .csv, .xlsx or .json batch")
	classifyCmd.Flags().BoolVar(&classifyFromDB, "from-db", false, "read profiles from the crawler_data table")
	classifyCmd.Flags().IntVar(&classifyLimit, "limit", 1000, "max crawler profiles to read (with --from-db)")
	classifyCmd.Flags().IntVar(&classifyOffset, "offset", 0, "crawler profiles to skip (with --from-db)")
	classifyCmd.Flags().StringVar(&classifyFormat, "format", "json", "output format: json or csv")
	classifyCmd.Flags().StringVar(&classifyOutput, "output", "", "write results to file (default: stdout)")
	classifyCmd.Flags().BoolVar(&classifyPersist, "persist", false, "save results to the configured store")
	classifyCmd.Flags().BoolVar(&classifyOffline, "offline", false, "geocode from the static place list only")
	classifyCmd.Flags().IntVar(&classifyConcurrency, "concurrency", 0, "max records classified concurrently (default from config)")
	rootCmd.AddCommand(classifyCmd)
}

func loadProfiles(ctx context.Context) (model.RecordSet, error) {
	if classifyInput != "" {
		rs, err := fetcher.ReadRecordSet(ctx, classifyInput)
		if err != nil {
			return model.RecordSet{}, eris.Wrap(err, "classify: read input")
		}
		return rs, nil
	}

	src, err := initProfileSource(ctx)
	if err != nil {
		return model.RecordSet{}, err
	}
	defer src.Close() //nolint:errcheck
	rs, err := src.FetchProfiles(ctx, classifyLimit, classifyOffset)
	if err != nil {
		return model.RecordSet{}, eris.Wrap(err, "classify: fetch crawler profiles")
	}
	return rs, nil
}

func persistResults(ctx context.Context, results []model.Classification) error {
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	n, err := st.SaveClassifications(ctx, results)
	if err != nil {
		return eris.Wrap(err, "classify: save results")
	}
	zap.L().Info("classify: results saved",
		zap.String("driver", cfg.Store.Driver),
		zap.Int("rows", n),
	)
	return nil
}

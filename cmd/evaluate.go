package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/naf-analyzer/internal/evaluate"
	"github.com/sells-group/naf-analyzer/internal/inference"
	"github.com/sells-group/naf-analyzer/internal/model"
)

var (
	evaluateInput       string
	evaluateFormat      string
	evaluateOffline     bool
	evaluateConcurrency int
)

// evaluation is the JSON form of the evaluate output.
type evaluation struct {
	Metrics   evaluate.Metrics `json:"metrics"`
	RuleCount int              `json:"rule_decisions"`
	Samples   int              `json:"samples"`
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score the configured policy against a labelled file",
	Long: `Classifies a labelled file with the configured model and threshold and
prints a classification report. Precision, recall and F1 reflect the full
policy including the definite-membership rule; ROC AUC ranks the raw model
probabilities.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if evaluateFormat != "text" && evaluateFormat != "json" {
			return eris.Errorf("evaluate: unsupported format %q (text or json)", evaluateFormat)
		}
		if err := cfg.Validate("evaluate"); err != nil {
			return err
		}
		ctx := cmd.Context()

		env, err := initClassifier(ctx, envOptions{Offline: evaluateOffline})
		if err != nil {
			return eris.Wrap(err, "evaluate: init")
		}
		defer env.Close()

		concurrency := evaluateConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.Concurrency
		}
		X, y, err := loadLabelled(ctx, env.Engineer, evaluateInput, concurrency)
		if err != nil {
			return err
		}

		out, err := evaluatePolicy(env.Classifier.Policy, X, y)
		if err != nil {
			return err
		}
		zap.L().Info("evaluate: done",
			zap.Int("samples", out.Samples),
			zap.Int("rule_decisions", out.RuleCount),
			zap.Float64("accuracy", out.Metrics.Accuracy),
		)

		if evaluateFormat == "json" {
			return writeJSON(os.Stdout, out)
		}
		fmt.Fprint(os.Stdout, out.Metrics.Format())
		fmt.Fprintf(os.Stdout, "rule decisions: %d of %d\n", out.RuleCount, out.Samples)
		return nil
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateInput, "input", "", "labelled file (.csv, .xlsx or .json, required)")
	evaluateCmd.Flags().StringVar(&evaluateFormat, "format", "text", "output format: text or json")
	evaluateCmd.Flags().BoolVar(&evaluateOffline, "offline", false, "geocode from the static place list only")
	evaluateCmd.Flags().IntVar(&evaluateConcurrency, "concurrency", 0, "max records featurized concurrently (default from config)")
	_ = evaluateCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(evaluateCmd)
}

// evaluatePolicy decides every vector and reports the policy's labels
// against y, with AUC over the scorer's probabilities.
func evaluatePolicy(p inference.Policy, X []model.FeatureVector, y []int) (evaluation, error) {
	pred := make([]int, len(X))
	rules := 0
	for i, v := range X {
		d, err := p.Decide(v)
		if err != nil {
			return evaluation{}, eris.Wrapf(err, "evaluate: row %d", i)
		}
		pred[i] = d.Label
		if d.Source == model.SourceRule {
			rules++
		}
	}
	scores, err := probabilities(p.Scorer, X)
	if err != nil {
		return evaluation{}, err
	}

	m, err := evaluate.Report(y, pred, scores)
	if err != nil {
		return evaluation{}, eris.Wrap(err, "evaluate: report")
	}
	thr := p.Threshold
	m.Threshold = &thr
	return evaluation{Metrics: m, RuleCount: rules, Samples: len(X)}, nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/naf-analyzer/internal/classifier"
	"github.com/sells-group/naf-analyzer/internal/evaluate"
	"github.com/sells-group/naf-analyzer/internal/features"
	"github.com/sells-group/naf-analyzer/internal/fetcher"
	"github.com/sells-group/naf-analyzer/internal/inference"
	"github.com/sells-group/naf-analyzer/internal/model"
	"github.com/sells-group/naf-analyzer/internal/schema"
)

var (
	trainInput       string
	trainValidation  string
	trainOutput      string
	trainC           float64
	trainMaxIter     int
	trainUnweighted  bool
	trainOffline     bool
	trainConcurrency int
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit the logistic model and tune its threshold",
	Long: `Fits an L2-regularized logistic regression with balanced class weights on
a labelled file, picks the decision threshold that maximizes F1 on the
validation file, and writes the model artifact.

Examples:
  naf-analyzer train --input train.csv --validation val.csv --output model.json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("train"); err != nil {
			return err
		}
		ctx := cmd.Context()

		env, err := initFeatures(ctx, envOptions{Offline: trainOffline})
		if err != nil {
			return eris.Wrap(err, "train: init")
		}
		defer env.Close()

		concurrency := trainConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.Concurrency
		}

		X, y, err := loadLabelled(ctx, env.Engineer, trainInput, concurrency)
		if err != nil {
			return err
		}
		Xv, yv := X, y
		if trainValidation != "" {
			Xv, yv, err = loadLabelled(ctx, env.Engineer, trainValidation, concurrency)
			if err != nil {
				return err
			}
		} else {
			zap.L().Warn("train: no validation file, tuning the threshold on the training set")
		}

		opts := classifier.DefaultTrainOptions()
		opts.Unweighted = trainUnweighted
		if trainC > 0 {
			opts.C = trainC
		} else if cfg.Model.C > 0 {
			opts.C = cfg.Model.C
		}
		if trainMaxIter > 0 {
			opts.MaxIter = trainMaxIter
		} else if cfg.Model.MaxIter > 0 {
			opts.MaxIter = cfg.Model.MaxIter
		}

		m, trainReport, err := classifier.Train(X, y, opts)
		if err != nil {
			return eris.Wrap(err, "train: fit")
		}
		if !trainReport.Converged {
			zap.L().Warn("train: solver did not converge", zap.Int("iterations", trainReport.Iterations))
		}

		scores, err := probabilities(m, Xv)
		if err != nil {
			return err
		}
		best, err := evaluate.BestF1Threshold(yv, scores)
		if err != nil {
			return eris.Wrap(err, "train: tune threshold")
		}
		report, err := evaluate.Report(yv, evaluate.Predict(scores, best.Threshold), scores)
		if err != nil {
			return eris.Wrap(err, "train: validation report")
		}
		report.Threshold = &best.Threshold

		a := classifier.NewArtifact(m, best.Threshold)
		a.C = opts.C
		a.Report = &trainReport
		a.Metrics = map[string]float64{
			"precision": best.Precision,
			"recall":    best.Recall,
			"f1":        best.F1,
			"accuracy":  report.Accuracy,
		}
		if report.AUC != nil {
			a.Metrics["auc"] = *report.AUC
		}
		if err := classifier.SaveArtifact(trainOutput, a); err != nil {
			return err
		}

		zap.L().Info("train: artifact written",
			zap.String("path", trainOutput),
			zap.Int("samples", trainReport.Samples),
			zap.Int("positives", trainReport.Positives),
			zap.Float64("threshold", best.Threshold),
			zap.Float64("f1", best.F1),
		)

		printCoefficients(os.Stdout, m)
		fmt.Fprint(os.Stdout, "\n", report.Format())
		return nil
	},
}

func init() {
	trainCmd.Flags().StringVar(&trainInput, "input", "", "labelled training file (.csv, .xlsx or .json, required)")
	trainCmd.Flags().StringVar(&trainValidation, "validation", "", "labelled validation file for threshold tuning")
	trainCmd.Flags().StringVar(&trainOutput, "output", "model.json", "where to write the model artifact")
	trainCmd.Flags().Float64Var(&trainC, "c", 0, "inverse regularization strength (default from config)")
	trainCmd.Flags().IntVar(&trainMaxIter, "max-iter", 0, "max solver iterations (default from config)")
	trainCmd.Flags().BoolVar(&trainUnweighted, "unweighted", false, "disable balanced class weights")
	trainCmd.Flags().BoolVar(&trainOffline, "offline", false, "geocode from the static place list only")
	trainCmd.Flags().IntVar(&trainConcurrency, "concurrency", 0, "max records featurized concurrently (default from config)")
	_ = trainCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(trainCmd)
}

// loadLabelled reads a labelled file and featurizes it.
func loadLabelled(ctx context.Context, eng *features.Engineer, path string, concurrency int) ([]model.FeatureVector, []int, error) {
	rs, err := fetcher.ReadRecordSet(ctx, path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "read %s", path)
	}
	norm := schema.Normalize(rs)
	norm.LogUnrecognized()

	y, err := inference.Labels(norm.Records)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "labels of %s", path)
	}
	X := eng.Vectors(ctx, norm.Records.Rows, concurrency)
	if err := ctx.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "featurize")
	}
	return X, y, nil
}

func probabilities(s classifier.Scorer, X []model.FeatureVector) ([]float64, error) {
	out := make([]float64, len(X))
	for i, v := range X {
		p, err := s.Probability(v)
		if err != nil {
			return nil, eris.Wrapf(err, "score row %d", i)
		}
		out[i] = p
	}
	return out, nil
}

func printCoefficients(w io.Writer, m *classifier.Logistic) {
	fmt.Fprintf(w, "%-22s %10s\n", "feature", "weight")
	for _, c := range m.Coefficients() {
		fmt.Fprintf(w, "%-22s %10.4f\n", c.Feature, c.Weight)
	}
	fmt.Fprintf(w, "%-22s %10.4f\n", "(bias)", m.Bias)
}

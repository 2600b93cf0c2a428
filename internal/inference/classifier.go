package inference

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/naf-analyzer/internal/features"
	"github.com/sells-group/naf-analyzer/internal/metrics"
	"github.com/sells-group/naf-analyzer/internal/model"
	"github.com/sells-group/naf-analyzer/internal/schema"
)

// Classifier runs the feature engineer and the policy over profiles.
type Classifier struct {
	Engineer *features.Engineer
	Policy   Policy
	Metrics  *metrics.Metrics // optional
}

// Classify classifies one profile. Failures are reported on the result's
// Error field.
func (c *Classifier) Classify(ctx context.Context, p model.Profile) model.Classification {
	out := c.classify(ctx, p)
	c.Metrics.ObserveDecision(out)
	return out
}

func (c *Classifier) classify(ctx context.Context, p model.Profile) model.Classification {
	out := model.Classification{
		ID:        uuid.NewString(),
		Ref:       p.Ref,
		CreatedAt: time.Now().UTC(),
	}
	if err := ctx.Err(); err != nil {
		out.Error = err.Error()
		return out
	}

	out.Features = c.Engineer.Vector(ctx, p)
	d, err := c.Policy.Decide(out.Features)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Label = d.Label
	out.Confidence = d.Confidence
	out.Source = d.Source
	if d.Source == model.SourceModel {
		prob := d.Confidence
		out.Probability = &prob
	}
	return out
}

// ClassifyBatch normalizes rs and classifies every row with at most
// concurrency workers (runtime.NumCPU() when <= 0). Results are in input
// order; one bad record never aborts the batch.
func (c *Classifier) ClassifyBatch(ctx context.Context, rs model.RecordSet, concurrency int) ([]model.Classification, schema.Result) {
	start := time.Now()
	norm := schema.Normalize(rs)
	norm.LogUnrecognized()

	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	results := make([]model.Classification, norm.Records.Len())
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, rec := range norm.Records.Rows {
		g.Go(func() error {
			r := c.Classify(gCtx, model.ProfileFromRecord(rec))
			r.Row = i
			if r.Failed() {
				zap.L().Warn("inference: record failed",
					zap.Int("row", i),
					zap.String("ref", r.Ref),
					zap.String("error", r.Error),
				)
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	c.Metrics.ObserveBatch(time.Since(start))
	zap.L().Info("inference: batch classified",
		zap.Int("records", len(results)),
		zap.Int("positives", countPositives(results)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results, norm
}

func countPositives(results []model.Classification) int {
	n := 0
	for _, r := range results {
		if !r.Failed() && r.Label == 1 {
			n++
		}
	}
	return n
}

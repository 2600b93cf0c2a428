package features

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/naf-analyzer/internal/model"
)

// Vectors computes the feature vectors of normalized records with at most
// concurrency workers (runtime.NumCPU() when <= 0). Output is in input order.
func (e *Engineer) Vectors(ctx context.Context, records []model.Record, concurrency int) []model.FeatureVector {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	out := make([]model.FeatureVector, len(records))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, rec := range records {
		g.Go(func() error {
			out[i] = e.Vector(ctx, model.ProfileFromRecord(rec))
			return nil
		})
	}
	_ = g.Wait()
	return out
}

package sim

import (
	"context"

	"github.com/san-kum/rkode/internal/dynamo"
	"golang.org/x/sync/errgroup"
)

// Ensemble integrates independent problems concurrently with one Solver.
// Every run owns its own stepper, controller and trajectory.
type Ensemble[P any] struct {
	solver  *Solver[P]
	workers int
}

// NewEnsemble bounds concurrency to workers goroutines; workers <= 0 runs
// every problem in its own goroutine.
func NewEnsemble[P any](s *Solver[P], workers int) *Ensemble[P] {
	return &Ensemble[P]{solver: s, workers: workers}
}

// Run returns results in the order of problems. The first failure cancels
// the remaining runs and is returned.
func (e *Ensemble[P]) Run(ctx context.Context, problems []Problem[P], cfg dynamo.Config) ([]*Result, error) {
	results := make([]*Result, len(problems))

	g, ctx := errgroup.WithContext(ctx)
	if e.workers > 0 {
		g.SetLimit(e.workers)
	}

	for i := range problems {
		g.Go(func() error {
			res, err := e.solver.Integrate(ctx, problems[i], cfg)
			results[i] = res
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

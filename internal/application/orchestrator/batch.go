package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/doeshing/genosma/internal/domain"
)

// RunBatch runs independent requests concurrently, at most
// runtime.max_concurrent_runs at a time. Runs share only the knowledge
// store. Reports keep the order of reqs; the error is the first internal
// fault, if any.
func (o *Orchestrator) RunBatch(ctx context.Context, reqs []domain.RunRequest) ([]domain.RunReport, error) {
	reports := make([]domain.RunReport, len(reqs))
	var g errgroup.Group
	g.SetLimit(o.cfg.GetMaxConcurrentRuns())
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			report, err := o.Run(ctx, req)
			reports[i] = report
			return err
		})
	}
	err := g.Wait()
	return reports, err
}

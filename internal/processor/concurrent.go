package processor

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"invoicer/internal/domain"
)

// ProcessConcurrent processes paths with up to workers files in flight and
// returns the results in input order. Name selection and renaming are
// serialized, so workers may share an output directory. Files not started
// before ctx is done are reported as failed.
func (p *Processor) ProcessConcurrent(ctx context.Context, paths []string, opts Options, workers int) []domain.ProcessingResult {
	if workers <= 1 {
		return p.ProcessAll(ctx, paths, opts)
	}

	results := make([]domain.ProcessingResult, len(paths))
	var (
		g          errgroup.Group
		progressMu sync.Mutex
	)
	g.SetLimit(workers)

	for i, path := range paths {
		if ctx.Err() != nil {
			results[i] = failure(path, opts.maxRetries(), 0, ctx.Err())
			continue
		}
		g.Go(func() error {
			r := p.Process(ctx, path, opts)
			results[i] = r
			if opts.Progress != nil {
				progressMu.Lock()
				opts.Progress(r)
				progressMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	p.log.Debug().Int("files", len(paths)).Int("workers", workers).
		Msg("processor.ProcessConcurrent: done")
	return results
}

package probe

import (
	"context"
	"sync"
)

// workItem pairs a candidate with its submission index.
type workItem struct {
	index     int
	candidate Candidate
}

// runPool fans candidates out across workers and returns a channel of
// results. The channel is closed when every worker has exited. Once ctx is
// cancelled no new candidate is started; in-flight probes still deliver.
func (p *Prober) runPool(ctx context.Context, candidates []Candidate, workers int) <-chan Result {
	itemsCh := make(chan workItem, workers*2)
	resultsCh := make(chan Result, workers*2)

	var wg sync.WaitGroup

	go func() {
		defer close(itemsCh)
		for i, c := range candidates {
			select {
			case itemsCh <- workItem{index: i, candidate: c}:
			case <-ctx.Done():
				return
			}
		}
	}()

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemsCh {
				if ctx.Err() != nil {
					return
				}
				if err := p.pace(ctx); err != nil {
					return
				}
				resultsCh <- p.req.do(ctx, item.index, item.candidate)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	return resultsCh
}

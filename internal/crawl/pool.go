package crawl

import (
	"context"
	"sync"
)

// runPool feeds jobs to up to workers goroutines and waits for them. It
// stops handing out jobs once ctx is done and returns ctx's error then.
// do's own errors are the caller's to collect.
func runPool[T any](ctx context.Context, workers int, jobs []T, do func(T) error) error {
	if len(jobs) == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	ch := make(chan T)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for j := range ch {
			_ = do(j)
		}
	}

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go worker()
	}

	for _, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			close(ch)
			wg.Wait()
			return ctx.Err()
		case ch <- j:
		}
	}

	close(ch)
	wg.Wait()
	return ctx.Err()
}

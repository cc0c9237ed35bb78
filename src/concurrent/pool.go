package concurrent

import (
	"context"
	"sync"
)

const defaultConcurrency = 8

// ParallelMap applies fn to every item with at most maxConcurrency calls in
// flight. Results keep the input order. The first error cancels the
// context handed to the remaining calls and is returned.
func ParallelMap[T, R any](ctx context.Context, items []T, fn func(context.Context, int, T) (R, error), maxConcurrency int) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if maxConcurrency <= 0 {
		maxConcurrency = defaultConcurrency
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]R, len(items))
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	sem := make(chan struct{}, maxConcurrency)
	for i, item := range items {
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
		}
		if err := ctx.Err(); err != nil {
			fail(err)
			break
		}
		wg.Add(1)
		go func(idx int, val T) {
			defer wg.Done()
			defer func() { <-sem }()
			out, err := fn(ctx, idx, val)
			if err != nil {
				fail(err)
				return
			}
			results[idx] = out
		}(i, item)
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

package fn

import "sync"

// ParMapResult applies f to every item with at most workers goroutines in
// flight and returns the results in input order. f receives the item's
// index. workers <= 0 means one goroutine per item.
func ParMapResult[T, U any](items []T, workers int, f func(int, T) Result[U]) []Result[U] {
	out := make([]Result[U], len(items))
	if len(items) == 0 {
		return out
	}
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}
	if workers == 1 {
		for i, v := range items {
			out[i] = f(i, v)
		}
		return out
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, v := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, v T) {
			defer func() { <-sem; wg.Done() }()
			out[i] = f(i, v)
		}(i, v)
	}
	wg.Wait()
	return out
}

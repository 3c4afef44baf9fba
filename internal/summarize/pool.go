package summarize

import "sync"

// pool runs a bounded number of jobs concurrently and collects their
// results, grounded on the same buffered-channel-semaphore idiom as the
// teacher's ingestion pipeline fan-out (internal/ingestion/pipeline.go's
// fetchAll).
func runPool[T any](concurrency int, jobs []func() T) []T {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]T, len(jobs))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, job := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, job func() T) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = job()
		}(i, job)
	}

	wg.Wait()
	return results
}

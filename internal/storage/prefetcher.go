package storage

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Prefetcher warms upcoming work items in parallel ahead of the filtering
// workers. Fetched bytes land in the FetchCache the pipeline reads from,
// so workers rarely wait on the network.
type Prefetcher struct {
	storage     ObjectStorage
	concurrency int
}

// PrefetchResult contains the outcome of a prefetch batch.
type PrefetchResult struct {
	Fetched int
	Errors  map[string]error
}

// NewPrefetcher creates a prefetcher over storage with at most
// concurrency parallel fetches.
func NewPrefetcher(storage ObjectStorage, concurrency int) *Prefetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Prefetcher{storage: storage, concurrency: concurrency}
}

// Prefetch fetches every key, bounded by the configured concurrency.
// Individual fetch failures are collected rather than aborting the batch;
// the worker that needs the object will surface the error at decode time.
func (p *Prefetcher) Prefetch(ctx context.Context, keys []string) *PrefetchResult {
	result := &PrefetchResult{Errors: make(map[string]error)}
	if len(keys) == 0 {
		return result
	}

	sem := semaphore.NewWeighted(int64(p.concurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, key := range keys {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result.Errors[key] = fmt.Errorf("semaphore acquire failed: %w", err)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(key string) {
			defer sem.Release(1)
			defer wg.Done()

			if _, err := p.storage.Get(ctx, key); err != nil {
				mu.Lock()
				result.Errors[key] = err
				mu.Unlock()
				return
			}
			mu.Lock()
			result.Fetched++
			mu.Unlock()
		}(key)
	}

	wg.Wait()
	return result
}

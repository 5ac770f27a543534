// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

// Package searchpool runs a solver's parallel search workers. The VCS
// CP-SAT alternate path launches up to 8 workers exploring different
// branching strategies; WAS launches 2. Workers never share mutable
// state with the request thread — each returns a complete candidate
// solution, and the pool picks the best one by the caller's scoring
// function. This is the same bounded-concurrency, logged-lifecycle
// shape as pkg/pool's HTTP client pool, generalised from network
// connections to solver search attempts.
package searchpool

import (
	"context"
	"sync"
	"time"

	"github.com/vwp-nl/fieldplan-core/pkg/logging"
)

// Attempt is one parallel search worker. workerIndex lets the caller
// vary strategy (random seed, branching order) per worker while
// keeping every attempt deterministic given the same index.
type Attempt[T any] func(ctx context.Context, workerIndex int) (T, bool)

// Pool bounds how many search attempts run concurrently.
type Pool struct {
	workers int
	logger  logging.Logger
}

// New returns a Pool that runs at most workers attempts concurrently.
// workers <= 0 is treated as 1.
func New(workers int, logger logging.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Pool{workers: workers, logger: logger}
}

// Result pairs an attempt's output with its worker index and whether
// it produced a usable candidate.
type Result[T any] struct {
	WorkerIndex int
	Value       T
	OK          bool
	Duration    time.Duration
}

// Run launches n attempts (n may exceed the pool's worker count; the
// pool throttles concurrency to that count) and returns every result
// in worker-index order. The caller scores and selects among them.
func Run[T any](ctx context.Context, p *Pool, n int, attempt Attempt[T]) []Result[T] {
	results := make([]Result[T], n)
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			start := time.Now()
			value, ok := attempt(ctx, idx)
			results[idx] = Result[T]{
				WorkerIndex: idx,
				Value:       value,
				OK:          ok,
				Duration:    time.Since(start),
			}
		}(i)
	}

	wg.Wait()
	p.logger.Debug("search pool run complete", "attempts", n, "workers", p.workers)
	return results
}

// Best runs n attempts and returns the highest-scoring OK result.
// better(a, b) reports whether score a should replace the current
// best score b. Returns ok=false when no attempt produced a usable
// candidate.
func Best[T any](ctx context.Context, p *Pool, n int, attempt Attempt[T], score func(T) float64, better func(a, b float64) bool) (best T, ok bool) {
	results := Run(ctx, p, n, attempt)

	haveBest := false
	var bestScore float64
	for _, r := range results {
		if !r.OK {
			continue
		}
		s := score(r.Value)
		if !haveBest || better(s, bestScore) {
			best = r.Value
			bestScore = s
			haveBest = true
		}
	}
	return best, haveBest
}

// MaxScore is the better function for maximising objectives (SP, WAS,
// VCS-alt all maximise).
func MaxScore(a, b float64) bool { return a > b }

// MinScore is the better function for minimising objectives (the VCS
// greedy/CP-SAT objective minimises visit_count and penalties).
func MinScore(a, b float64) bool { return a < b }

// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

package enrich

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/rrowan/cinescout/internal/recommend"
)

// Enricher fans enrichment fetches out over a candidate set with bounded
// concurrency. Each candidate is fetched at most once per query; a failed
// fetch leaves that candidate unenriched and increments the failure count.
//
// Results are written back by candidate index, so the outcome is identical
// regardless of goroutine completion order.
type Enricher struct {
	fetcher     Fetcher
	concurrency int64
	logger      zerolog.Logger
}

// NewEnricher creates an enricher over the fetcher. Concurrency below 1
// falls back to the default.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEnricher(fetcher Fetcher, concurrency int, logger zerolog.Logger) *Enricher {
	if concurrency < 1 {
		concurrency = DefaultConfig().Concurrency
	}
	return &Enricher{
		fetcher:     fetcher,
		concurrency: int64(concurrency),
		logger:      logger.With().Str("component", "enrich").Logger(),
	}
}

// EnrichAll enriches candidates in place and returns the number of failed
// fetches. Candidates that already carry auxiliary text are skipped. A
// canceled context counts the remaining unfetched candidates as failures.
func (e *Enricher) EnrichAll(ctx context.Context, candidates []*recommend.Candidate) int {
	if len(candidates) == 0 {
		return 0
	}

	sem := semaphore.NewWeighted(e.concurrency)
	results := make([]*recommend.Enrichment, len(candidates))
	failed := make([]bool, len(candidates))

	var wg sync.WaitGroup
	for i := range candidates {
		if candidates[i].HasAuxiliaryText() {
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			failed[i] = true
			continue
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)

			enrichment, err := e.fetcher.Fetch(ctx, candidates[i].ID, candidates[i].Title)
			if err != nil {
				failed[i] = true
				evt := e.logger.Debug()
				if IsRejection(err) {
					evt = e.logger.Warn()
				}
				evt.Err(err).
					Int("movie_id", candidates[i].ID).
					Msg("enrichment fetch failed")
				return
			}
			results[i] = enrichment
		}(i)
	}
	wg.Wait()

	failures := 0
	for i := range candidates {
		if failed[i] {
			failures++
			continue
		}
		if results[i] == nil {
			continue
		}
		candidates[i].Plot = results[i].Plot
		candidates[i].Themes = results[i].Themes
	}

	if failures > 0 {
		e.logger.Debug().
			Int("failures", failures).
			Int("candidates", len(candidates)).
			Msg("enrichment completed with failures")
	}
	return failures
}

// Ensure Enricher implements the pipeline interface.
var _ recommend.Enricher = (*Enricher)(nil)

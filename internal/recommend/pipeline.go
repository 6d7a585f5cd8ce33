// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

package recommend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rrowan/cinescout/internal/recommend/dense"
	"github.com/rrowan/cinescout/internal/recommend/fusion"
	"github.com/rrowan/cinescout/internal/recommend/sparse"
	"github.com/rrowan/cinescout/internal/recommend/storage"
)

// Retrieval source names used in provenance and diagnostics.
const (
	SourceSparse   = "sparse"
	SourceDense    = "dense"
	SourceExternal = "external"
)

// Snapshot file names under the data directory.
const (
	sparseSnapshotFile  = "sparse.snapshot"
	denseSnapshotFile   = "dense.snapshot"
	catalogSnapshotFile = "catalog.snapshot"
)

// Pipeline coordinates hybrid retrieval, rank fusion, aggregation, scoring,
// and diversity selection. It is safe for concurrent use: queries take read
// views of the indexes and keep all per-query state on the stack.
type Pipeline struct {
	config *Config
	logger zerolog.Logger
	scorer *Scorer

	sparse  *sparse.Index
	dense   *dense.Index
	catalog *Catalog

	// Collaborators. Any of these may be nil; the affected stage degrades
	// gracefully and is reported in diagnostics.
	embedder Embedder
	enricher Enricher

	selMu     sync.RWMutex
	selectors map[string]Selector
	selector  string
}

// NewPipeline creates a recommendation pipeline with empty indexes.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPipeline(cfg *Config, logger zerolog.Logger) (*Pipeline, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Pipeline{
		config:    cfg,
		logger:    logger.With().Str("component", "recommend").Logger(),
		scorer:    NewScorer(cfg),
		sparse:    sparse.New(),
		dense:     dense.New(),
		catalog:   NewCatalog(),
		selectors: make(map[string]Selector),
	}, nil
}

// SetEmbedder sets the embedding collaborator. A nil embedder disables the
// dense retrieval source and the semantic sub-score.
func (p *Pipeline) SetEmbedder(e Embedder) {
	p.embedder = e
}

// SetEnricher sets the enrichment collaborator. A nil enricher leaves all
// candidates unenriched.
func (p *Pipeline) SetEnricher(e Enricher) {
	p.enricher = e
}

// RegisterSelector adds a diversity selector. The first registered selector
// becomes the default.
func (p *Pipeline) RegisterSelector(s Selector) {
	p.selMu.Lock()
	defer p.selMu.Unlock()

	p.selectors[s.Name()] = s
	if p.selector == "" {
		p.selector = s.Name()
	}
	p.logger.Info().
		Str("selector", s.Name()).
		Msg("registered selector")
}

// Catalog exposes the movie metadata store.
func (p *Pipeline) Catalog() *Catalog {
	return p.catalog
}

// IndexSizes returns the document counts of the sparse and dense indexes.
func (p *Pipeline) IndexSizes() (sparseLen, denseLen int) {
	return p.sparse.Len(), p.dense.Len()
}

// IndexMovie ingests one movie: the catalog record is upserted, the primary
// text is tokenized into the sparse index, and the embedding (provided, or
// computed from the primary text when an embedder is available) goes into
// the dense index. Re-ingesting an id replaces its previous version in all
// three structures.
func (p *Pipeline) IndexMovie(ctx context.Context, m Candidate) error {
	return p.IndexMovies(ctx, []Candidate{m})
}

// IndexMovies ingests movies through the same per-movie path as IndexMovie,
// so batch and repeated single ingestion converge to identical state.
// A missing embedding is not an error; the movie is simply absent from the
// dense index.
func (p *Pipeline) IndexMovies(ctx context.Context, movies []Candidate) error {
	for i := range movies {
		m := movies[i]
		if m.Title == "" {
			return fmt.Errorf("movie %d: title is required", m.ID)
		}

		if len(m.Embedding) == 0 && p.embedder != nil {
			vec, err := p.embedder.Embed(ctx, m.PrimaryText())
			if err != nil {
				p.logger.Warn().
					Err(err).
					Int("movie_id", m.ID).
					Msg("embedding failed during ingestion, movie indexed sparse-only")
			} else {
				m.Embedding = vec
			}
		}

		p.catalog.Upsert(m)
		p.sparse.Add(m.ID, Tokenize(m.PrimaryText()))

		if len(m.Embedding) > 0 {
			if err := p.dense.Add(m.ID, m.Embedding); err != nil {
				return fmt.Errorf("movie %d: %w", m.ID, err)
			}
		}
	}

	p.logger.Debug().
		Int("count", len(movies)).
		Int("catalog_size", p.catalog.Len()).
		Msg("movies indexed")
	return nil
}

// retrievalResult is one source's outcome in the parallel fan-out.
type retrievalResult struct {
	source string
	ids    []int
	err    error
}

// Recommend runs the full pipeline for one request. Partial source and
// enrichment failures degrade gracefully and surface in the response
// diagnostics; an error is returned only when the request cannot be served
// at all.
func (p *Pipeline) Recommend(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := p.logger.With().Str("request_id", requestID).Logger()

	k := req.K
	if k <= 0 {
		k = p.config.Limits.DefaultK
	}
	if k > p.config.Limits.MaxK {
		k = p.config.Limits.MaxK
	}

	profile := req.Profile
	if len(profile.Keywords) == 0 {
		profile.Keywords = ExtractKeywords(profile.RawText)
	}

	// An empty query is a signal, not an error: the caller gets a
	// structured empty response it can turn into a clarification prompt.
	if profile.IsEmpty() {
		logger.Debug().Msg("empty query profile")
		return p.respond(nil, 0, Diagnostics{EmptyQuery: true}, requestID, nil, start), nil
	}

	depth := k * p.config.Limits.RetrievalDepth

	queryEmbedding, results := p.retrieve(ctx, &profile, depth)

	var diag Diagnostics
	lists := make([][]int, 0, len(results))
	sourcesUsed := make([]string, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			diag.SourcesFailed = append(diag.SourcesFailed, r.source)
			logger.Warn().
				Err(r.err).
				Str("source", r.source).
				Msg("retrieval source unavailable")
			continue
		}
		if len(r.ids) > 0 {
			lists = append(lists, r.ids)
			sourcesUsed = append(sourcesUsed, r.source)
		}
	}

	if len(lists) == 0 && len(req.ExternalCandidates) == 0 {
		if len(diag.SourcesFailed) == len(results) && len(results) > 0 {
			return nil, fmt.Errorf("request %s: %w", requestID, ErrNoSources)
		}
		// Sources worked but matched nothing.
		return p.respond(nil, 0, diag, requestID, sourcesUsed, start), nil
	}

	fused := fusion.RRF(p.config.Fusion.Kappa, lists...)
	candidates, fusedRanks := p.materialize(fused, results)

	if len(req.ExternalCandidates) > 0 {
		external := make([]Candidate, len(req.ExternalCandidates))
		copy(external, req.ExternalCandidates)
		for i := range external {
			external[i].Sources = []string{SourceExternal}
		}
		candidates = MergeCandidates(candidates, external)
		sourcesUsed = append(sourcesUsed, SourceExternal)
	}

	if profile.YearRange != nil {
		before := len(candidates)
		candidates = filterByYear(candidates, *profile.YearRange)
		if len(candidates) < before {
			diag.FiltersApplied = append(diag.FiltersApplied, "year_range")
		}
	}

	total := len(candidates)
	if total == 0 {
		logger.Info().
			Strs("filters", diag.FiltersApplied).
			Msg("no candidates after filtering")
		return p.respond(nil, 0, diag, requestID, sourcesUsed, start), nil
	}

	if p.enricher != nil {
		refs := make([]*Candidate, len(candidates))
		for i := range candidates {
			refs[i] = &candidates[i]
		}
		diag.EnrichmentFailures = p.enricher.EnrichAll(ctx, refs)
	}

	scored := p.score(candidates, &profile, queryEmbedding, fusedRanks)
	selected := p.selectTop(ctx, scored, k)

	response := p.respond(selected, total, diag, requestID, sourcesUsed, start)
	logger.Info().
		Int("k", k).
		Int("candidates", total).
		Int("results", len(response.Results)).
		Strs("sources", sourcesUsed).
		Int64("latency_ms", response.Metadata.LatencyMS).
		Msg("recommendation served")
	return response, nil
}

// retrieve fans out to the sparse and dense sources in parallel. Results
// land in fixed slots indexed by source, so aggregation order never depends
// on goroutine scheduling. Returns the query embedding (nil when the dense
// source failed or is disabled) and the per-source outcomes.
func (p *Pipeline) retrieve(ctx context.Context, profile *QueryProfile, depth int) ([]float32, []retrievalResult) {
	results := make([]retrievalResult, 2)
	var queryEmbedding []float32

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		tokens := Tokenize(profile.RawText)
		if len(tokens) == 0 {
			tokens = profile.Keywords
		}

		hits := p.sparse.Search(tokens, depth)
		ids := make([]int, len(hits))
		for i, h := range hits {
			ids[i] = h.ID
		}
		results[0] = retrievalResult{source: SourceSparse, ids: ids}
	}()

	go func() {
		defer wg.Done()
		if p.embedder == nil {
			results[1] = retrievalResult{
				source: SourceDense,
				err:    &SourceError{Source: SourceDense, Err: fmt.Errorf("no embedder configured")},
			}
			return
		}

		vec, err := p.embedder.Embed(ctx, profile.RawText)
		if err != nil {
			results[1] = retrievalResult{
				source: SourceDense,
				err:    &SourceError{Source: SourceDense, Err: err},
			}
			return
		}
		queryEmbedding = vec

		hits, err := p.dense.Search(vec, depth)
		if err != nil {
			results[1] = retrievalResult{
				source: SourceDense,
				err:    &SourceError{Source: SourceDense, Err: err},
			}
			return
		}

		ids := make([]int, len(hits))
		for i, h := range hits {
			ids[i] = h.ID
		}
		results[1] = retrievalResult{source: SourceDense, ids: ids}
	}()

	wg.Wait()
	return queryEmbedding, results
}

// materialize resolves fused ids into full catalog records, tagging each
// with the sources that retrieved it, capped at the configured maximum in
// fused order. Ids unknown to the catalog are skipped. Returns the
// candidates and the id -> fused rank map for tie-breaking.
func (p *Pipeline) materialize(fused []fusion.Ranked, results []retrievalResult) ([]Candidate, map[int]int) {
	inSource := make([]map[int]struct{}, len(results))
	for i, r := range results {
		inSource[i] = make(map[int]struct{}, len(r.ids))
		for _, id := range r.ids {
			inSource[i][id] = struct{}{}
		}
	}

	candidates := make([]Candidate, 0, len(fused))
	fusedRanks := make(map[int]int, len(fused))
	for _, f := range fused {
		if len(candidates) >= p.config.Limits.MaxCandidates {
			break
		}

		c, ok := p.catalog.Get(f.ID)
		if !ok {
			continue
		}

		for i, r := range results {
			if _, hit := inSource[i][f.ID]; hit {
				c.Sources = append(c.Sources, r.source)
			}
		}

		fusedRanks[f.ID] = f.Rank
		candidates = append(candidates, c)
	}

	return candidates, fusedRanks
}

// filterByYear keeps candidates whose release year falls in the range.
func filterByYear(candidates []Candidate, r YearRange) []Candidate {
	out := candidates[:0]
	for i := range candidates {
		if r.Contains(candidates[i].Year) {
			out = append(out, candidates[i])
		}
	}
	return out
}

// score computes the composite for every candidate exactly once and orders
// the result by composite descending, with ties resolved by fused rank
// ascending (candidates absent from the fused list sort after fused ones)
// and finally by ascending id.
func (p *Pipeline) score(candidates []Candidate, profile *QueryProfile, queryEmbedding []float32, fusedRanks map[int]int) []ScoredCandidate {
	scored := make([]ScoredCandidate, len(candidates))
	for i := range candidates {
		sub, composite, bonus := p.scorer.Score(&candidates[i], profile, queryEmbedding)
		scored[i] = ScoredCandidate{
			Candidate:    candidates[i],
			SubScores:    sub,
			Composite:    composite,
			BonusApplied: bonus,
			FusedRank:    fusedRanks[candidates[i].ID],
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Composite != scored[j].Composite {
			return scored[i].Composite > scored[j].Composite
		}
		ri, rj := tieRank(scored[i].FusedRank), tieRank(scored[j].FusedRank)
		if ri != rj {
			return ri < rj
		}
		return scored[i].Candidate.ID < scored[j].Candidate.ID
	})

	return scored
}

// tieRank maps "not in the fused list" (rank 0) to the end of the order.
func tieRank(rank int) int {
	if rank == 0 {
		return int(^uint(0) >> 1)
	}
	return rank
}

// selectTop applies the default diversity selector, falling back to a
// plain truncation when none is registered.
func (p *Pipeline) selectTop(ctx context.Context, scored []ScoredCandidate, k int) []ScoredCandidate {
	p.selMu.RLock()
	sel := p.selectors[p.selector]
	p.selMu.RUnlock()

	if sel == nil {
		if len(scored) > k {
			return scored[:k]
		}
		return scored
	}
	return sel.Select(ctx, scored, k)
}

// respond assembles the final response.
func (p *Pipeline) respond(selected []ScoredCandidate, total int, diag Diagnostics, requestID string, sourcesUsed []string, start time.Time) *Response {
	results := make([]Result, len(selected))
	for i := range selected {
		results[i] = Result{
			ID:        selected[i].Candidate.ID,
			Title:     selected[i].Candidate.Title,
			Year:      selected[i].Candidate.Year,
			Rank:      i + 1,
			Composite: selected[i].Composite,
			SubScores: selected[i].SubScores,
			Sources:   selected[i].Candidate.Sources,
		}
	}

	return &Response{
		Results:         results,
		TotalCandidates: total,
		Diagnostics:     diag,
		Metadata: ResponseMetadata{
			RequestID:   requestID,
			SourcesUsed: sourcesUsed,
			LatencyMS:   time.Since(start).Milliseconds(),
			Timestamp:   time.Now().UTC(),
		},
	}
}

// SaveSnapshots persists both indexes and the catalog under dir.
func (p *Pipeline) SaveSnapshots(dir string) error {
	if err := p.sparse.Save(filepath.Join(dir, sparseSnapshotFile)); err != nil {
		return fmt.Errorf("saving sparse index: %w", err)
	}
	if err := p.dense.Save(filepath.Join(dir, denseSnapshotFile)); err != nil {
		return fmt.Errorf("saving dense index: %w", err)
	}

	movies := p.catalog.Export()
	if err := storage.Save(filepath.Join(dir, catalogSnapshotFile), "catalog", len(movies), movies); err != nil {
		return fmt.Errorf("saving catalog: %w", err)
	}

	p.logger.Info().
		Str("dir", dir).
		Int("movies", len(movies)).
		Msg("snapshots saved")
	return nil
}

// LoadSnapshots restores both indexes and the catalog from dir. Missing
// snapshot files are not an error (the pipeline starts empty); a snapshot
// that fails its integrity check returns an error wrapping
// ErrIndexCorruption so the caller can rebuild from source data.
func (p *Pipeline) LoadSnapshots(dir string) error {
	if path := filepath.Join(dir, sparseSnapshotFile); storage.Exists(path) {
		if err := p.sparse.Load(path); err != nil {
			return corruptionError("sparse index", err)
		}
	}
	if path := filepath.Join(dir, denseSnapshotFile); storage.Exists(path) {
		if err := p.dense.Load(path); err != nil {
			return corruptionError("dense index", err)
		}
	}
	if path := filepath.Join(dir, catalogSnapshotFile); storage.Exists(path) {
		var movies map[int]Candidate
		if _, err := storage.Load(path, &movies); err != nil {
			return corruptionError("catalog", err)
		}
		p.catalog.Restore(movies)
	}

	sparseLen, denseLen := p.IndexSizes()
	p.logger.Info().
		Str("dir", dir).
		Int("sparse_docs", sparseLen).
		Int("dense_vectors", denseLen).
		Int("catalog_size", p.catalog.Len()).
		Msg("snapshots loaded")
	return nil
}

// corruptionError maps storage-level corruption into the pipeline's
// failure taxonomy; other load failures (permissions, truncation mid-read)
// pass through unchanged.
func corruptionError(what string, err error) error {
	if errors.Is(err, storage.ErrCorrupt) {
		return fmt.Errorf("loading %s: %w: %w", what, ErrIndexCorruption, err)
	}
	return fmt.Errorf("loading %s: %w", what, err)
}

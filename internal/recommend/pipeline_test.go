// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

package recommend

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// axisEmbedder maps texts onto fixed axes by keyword, so tests control
// exactly which movies the dense source considers similar.
type axisEmbedder struct {
	axes []string
}

func newAxisEmbedder() *axisEmbedder {
	return &axisEmbedder{axes: []string{"heist", "space", "romance", "jazz"}}
}

func (e *axisEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(e.axes))
	lower := strings.ToLower(text)
	matched := false
	for i, axis := range e.axes {
		if strings.Contains(lower, axis) {
			vec[i] = 1
			matched = true
		}
	}
	if !matched {
		vec[len(vec)-1] = 0.001
	}
	return vec, nil
}

func (e *axisEmbedder) Dimension() int { return len(e.axes) }

// failingEmbedder always errors, simulating an unavailable embedding service.
type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding service down")
}

func (failingEmbedder) Dimension() int { return 4 }

// stubEnricher attaches fixed auxiliary text by movie id.
type stubEnricher struct {
	plots    map[int]string
	themes   map[int]string
	failures int
}

func (s *stubEnricher) EnrichAll(_ context.Context, candidates []*Candidate) int {
	for _, c := range candidates {
		if plot, ok := s.plots[c.ID]; ok {
			c.Plot = plot
		}
		if themes, ok := s.themes[c.ID]; ok {
			c.Themes = themes
		}
	}
	return s.failures
}

func testMovies() []Candidate {
	return []Candidate{
		{ID: 1, Title: "Midnight Heist", Year: 2021, Genres: []string{"Thriller", "Crime"},
			Rating: 7.8, Popularity: 320, Overview: "a meticulous heist crew targets a tokyo vault"},
		{ID: 2, Title: "Starbound", Year: 2019, Genres: []string{"Sci-Fi", "Adventure"},
			Rating: 8.1, Popularity: 540, Overview: "a ragtag space crew crosses the outer rim"},
		{ID: 3, Title: "The Last Score", Year: 2015, Genres: []string{"Thriller", "Drama"},
			Rating: 7.2, Popularity: 150, Overview: "an aging thief plans one final heist"},
		{ID: 4, Title: "Blue Notes", Year: 2008, Genres: []string{"Drama", "Music"},
			Rating: 7.9, Popularity: 90, Overview: "a jazz musician drifts through new orleans"},
		{ID: 5, Title: "Orbital Hearts", Year: 2023, Genres: []string{"Romance", "Sci-Fi"},
			Rating: 6.9, Popularity: 410, Overview: "a romance blooms aboard a space station"},
	}
}

func newTestPipeline(t *testing.T, embedder Embedder) *Pipeline {
	t.Helper()

	p, err := NewPipeline(DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	if embedder != nil {
		p.SetEmbedder(embedder)
	}
	if err := p.IndexMovies(context.Background(), testMovies()); err != nil {
		t.Fatalf("IndexMovies() error = %v", err)
	}
	return p
}

func TestRecommendHybridRetrieval(t *testing.T) {
	p := newTestPipeline(t, newAxisEmbedder())

	resp, err := p.Recommend(context.Background(), &Request{
		Profile: QueryProfile{
			RawText: "a tense heist thriller",
			Genres:  []string{"Thriller"},
		},
		K: 3,
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	if len(resp.Results) == 0 {
		t.Fatal("Recommend() returned no results")
	}
	if resp.Results[0].ID != 1 && resp.Results[0].ID != 3 {
		t.Errorf("top result = %d, want a heist movie (1 or 3)", resp.Results[0].ID)
	}

	for i, r := range resp.Results {
		if r.Rank != i+1 {
			t.Errorf("results[%d].Rank = %d, want %d", i, r.Rank, i+1)
		}
	}

	if len(resp.Diagnostics.SourcesFailed) != 0 {
		t.Errorf("sources failed = %v, want none", resp.Diagnostics.SourcesFailed)
	}
	if resp.Metadata.RequestID == "" {
		t.Error("response missing request id")
	}
	wantSources := []string{SourceSparse, SourceDense}
	if !reflect.DeepEqual(resp.Metadata.SourcesUsed, wantSources) {
		t.Errorf("sources used = %v, want %v", resp.Metadata.SourcesUsed, wantSources)
	}
}

func TestRecommendEmptyQuery(t *testing.T) {
	p := newTestPipeline(t, newAxisEmbedder())

	tests := []struct {
		name    string
		profile QueryProfile
	}{
		{"blank text", QueryProfile{RawText: "   "}},
		{"whitespace with no keywords", QueryProfile{RawText: "\t\n "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := p.Recommend(context.Background(), &Request{Profile: tt.profile})
			if err != nil {
				t.Fatalf("Recommend() error = %v", err)
			}
			if !resp.Diagnostics.EmptyQuery {
				t.Error("diagnostics.EmptyQuery = false, want true")
			}
			if len(resp.Results) != 0 {
				t.Errorf("results = %v, want none", resp.Results)
			}
		})
	}
}

func TestRecommendStopWordQueryWithRawTextIsNotEmpty(t *testing.T) {
	p := newTestPipeline(t, newAxisEmbedder())

	// Keywords empty after extraction, but raw text still embeds, so the
	// dense source keeps the query alive.
	resp, err := p.Recommend(context.Background(), &Request{
		Profile: QueryProfile{RawText: "the an of in", Genres: []string{"Drama"}},
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if resp.Diagnostics.EmptyQuery {
		t.Error("diagnostics.EmptyQuery = true for embeddable raw text")
	}
}

func TestRecommendDegradesWithoutEmbedder(t *testing.T) {
	p := newTestPipeline(t, nil)

	resp, err := p.Recommend(context.Background(), &Request{
		Profile: QueryProfile{RawText: "heist thriller"},
		K:       3,
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	if len(resp.Results) == 0 {
		t.Fatal("sparse-only retrieval returned no results")
	}
	if !reflect.DeepEqual(resp.Diagnostics.SourcesFailed, []string{SourceDense}) {
		t.Errorf("sources failed = %v, want [dense]", resp.Diagnostics.SourcesFailed)
	}
	for _, r := range resp.Results {
		if r.SubScores.Semantic != 0 {
			t.Errorf("movie %d semantic score = %f, want 0 without embeddings", r.ID, r.SubScores.Semantic)
		}
	}
}

func TestRecommendDegradesWhenEmbedderFails(t *testing.T) {
	p, err := NewPipeline(DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	// Index with a working embedder, then swap in a failing one so only
	// query-time embedding breaks.
	p.SetEmbedder(newAxisEmbedder())
	if err := p.IndexMovies(context.Background(), testMovies()); err != nil {
		t.Fatalf("IndexMovies() error = %v", err)
	}
	p.SetEmbedder(failingEmbedder{})

	resp, err := p.Recommend(context.Background(), &Request{
		Profile: QueryProfile{RawText: "heist thriller"},
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if !reflect.DeepEqual(resp.Diagnostics.SourcesFailed, []string{SourceDense}) {
		t.Errorf("sources failed = %v, want [dense]", resp.Diagnostics.SourcesFailed)
	}
	if len(resp.Results) == 0 {
		t.Error("sparse source did not carry the degraded query")
	}
}

func TestRecommendNoMatchesReturnsStructuredEmpty(t *testing.T) {
	p := newTestPipeline(t, nil)

	resp, err := p.Recommend(context.Background(), &Request{
		Profile: QueryProfile{RawText: "zamboni kaiju"},
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(resp.Results) != 0 || resp.TotalCandidates != 0 {
		t.Errorf("got %d results over %d candidates, want empty", len(resp.Results), resp.TotalCandidates)
	}
}

func TestRecommendYearRangeFilter(t *testing.T) {
	p := newTestPipeline(t, newAxisEmbedder())

	resp, err := p.Recommend(context.Background(), &Request{
		Profile: QueryProfile{
			RawText:   "heist thriller",
			YearRange: &YearRange{Min: 2020, Max: 2025},
		},
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	for _, r := range resp.Results {
		if r.Year < 2020 || r.Year > 2025 {
			t.Errorf("movie %d year %d outside filter range", r.ID, r.Year)
		}
	}
	if !reflect.DeepEqual(resp.Diagnostics.FiltersApplied, []string{"year_range"}) {
		t.Errorf("filters applied = %v, want [year_range]", resp.Diagnostics.FiltersApplied)
	}
}

func TestRecommendYearRangeFilterCanEmptyResults(t *testing.T) {
	p := newTestPipeline(t, newAxisEmbedder())

	resp, err := p.Recommend(context.Background(), &Request{
		Profile: QueryProfile{
			RawText:   "heist thriller",
			YearRange: &YearRange{Min: 1950, Max: 1960},
		},
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("results = %v, want none after exclusive filter", resp.Results)
	}
	if !reflect.DeepEqual(resp.Diagnostics.FiltersApplied, []string{"year_range"}) {
		t.Errorf("filters applied = %v, want [year_range]", resp.Diagnostics.FiltersApplied)
	}
}

func TestRecommendMergesExternalCandidates(t *testing.T) {
	p := newTestPipeline(t, newAxisEmbedder())

	resp, err := p.Recommend(context.Background(), &Request{
		Profile: QueryProfile{
			RawText:  "heist thriller",
			Keywords: []string{"heist", "thriller", "casino"},
		},
		K: 10,
		ExternalCandidates: []Candidate{
			{ID: 99, Title: "Casino Nights", Year: 2022, Genres: []string{"Thriller"},
				Rating: 7.5, Popularity: 200, Overview: "a casino heist thriller"},
		},
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	var external *Result
	for i := range resp.Results {
		if resp.Results[i].ID == 99 {
			external = &resp.Results[i]
		}
	}
	if external == nil {
		t.Fatal("external candidate missing from results")
	}
	if !reflect.DeepEqual(external.Sources, []string{SourceExternal}) {
		t.Errorf("external sources = %v, want [external]", external.Sources)
	}
}

func TestRecommendEnrichmentBonus(t *testing.T) {
	cfg := DefaultConfig()
	p, err := NewPipeline(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	if err := p.IndexMovies(context.Background(), testMovies()); err != nil {
		t.Fatalf("IndexMovies() error = %v", err)
	}

	// Full keyword coverage in plot text pushes the auxiliary match to 1.0,
	// above the bonus threshold.
	p.SetEnricher(&stubEnricher{
		plots:    map[int]string{3: "a heist thriller about one final score"},
		themes:   map[int]string{3: "heist loyalty thriller betrayal"},
		failures: 2,
	})

	resp, err := p.Recommend(context.Background(), &Request{
		Profile: QueryProfile{RawText: "heist thriller"},
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	if resp.Diagnostics.EnrichmentFailures != 2 {
		t.Errorf("enrichment failures = %d, want 2", resp.Diagnostics.EnrichmentFailures)
	}

	var enriched, plain *Result
	for i := range resp.Results {
		switch resp.Results[i].ID {
		case 3:
			enriched = &resp.Results[i]
		case 1:
			plain = &resp.Results[i]
		}
	}
	if enriched == nil || plain == nil {
		t.Fatalf("expected movies 1 and 3 in results, got %v", resp.Results)
	}
	if enriched.SubScores.AuxiliaryMatch <= cfg.Scoring.BonusThreshold {
		t.Errorf("auxiliary match = %f, want above %f", enriched.SubScores.AuxiliaryMatch, cfg.Scoring.BonusThreshold)
	}
	if plain.SubScores.AuxiliaryMatch != 0 {
		t.Errorf("unenriched auxiliary match = %f, want 0", plain.SubScores.AuxiliaryMatch)
	}
	if enriched.Rank >= plain.Rank {
		t.Errorf("bonus did not lift movie 3 above movie 1: ranks %d vs %d", enriched.Rank, plain.Rank)
	}
}

func TestRecommendDeterministic(t *testing.T) {
	p := newTestPipeline(t, newAxisEmbedder())

	req := &Request{
		Profile: QueryProfile{
			RawText: "space romance",
			Genres:  []string{"Sci-Fi", "Romance"},
		},
		K:         4,
		RequestID: "fixed",
	}

	first, err := p.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	for run := 0; run < 5; run++ {
		again, err := p.Recommend(context.Background(), req)
		if err != nil {
			t.Fatalf("run %d: Recommend() error = %v", run, err)
		}
		if !reflect.DeepEqual(again.Results, first.Results) {
			t.Fatalf("run %d: results diverged:\nfirst: %+v\nagain: %+v", run, first.Results, again.Results)
		}
	}
}

func TestRecommendClampsK(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limits.MaxK = 2
	cfg.Limits.DefaultK = 2

	p, err := NewPipeline(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	if err := p.IndexMovies(context.Background(), testMovies()); err != nil {
		t.Fatalf("IndexMovies() error = %v", err)
	}

	resp, err := p.Recommend(context.Background(), &Request{
		Profile: QueryProfile{RawText: "heist space jazz romance crew"},
		K:       50,
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(resp.Results) > 2 {
		t.Errorf("results = %d, want at most MaxK=2", len(resp.Results))
	}
}

func TestIndexMovieOverwriteIsIdempotent(t *testing.T) {
	p := newTestPipeline(t, nil)

	ctx := context.Background()
	updated := Candidate{ID: 1, Title: "Midnight Heist", Year: 2021,
		Genres: []string{"Thriller"}, Rating: 8.0, Popularity: 400,
		Overview: "a submarine crew hunts a ghost signal"}

	if err := p.IndexMovie(ctx, updated); err != nil {
		t.Fatalf("IndexMovie() error = %v", err)
	}
	if err := p.IndexMovie(ctx, updated); err != nil {
		t.Fatalf("IndexMovie() repeat error = %v", err)
	}

	sparseLen, _ := p.IndexSizes()
	if sparseLen != len(testMovies()) {
		t.Errorf("sparse index size = %d, want %d after overwrite", sparseLen, len(testMovies()))
	}

	resp, err := p.Recommend(ctx, &Request{Profile: QueryProfile{RawText: "submarine ghost signal"}})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != 1 {
		t.Fatalf("updated document not retrievable: %v", resp.Results)
	}

	resp, err = p.Recommend(ctx, &Request{Profile: QueryProfile{RawText: "tokyo vault"}})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	for _, r := range resp.Results {
		if r.ID == 1 {
			t.Error("stale tokens for movie 1 still retrievable after overwrite")
		}
	}
}

func TestIndexMoviesRequiresTitle(t *testing.T) {
	p, err := NewPipeline(DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	if err := p.IndexMovies(context.Background(), []Candidate{{ID: 1}}); err == nil {
		t.Error("IndexMovies() accepted a movie without a title")
	}
}

func TestSaveLoadSnapshotsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := newTestPipeline(t, newAxisEmbedder())

	if err := p.SaveSnapshots(dir); err != nil {
		t.Fatalf("SaveSnapshots() error = %v", err)
	}

	restored, err := NewPipeline(DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	restored.SetEmbedder(newAxisEmbedder())
	if err := restored.LoadSnapshots(dir); err != nil {
		t.Fatalf("LoadSnapshots() error = %v", err)
	}

	if restored.Catalog().Len() != p.Catalog().Len() {
		t.Errorf("restored catalog size = %d, want %d", restored.Catalog().Len(), p.Catalog().Len())
	}

	req := &Request{Profile: QueryProfile{RawText: "heist thriller"}, RequestID: "fixed"}
	want, err := p.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	got, err := restored.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("Recommend() after reload error = %v", err)
	}
	if !reflect.DeepEqual(got.Results, want.Results) {
		t.Errorf("results after reload = %+v, want %+v", got.Results, want.Results)
	}
}

func TestLoadSnapshotsMissingDirIsEmptyStart(t *testing.T) {
	p, err := NewPipeline(DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	if err := p.LoadSnapshots(t.TempDir()); err != nil {
		t.Errorf("LoadSnapshots() of empty dir error = %v, want nil", err)
	}
	sparseLen, denseLen := p.IndexSizes()
	if sparseLen != 0 || denseLen != 0 {
		t.Errorf("index sizes = (%d, %d), want empty", sparseLen, denseLen)
	}
}

func TestRecommendScoresEachCandidateOnce(t *testing.T) {
	// A counting enricher doubles as a probe: EnrichAll sees the full
	// candidate set exactly once per query.
	p := newTestPipeline(t, newAxisEmbedder())

	var calls, seen int
	p.SetEnricher(enricherFunc(func(_ context.Context, candidates []*Candidate) int {
		calls++
		seen = len(candidates)
		return 0
	}))

	resp, err := p.Recommend(context.Background(), &Request{
		Profile: QueryProfile{RawText: "heist thriller"},
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("enrichment passes = %d, want 1", calls)
	}
	if seen != resp.TotalCandidates {
		t.Errorf("enricher saw %d candidates, response reports %d", seen, resp.TotalCandidates)
	}
}

// enricherFunc adapts a function to the Enricher interface.
type enricherFunc func(ctx context.Context, candidates []*Candidate) int

func (f enricherFunc) EnrichAll(ctx context.Context, candidates []*Candidate) int {
	return f(ctx, candidates)
}

func ExamplePipeline_Recommend() {
	p, _ := NewPipeline(DefaultConfig(), zerolog.Nop())
	_ = p.IndexMovies(context.Background(), []Candidate{
		{ID: 1, Title: "Midnight Heist", Year: 2021, Rating: 7.8,
			Overview: "a meticulous heist crew targets a tokyo vault"},
	})

	resp, _ := p.Recommend(context.Background(), &Request{
		Profile: QueryProfile{RawText: "heist movies"},
	})
	fmt.Println(resp.Results[0].Title)
	// Output: Midnight Heist
}

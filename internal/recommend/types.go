// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

package recommend

import (
	"context"
	"strings"
	"time"
)

// Candidate represents a movie candidate assembled for a single query.
// Candidates are created fresh per query by retrieval sources, merged by the
// aggregator, optionally enriched with auxiliary text, scored exactly once,
// and filtered by the diversity selector. No candidate state persists across
// queries.
type Candidate struct {
	// ID is the unique movie identifier within one query's candidate set.
	ID int `json:"id"`

	// Title is the movie title.
	Title string `json:"title"`

	// Year is the release year. Zero means unknown.
	Year int `json:"year,omitempty"`

	// Genres is the set of genre tags.
	Genres []string `json:"genres,omitempty"`

	// Rating is the critic rating (0-10).
	Rating float64 `json:"rating,omitempty"`

	// Popularity is a non-negative popularity metric.
	Popularity float64 `json:"popularity,omitempty"`

	// Overview is the short synopsis. Title plus overview form the
	// candidate's primary text.
	Overview string `json:"overview,omitempty"`

	// Plot is auxiliary plot text supplied by the enrichment collaborator.
	// Once attached by any source it is never overwritten with an absence.
	Plot string `json:"plot,omitempty"`

	// Themes is auxiliary theme text supplied by the enrichment collaborator.
	Themes string `json:"themes,omitempty"`

	// Embedding is the candidate's vector representation, if available.
	Embedding []float32 `json:"embedding,omitempty"`

	// Sources records which retrieval sources contributed this candidate.
	Sources []string `json:"sources,omitempty"`
}

// PrimaryText returns the candidate's primary searchable text.
func (c *Candidate) PrimaryText() string {
	if c.Overview == "" {
		return c.Title
	}
	return c.Title + " " + c.Overview
}

// HasAuxiliaryText reports whether any enrichment text is attached.
func (c *Candidate) HasAuxiliaryText() bool {
	return c.Plot != "" || c.Themes != ""
}

// HasSource reports whether the named source contributed this candidate.
func (c *Candidate) HasSource(name string) bool {
	for _, s := range c.Sources {
		if s == name {
			return true
		}
	}
	return false
}

// YearRange is an optional inclusive release-year constraint.
type YearRange struct {
	// Min is the earliest acceptable release year.
	Min int `json:"min"`

	// Max is the latest acceptable release year.
	Max int `json:"max"`
}

// Contains reports whether the year falls inside the range.
// A zero year (unknown) never matches a constrained range.
func (r YearRange) Contains(year int) bool {
	return year >= r.Min && year <= r.Max
}

// QueryProfile is the structured query produced by the external
// query-understanding collaborator.
type QueryProfile struct {
	// RawText is the user's original free-text query.
	RawText string `json:"raw_text"`

	// Keywords is the stop-word-filtered, case-normalized keyword set.
	// It may be empty; all keyword-dependent scores are then zero rather
	// than undefined.
	Keywords []string `json:"keywords,omitempty"`

	// Genres is the set of genres extracted from the query.
	Genres []string `json:"genres,omitempty"`

	// Mood is the overall emotional tone extracted from the query.
	Mood string `json:"mood,omitempty"`

	// Themes is the list of thematic hints extracted from the query.
	Themes []string `json:"themes,omitempty"`

	// YearRange optionally constrains release years.
	YearRange *YearRange `json:"year_range,omitempty"`
}

/// IsEmpty reports whether the profile carries no usable query signal:
// no keywords and no raw text to embed.
func (p *QueryProfile) IsEmpty() bool {
	return len(p.Keywords) == 0 && strings.TrimSpace(p.RawText) == ""
}

// SubScores is the per-factor score breakdown for one candidate.
// Every sub-score is normalized to [0, 1].
type SubScores struct {
	// Semantic is the query-candidate embedding similarity rescaled to [0,1].
	Semantic float64 `json:"semantic"`

	// Genre is the query-genre overlap fraction.
	Genre float64 `json:"genre"`

	// Rating is the critic rating normalized by 10.
	Rating float64 `json:"rating"`

	// Recency is the exponential release-age decay.
	Recency float64 `json:"recency"`

	// Popularity is the log-normalized popularity.
	Popularity float64 `json:"popularity"`

	// KeywordMatch is the fraction of query keywords found in the
	// candidate's primary text.
	KeywordMatch float64 `json:"keyword_match"`

	// AuxiliaryMatch is the weighted keyword fraction over enrichment
	// plot and theme text.
	AuxiliaryMatch float64 `json:"auxiliary_match"`
}

// ScoredCandidate is a candidate with its composite score and breakdown.
type ScoredCandidate struct {
	// Candidate is the underlying candidate record.
	Candidate Candidate `json:"candidate"`

	// SubScores is the per-factor breakdown.
	SubScores SubScores `json:"sub_scores"`

	// Composite is the weighted sum of sub-scores, possibly multiplied by
	// the auxiliary bonus factor. It may exceed the sum of weights.
	Composite float64 `json:"composite"`

	// BonusApplied indicates the auxiliary-match bonus multiplier was applied.
	BonusApplied bool `json:"bonus_applied,omitempty"`

	// FusedRank is the candidate's 1-based rank in the fused retrieval list,
	// used only for deterministic tie-breaking. Zero for candidates absent
	// from the fused list.
	FusedRank int `json:"fused_rank,omitempty"`
}

// Request is a recommendation request.
type Request struct {
	// Profile is the structured query profile.
	Profile QueryProfile `json:"profile"`

	// K is the number of recommendations to return.
	// Defaults to Config.Limits.DefaultK if zero.
	K int `json:"k,omitempty"`

	// ExternalCandidates are candidate records discovered by an external
	// metadata provider. They join aggregation with provenance "external".
	ExternalCandidates []Candidate `json:"external_candidates,omitempty"`

	// RequestID is a unique identifier for tracing.
	RequestID string `json:"request_id,omitempty"`
}

// Result is one ranked recommendation, exposing everything an external
// explanation generator needs to justify the ranking.
type Result struct {
	// ID is the movie identifier.
	ID int `json:"id"`

	// Title is the movie title.
	Title string `json:"title"`

	// Year is the release year.
	Year int `json:"year,omitempty"`

	// Rank is the 1-based position in the final list.
	Rank int `json:"rank"`

	// Composite is the final composite score.
	Composite float64 `json:"composite"`

	// SubScores is the per-factor breakdown.
	SubScores SubScores `json:"sub_scores"`

	// Sources records which retrieval sources contributed the candidate.
	Sources []string `json:"sources,omitempty"`
}

// Diagnostics describes how a query degraded or why it returned nothing.
// Partial source failures and enrichment failures are reported here rather
// than failing the query.
type Diagnostics struct {
	// EmptyQuery indicates the keyword set was empty after extraction and
	// no raw text was available to embed.
	EmptyQuery bool `json:"empty_query,omitempty"`

	// SourcesFailed lists retrieval sources that were unavailable.
	SourcesFailed []string `json:"sources_failed,omitempty"`

	// EnrichmentFailures counts candidates whose auxiliary fetch failed.
	EnrichmentFailures int `json:"enrichment_failures,omitempty"`

	// FiltersApplied lists filters that reduced the candidate set,
	// for structured "no results" responses.
	FiltersApplied []string `json:"filters_applied,omitempty"`
}

// Response is a recommendation response.
type Response struct {
	// Results is the ordered list of up to K recommendations.
	Results []Result `json:"results"`

	// TotalCandidates is the number of candidates considered before selection.
	TotalCandidates int `json:"total_candidates"`

	// Diagnostics reports degradation and filtering.
	Diagnostics Diagnostics `json:"diagnostics"`

	// Metadata contains timing and tracing information.
	Metadata ResponseMetadata `json:"metadata"`
}

// ResponseMetadata contains timing and tracing information.
type ResponseMetadata struct {
	// RequestID is the unique request identifier.
	RequestID string `json:"request_id"`

	// SourcesUsed lists the retrieval sources that contributed candidates.
	SourcesUsed []string `json:"sources_used"`

	// LatencyMS is the total recommendation latency in milliseconds.
	LatencyMS int64 `json:"latency_ms"`

	// Timestamp is when the response was generated.
	Timestamp time.Time `json:"timestamp"`
}

// Hit is one retrieval result from a single source.
type Hit struct {
	// ID is the movie identifier.
	ID int `json:"id"`

	// Score is the source-native relevance score. Scales differ between
	// sources; fusion relies on rank, not score.
	Score float64 `json:"score"`
}

// Embedder produces a fixed-length vector for a text. The embedding model
// itself is an external collaborator.
type Embedder interface {
	// Embed returns the embedding vector for the text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding vector length.
	Dimension() int
}

// Enrichment is the optional auxiliary text returned by the enrichment
// collaborator for one movie.
type Enrichment struct {
	// Plot is descriptive plot text.
	Plot string `json:"plot,omitempty"`

	// Themes is descriptive theme text.
	Themes string `json:"themes,omitempty"`
}

// Enricher attaches auxiliary text to candidates. Implementations fan out
// over candidates with bounded concurrency and per-candidate timeouts;
// failures leave the candidate unenriched and are counted, never raised.
type Enricher interface {
	// EnrichAll enriches the candidates in place and returns the number of
	// candidates whose fetch failed.
	EnrichAll(ctx context.Context, candidates []*Candidate) int
}

// Selector reduces a scored, ranked candidate list to a final top-K,
// typically trading relevance against redundancy.
type Selector interface {
	// Name returns the selector identifier (e.g., "mmr").
	Name() string

	// Select returns up to k candidates from the scored input.
	// The input is already sorted by composite score.
	Select(ctx context.Context, items []ScoredCandidate, k int) []ScoredCandidate
}

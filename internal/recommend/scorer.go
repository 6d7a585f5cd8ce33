// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

package recommend

import (
	"math"
	"strings"
	"time"
)

// Scorer computes the weighted multi-factor composite score for candidates.
// Every sub-score is normalized to [0, 1] and every empty-set condition
// yields 0 for the affected sub-score; no input produces NaN.
type Scorer struct {
	cfg *Config

	// currentYear anchors the recency decay. Fixed at construction so a
	// single query scores all candidates against the same clock.
	currentYear int
}

// NewScorer creates a scorer anchored at the current year.
func NewScorer(cfg *Config) *Scorer {
	return NewScorerAt(cfg, time.Now().Year())
}

// NewScorerAt creates a scorer anchored at an explicit year.
func NewScorerAt(cfg *Config, currentYear int) *Scorer {
	return &Scorer{cfg: cfg, currentYear: currentYear}
}

// Score computes the sub-scores and composite for one candidate against the
// query profile. queryEmbedding may be nil when the query could not be
// embedded; the semantic sub-score is then 0.
func (s *Scorer) Score(c *Candidate, p *QueryProfile, queryEmbedding []float32) (SubScores, float64, bool) {
	sub := SubScores{
		Semantic:       semanticScore(queryEmbedding, c.Embedding),
		Genre:          genreOverlap(p.Genres, c.Genres),
		Rating:         clamp01(c.Rating / 10.0),
		Recency:        s.recencyScore(c.Year),
		Popularity:     s.popularityScore(c.Popularity),
		KeywordMatch:   fractionFound(p.Keywords, TokenSet(c.PrimaryText())),
		AuxiliaryMatch: s.auxiliaryScore(p.Keywords, c),
	}

	w := s.cfg.Weights
	composite := w.Semantic*sub.Semantic +
		w.Genre*sub.Genre +
		w.Rating*sub.Rating +
		w.Recency*sub.Recency +
		w.Popularity*sub.Popularity +
		w.KeywordMatch*sub.KeywordMatch +
		w.AuxiliaryMatch*sub.AuxiliaryMatch

	bonus := sub.AuxiliaryMatch > s.cfg.Scoring.BonusThreshold
	if bonus {
		composite *= s.cfg.Scoring.BonusFactor
	}

	return sub, composite, bonus
}

// semanticScore rescales cosine similarity from [-1, 1] to [0, 1].
// Returns 0 when either embedding is missing.
func semanticScore(query, candidate []float32) float64 {
	if len(query) == 0 || len(candidate) == 0 {
		return 0
	}
	return clamp01((Cosine(query, candidate) + 1) / 2)
}

// genreOverlap returns |queryGenres ∩ candidateGenres| / |queryGenres|.
// Returns 0 when the query genre set is empty.
func genreOverlap(queryGenres, candidateGenres []string) float64 {
	if len(queryGenres) == 0 {
		return 0
	}

	candidateSet := make(map[string]struct{}, len(candidateGenres))
	for _, g := range candidateGenres {
		candidateSet[strings.ToLower(g)] = struct{}{}
	}

	querySet := make(map[string]struct{}, len(queryGenres))
	overlap := 0
	for _, g := range queryGenres {
		lg := strings.ToLower(g)
		if _, dup := querySet[lg]; dup {
			continue
		}
		querySet[lg] = struct{}{}
		if _, ok := candidateSet[lg]; ok {
			overlap++
		}
	}

	return float64(overlap) / float64(len(querySet))
}

// recencyScore applies exponential age decay: exp(-age/tau).
// An unknown year (zero) scores 0; future years score 1.
func (s *Scorer) recencyScore(year int) float64 {
	if year == 0 {
		return 0
	}

	age := s.currentYear - year
	if age < 0 {
		age = 0
	}

	return math.Exp(-float64(age) / s.cfg.Scoring.RecencyTau)
}

// popularityScore log-normalizes popularity against the reference maximum.
func (s *Scorer) popularityScore(popularity float64) float64 {
	if popularity <= 0 {
		return 0
	}

	normalized := math.Log10(popularity+1) / math.Log10(s.cfg.Scoring.PopularityRefMax+1)
	return clamp01(normalized)
}

// auxiliaryScore computes the weighted keyword fraction over enrichment
// plot and theme text. Returns 0 when no auxiliary text is present.
func (s *Scorer) auxiliaryScore(keywords []string, c *Candidate) float64 {
	if !c.HasAuxiliaryText() {
		return 0
	}

	score := 0.0
	if c.Plot != "" {
		score += s.cfg.Scoring.PlotWeight * fractionFound(keywords, TokenSet(c.Plot))
	}
	if c.Themes != "" {
		score += s.cfg.Scoring.ThemeWeight * fractionFound(keywords, TokenSet(c.Themes))
	}

	return clamp01(score)
}

// Cosine computes cosine similarity between two vectors.
// Returns 0 for mismatched lengths or zero-magnitude vectors.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// clamp01 clamps v to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

package recommend

import "fmt"

// Config contains all configuration for the recommendation pipeline.
type Config struct {
	// Weights defines the contribution of each scoring factor.
	// Weights are applied as-is and are not constrained to sum to 1.0.
	Weights FactorWeights `json:"weights" koanf:"weights"`

	// Scoring contains normalization parameters for the composite scorer.
	Scoring ScoringConfig `json:"scoring" koanf:"scoring"`

	// Fusion contains rank-fusion parameters.
	Fusion FusionConfig `json:"fusion" koanf:"fusion"`

	// Diversity contains diversity-selection parameters.
	Diversity DiversityConfig `json:"diversity" koanf:"diversity"`

	// Limits contains operational limits.
	Limits LimitsConfig `json:"limits" koanf:"limits"`
}

// FactorWeights defines the contribution of each scoring factor.
type FactorWeights struct {
	// Semantic is the weight of embedding similarity.
	// Default: 0.25.
	Semantic float64 `json:"semantic" koanf:"semantic"`

	// Genre is the weight of query-genre overlap.
	// Default: 0.20.
	Genre float64 `json:"genre" koanf:"genre"`

	// Rating is the weight of the normalized critic rating.
	// Default: 0.20.
	Rating float64 `json:"rating" koanf:"rating"`

	// Recency is the weight of the release-age decay.
	// Default: 0.15.
	Recency float64 `json:"recency" koanf:"recency"`

	// Popularity is the weight of log-normalized popularity.
	// Default: 0.10.
	Popularity float64 `json:"popularity" koanf:"popularity"`

	// KeywordMatch is the weight of primary-text keyword matching.
	// Default: 0.10.
	KeywordMatch float64 `json:"keyword_match" koanf:"keyword_match"`

	// AuxiliaryMatch is the weight of enrichment-text keyword matching.
	// Default: 0.05.
	AuxiliaryMatch float64 `json:"auxiliary_match" koanf:"auxiliary_match"`
}

// ToMap returns the weights as a string-keyed map.
//
//nolint:gocritic // value receiver is intentional for immutable semantics
func (w FactorWeights) ToMap() map[string]float64 {
	return map[string]float64{
		"semantic":        w.Semantic,
		"genre":           w.Genre,
		"rating":          w.Rating,
		"recency":         w.Recency,
		"popularity":      w.Popularity,
		"keyword_match":   w.KeywordMatch,
		"auxiliary_match": w.AuxiliaryMatch,
	}
}

// ScoringConfig contains normalization parameters for the composite scorer.
type ScoringConfig struct {
	// RecencyTau is the exponential decay constant in years for the
	// recency sub-score: exp(-age/tau).
	// Default: 10.
	RecencyTau float64 `json:"recency_tau" koanf:"recency_tau"`

	// PopularityRefMax is the reference popularity mapped to 1.0 under
	// log10 normalization.
	// Default: 1000.
	PopularityRefMax float64 `json:"popularity_ref_max" koanf:"popularity_ref_max"`

	// BonusThreshold is the auxiliary-match level above which the bonus
	// multiplier applies.
	// Default: 0.7.
	BonusThreshold float64 `json:"bonus_threshold" koanf:"bonus_threshold"`

	// BonusFactor multiplies the composite score when the auxiliary match
	// exceeds BonusThreshold.
	// Default: 1.1.
	BonusFactor float64 `json:"bonus_factor" koanf:"bonus_factor"`

	// PlotWeight is the share of the auxiliary match carried by plot text.
	// Default: 0.7.
	PlotWeight float64 `json:"plot_weight" koanf:"plot_weight"`

	// ThemeWeight is the share of the auxiliary match carried by theme text.
	// Default: 0.3.
	ThemeWeight float64 `json:"theme_weight" koanf:"theme_weight"`
}

// FusionConfig contains rank-fusion parameters.
type FusionConfig struct {
	// Kappa is the reciprocal-rank-fusion smoothing constant. Larger values
	// dampen the influence of very high ranks.
	// Default: 60.
	Kappa int `json:"kappa" koanf:"kappa"`
}

// DiversityConfig contains diversity-selection parameters.
type DiversityConfig struct {
	// Lambda balances relevance vs. diversity in MMR selection.
	// 1.0 = pure relevance, 0.0 = pure diversity.
	// Default: 0.7.
	Lambda float64 `json:"lambda" koanf:"lambda"`
}

// LimitsConfig contains operational limits.
type LimitsConfig struct {
	// DefaultK is the default number of recommendations to return.
	// Default: 10.
	DefaultK int `json:"default_k" koanf:"default_k"`

	// MaxK is the maximum allowed K value.
	// Default: 100.
	MaxK int `json:"max_k" koanf:"max_k"`

	// RetrievalDepth is the per-source retrieval depth as a multiple of K,
	// so fusion sees more than K candidates from each source.
	// Default: 2.
	RetrievalDepth int `json:"retrieval_depth" koanf:"retrieval_depth"`

	// MaxCandidates caps the number of candidates scored per query.
	// Default: 500.
	MaxCandidates int `json:"max_candidates" koanf:"max_candidates"`
}

// DefaultConfig returns a Config with documented production defaults.
func DefaultConfig() *Config {
	return &Config{
		Weights: FactorWeights{
			Semantic:       0.25,
			Genre:          0.20,
			Rating:         0.20,
			Recency:        0.15,
			Popularity:     0.10,
			KeywordMatch:   0.10,
			AuxiliaryMatch: 0.05,
		},
		Scoring: ScoringConfig{
			RecencyTau:       10.0,
			PopularityRefMax: 1000.0,
			BonusThreshold:   0.7,
			BonusFactor:      1.1,
			PlotWeight:       0.7,
			ThemeWeight:      0.3,
		},
		Fusion: FusionConfig{
			Kappa: 60,
		},
		Diversity: DiversityConfig{
			Lambda: 0.7,
		},
		Limits: LimitsConfig{
			DefaultK:       10,
			MaxK:           100,
			RetrievalDepth: 2,
			MaxCandidates:  500,
		},
	}
}

// Validate checks the configuration for errors. Configuration errors are
// fatal to the caller.
func (c *Config) Validate() error {
	for name, w := range c.Weights.ToMap() {
		if w < 0 {
			return fmt.Errorf("weights.%s must be non-negative, got %f", name, w)
		}
	}

	if c.Scoring.RecencyTau <= 0 {
		return fmt.Errorf("scoring.recency_tau must be positive, got %f", c.Scoring.RecencyTau)
	}
	if c.Scoring.PopularityRefMax <= 0 {
		return fmt.Errorf("scoring.popularity_ref_max must be positive, got %f", c.Scoring.PopularityRefMax)
	}
	if c.Scoring.BonusThreshold < 0 || c.Scoring.BonusThreshold > 1 {
		return fmt.Errorf("scoring.bonus_threshold must be in [0, 1], got %f", c.Scoring.BonusThreshold)
	}
	if c.Scoring.BonusFactor < 1 {
		return fmt.Errorf("scoring.bonus_factor must be >= 1, got %f", c.Scoring.BonusFactor)
	}
	if c.Scoring.PlotWeight < 0 || c.Scoring.ThemeWeight < 0 {
		return fmt.Errorf("scoring plot/theme weights must be non-negative, got %f/%f",
			c.Scoring.PlotWeight, c.Scoring.ThemeWeight)
	}

	if c.Fusion.Kappa < 1 {
		return fmt.Errorf("fusion.kappa must be positive, got %d", c.Fusion.Kappa)
	}

	if c.Diversity.Lambda < 0 || c.Diversity.Lambda > 1 {
		return fmt.Errorf("diversity.lambda must be in [0, 1], got %f", c.Diversity.Lambda)
	}

	if c.Limits.DefaultK < 1 {
		return fmt.Errorf("limits.default_k must be positive, got %d", c.Limits.DefaultK)
	}
	if c.Limits.MaxK < c.Limits.DefaultK {
		return fmt.Errorf("limits.max_k must be >= limits.default_k, got %d < %d",
			c.Limits.MaxK, c.Limits.DefaultK)
	}
	if c.Limits.RetrievalDepth < 1 {
		return fmt.Errorf("limits.retrieval_depth must be positive, got %d", c.Limits.RetrievalDepth)
	}
	if c.Limits.MaxCandidates < 1 {
		return fmt.Errorf("limits.max_candidates must be positive, got %d", c.Limits.MaxCandidates)
	}

	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	// Direct field copy - all nested structs contain only value types
	return &Config{
		Weights:   c.Weights,
		Scoring:   c.Scoring,
		Fusion:    c.Fusion,
		Diversity: c.Diversity,
		Limits:    c.Limits,
	}
}

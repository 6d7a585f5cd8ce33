// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

// Package embed provides text embedding backends for the dense retrieval
// source: an HTTP client for a real embedding service, and a deterministic
// local feature-hashing embedder for development and offline operation.
package embed

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/rrowan/cinescout/internal/recommend"
)

// Config configures the embedding backend.
type Config struct {
	// BaseURL is the embedding service endpoint. Empty selects the local
	// hashing embedder.
	BaseURL string `json:"base_url" koanf:"base_url"`

	// Model is the model name sent to the service.
	Model string `json:"model" koanf:"model"`

	// Dimension is the embedding vector length.
	// Default: 384.
	Dimension int `json:"dimension" koanf:"dimension"`

	// Timeout is the per-request timeout.
	// Default: 5s.
	Timeout time.Duration `json:"timeout" koanf:"timeout"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Model:     "all-MiniLM-L6-v2",
		Dimension: 384,
		Timeout:   5 * time.Second,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Dimension < 1 {
		return fmt.Errorf("embed.dimension must be positive, got %d", c.Dimension)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("embed.timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// New selects the backend from the configuration: an HTTP client when a
// base URL is set, the local hashing embedder otherwise.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(cfg Config, logger zerolog.Logger) (recommend.Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL != "" {
		return NewHTTPEmbedder(cfg, logger), nil
	}
	logger.Info().
		Int("dimension", cfg.Dimension).
		Msg("no embedding service configured, using local hashing embedder")
	return NewHashingEmbedder(cfg.Dimension), nil
}

// HTTPEmbedder calls an external embedding service.
type HTTPEmbedder struct {
	cfg    Config
	client *http.Client
	logger zerolog.Logger
}

// embedRequest is the service request body.
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse is the service response body.
type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewHTTPEmbedder creates an embedder against the configured service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHTTPEmbedder(cfg Config, logger zerolog.Logger) *HTTPEmbedder {
	return &HTTPEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("component", "embed").Logger(),
	}
}

// Embed returns the service's embedding for the text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: e.cfg.Model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("encoding embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling embedding service: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned status %d", resp.StatusCode)
	}

	var payload embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding embedding: %w", err)
	}
	if len(payload.Embedding) != e.cfg.Dimension {
		return nil, fmt.Errorf("embedding service returned dimension %d, want %d",
			len(payload.Embedding), e.cfg.Dimension)
	}

	return payload.Embedding, nil
}

// Dimension returns the configured embedding length.
func (e *HTTPEmbedder) Dimension() int {
	return e.cfg.Dimension
}

// HashingEmbedder is a deterministic local embedder using token feature
// hashing with a sign trick. It carries no semantics beyond token overlap,
// which is enough for development, tests, and degraded offline operation.
type HashingEmbedder struct {
	dim int
}

// NewHashingEmbedder creates a hashing embedder of the given dimension.
func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim < 1 {
		dim = DefaultConfig().Dimension
	}
	return &HashingEmbedder{dim: dim}
}

// Embed maps each token into a hashed bucket with a hash-derived sign and
// L2-normalizes the result. Identical texts always produce identical
// vectors. Texts with no tokens produce a fixed unit vector so the dense
// source still returns a well-defined (if uninformative) ranking.
func (e *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)

	for _, token := range recommend.Tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()

		bucket := int(sum % uint64(e.dim)) //nolint:gosec // dim is small and positive
		sign := float32(1)
		if sum&(1<<63) != 0 {
			sign = -1
		}
		vec[bucket] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}

	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec, nil
}

// Dimension returns the embedding length.
func (e *HashingEmbedder) Dimension() int {
	return e.dim
}

// Ensure both backends implement the pipeline interface.
var (
	_ recommend.Embedder = (*HTTPEmbedder)(nil)
	_ recommend.Embedder = (*HashingEmbedder)(nil)
)

// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

// Package enrich fetches auxiliary plot and theme text for candidates from
// an external metadata service. Enrichment is strictly best-effort: every
// failure mode (timeout, open circuit, rate limit, HTTP error) leaves the
// candidate unenriched and is counted, never propagated as a query error.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/rrowan/cinescout/internal/recommend"
)

// Fetcher retrieves auxiliary text for one movie.
type Fetcher interface {
	// Fetch returns the enrichment for the movie, or an error when the
	// service cannot serve it.
	Fetch(ctx context.Context, id int, title string) (*recommend.Enrichment, error)
}

// Config configures the HTTP fetcher.
type Config struct {
	// BaseURL is the metadata service endpoint.
	BaseURL string `json:"base_url" koanf:"base_url"`

	// Timeout is the per-request timeout.
	// Default: 2s.
	Timeout time.Duration `json:"timeout" koanf:"timeout"`

	// RequestsPerSecond rate-limits outbound requests.
	// Default: 20.
	RequestsPerSecond float64 `json:"requests_per_second" koanf:"requests_per_second"`

	// Burst is the rate limiter burst size.
	// Default: 10.
	Burst int `json:"burst" koanf:"burst"`

	// Concurrency bounds the per-query enrichment fan-out.
	// Default: 8.
	Concurrency int `json:"concurrency" koanf:"concurrency"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:           2 * time.Second,
		RequestsPerSecond: 20,
		Burst:             10,
		Concurrency:       8,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("enrich.timeout must be positive, got %s", c.Timeout)
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("enrich.requests_per_second must be positive, got %f", c.RequestsPerSecond)
	}
	if c.Burst < 1 {
		return fmt.Errorf("enrich.burst must be positive, got %d", c.Burst)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("enrich.concurrency must be positive, got %d", c.Concurrency)
	}
	return nil
}

// HTTPFetcher fetches enrichment over HTTP with circuit breaker and rate
// limiter protection. The breaker keeps a failing metadata service from
// adding its timeout to every candidate of every query.
type HTTPFetcher struct {
	cfg     Config
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[*recommend.Enrichment]
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// enrichmentPayload is the service's response body.
type enrichmentPayload struct {
	Plot   string `json:"plot"`
	Themes string `json:"themes"`
}

// NewHTTPFetcher creates a fetcher against the configured service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHTTPFetcher(cfg Config, logger zerolog.Logger) (*HTTPFetcher, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("enrich.base_url is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.With().Str("component", "enrich").Logger()

	cb := gobreaker.NewCircuitBreaker[*recommend.Enrichment](gobreaker.Settings{
		Name:        "enrichment-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return &HTTPFetcher{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		cb:      cb,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  log,
	}, nil
}

// Fetch retrieves enrichment for one movie. The rate limiter wait is
// bounded by the caller's context.
func (f *HTTPFetcher) Fetch(ctx context.Context, id int, title string) (*recommend.Enrichment, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	return f.cb.Execute(func() (*recommend.Enrichment, error) {
		return f.fetch(ctx, id, title)
	})
}

// fetch performs the HTTP exchange.
func (f *HTTPFetcher) fetch(ctx context.Context, id int, title string) (*recommend.Enrichment, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/v1/movies/%d/enrichment?title=%s", f.cfg.BaseURL, id, url.QueryEscape(title))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching enrichment: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	if resp.StatusCode == http.StatusNotFound {
		// Known movie without auxiliary text is a valid empty enrichment,
		// not a service failure; it must not trip the breaker.
		return &recommend.Enrichment{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("enrichment service returned status %d", resp.StatusCode)
	}

	var payload enrichmentPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding enrichment: %w", err)
	}

	return &recommend.Enrichment{Plot: payload.Plot, Themes: payload.Themes}, nil
}

// IsRejection reports whether the error is a breaker rejection rather than
// a service failure, for diagnostic logging.
func IsRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Ensure HTTPFetcher implements the interface.
var _ Fetcher = (*HTTPFetcher)(nil)

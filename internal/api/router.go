// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

// Package api provides HTTP routing and handlers using the Chi router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rrowan/cinescout/internal/config"
	"github.com/rrowan/cinescout/internal/metrics"
)

// requestIDHeader carries the request id to callers for tracing.
const requestIDHeader = "X-Request-ID"

// Router wires the recommendation handlers into an HTTP handler.
type Router struct {
	cfg     config.ServerConfig
	handler *Handler
	logger  zerolog.Logger
}

// NewRouter creates a router over the handler.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRouter(cfg config.ServerConfig, handler *Handler, logger zerolog.Logger) *Router {
	return &Router{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

// Setup configures all HTTP routes.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(rt.cfg.Timeout))
	r.Use(rt.requestLogging)

	// Health endpoints get a permissive limit so monitoring stays cheap.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/live", rt.handler.HealthLive)
		r.Get("/ready", rt.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rt.cfg.RateLimitReqs, rt.cfg.RateLimitWindow))
		r.Use(rateLimitMetrics)

		r.Post("/recommend", rt.handler.Recommend)
		r.Post("/movies", rt.handler.IngestMovie)
		r.Post("/movies/batch", rt.handler.IngestMovies)
		r.Get("/movies/{id}", rt.handler.GetMovie)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// requestID assigns a request id when the caller did not send one and
// echoes it back in the response headers.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// requestLogging records one structured log line and the Prometheus
// request metrics per request.
func (rt *Router) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		endpoint := chi.RouteContext(r.Context()).RoutePattern()
		if endpoint == "" {
			endpoint = r.URL.Path
		}
		metrics.RecordAPIRequest(r.Method, endpoint, ww.Status(), duration)

		rt.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", duration).
			Str("request_id", r.Header.Get(requestIDHeader)).
			Msg("request")
	})
}

// rateLimitMetrics counts 429 responses produced by the limiter.
func rateLimitMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if ww.Status() == http.StatusTooManyRequests {
			metrics.APIRateLimitHits.WithLabelValues(r.URL.Path).Inc()
		}
	})
}

// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/rrowan/cinescout/internal/metrics"
	"github.com/rrowan/cinescout/internal/recommend"
)

// maxBodyBytes bounds request bodies; batch ingestion payloads dominate.
const maxBodyBytes = 16 << 20

// Handler serves the recommendation API over the pipeline.
type Handler struct {
	pipeline *recommend.Pipeline
	logger   zerolog.Logger
}

// NewHandler creates a handler over the pipeline.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandler(pipeline *recommend.Pipeline, logger zerolog.Logger) *Handler {
	return &Handler{
		pipeline: pipeline,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ingestResponse acknowledges an ingestion request.
type ingestResponse struct {
	Ingested    int `json:"ingested"`
	CatalogSize int `json:"catalog_size"`
}

// Recommend handles POST /api/v1/recommend.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req recommend.Request
	if !h.decode(w, r, &req) {
		return
	}
	if req.RequestID == "" {
		req.RequestID = r.Header.Get(requestIDHeader)
	}

	resp, err := h.pipeline.Recommend(r.Context(), &req)
	if err != nil {
		if errors.Is(err, recommend.ErrNoSources) {
			metrics.RecordRecommendation("error", 0, nil, 0)
			h.writeError(w, r, http.StatusServiceUnavailable, "no retrieval sources available")
			return
		}
		metrics.RecordRecommendation("error", 0, nil, 0)
		h.logger.Error().Err(err).Msg("recommendation failed")
		h.writeError(w, r, http.StatusInternalServerError, "recommendation failed")
		return
	}

	metrics.RecordRecommendation(outcome(resp), resp.TotalCandidates,
		resp.Diagnostics.SourcesFailed, resp.Diagnostics.EnrichmentFailures)
	h.writeJSON(w, http.StatusOK, resp)
}

// outcome classifies a response for the outcome counter.
func outcome(resp *recommend.Response) string {
	switch {
	case resp.Diagnostics.EmptyQuery:
		return "empty_query"
	case len(resp.Results) == 0:
		return "no_results"
	default:
		return "ok"
	}
}

// IngestMovie handles POST /api/v1/movies.
func (h *Handler) IngestMovie(w http.ResponseWriter, r *http.Request) {
	var movie recommend.Candidate
	if !h.decode(w, r, &movie) {
		return
	}

	if err := h.pipeline.IndexMovie(r.Context(), movie); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	h.recordIngestion(1)
	h.writeJSON(w, http.StatusCreated, ingestResponse{
		Ingested:    1,
		CatalogSize: h.pipeline.Catalog().Len(),
	})
}

// IngestMovies handles POST /api/v1/movies/batch.
func (h *Handler) IngestMovies(w http.ResponseWriter, r *http.Request) {
	var movies []recommend.Candidate
	if !h.decode(w, r, &movies) {
		return
	}
	if len(movies) == 0 {
		h.writeError(w, r, http.StatusBadRequest, "batch is empty")
		return
	}

	if err := h.pipeline.IndexMovies(r.Context(), movies); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	h.recordIngestion(len(movies))
	h.writeJSON(w, http.StatusCreated, ingestResponse{
		Ingested:    len(movies),
		CatalogSize: h.pipeline.Catalog().Len(),
	})
}

// GetMovie handles GET /api/v1/movies/{id}.
func (h *Handler) GetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "movie id must be an integer")
		return
	}

	movie, ok := h.pipeline.Catalog().Get(id)
	if !ok {
		h.writeError(w, r, http.StatusNotFound, "movie not found")
		return
	}

	h.writeJSON(w, http.StatusOK, movie)
}

// HealthLive handles GET /api/v1/health/live.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady handles GET /api/v1/health/ready. The service is ready once
// the pipeline exists; an empty catalog is a valid (cold) state.
func (h *Handler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	sparseLen, denseLen := h.pipeline.IndexSizes()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"catalog_size":  h.pipeline.Catalog().Len(),
		"sparse_docs":   sparseLen,
		"dense_vectors": denseLen,
	})
}

// recordIngestion updates the ingestion counter and index gauges.
func (h *Handler) recordIngestion(count int) {
	metrics.MoviesIngested.Add(float64(count))
	sparseLen, denseLen := h.pipeline.IndexSizes()
	metrics.SetIndexSizes(sparseLen, denseLen, h.pipeline.Catalog().Len())
}

// decode reads a bounded JSON body into v, writing the error response on
// failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("encoding response")
	}
}

// writeError writes the JSON error envelope.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.writeJSON(w, status, errorResponse{
		Error:     msg,
		RequestID: r.Header.Get(requestIDHeader),
	})
}

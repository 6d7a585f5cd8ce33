// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

package api

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/rrowan/cinescout/internal/config"
	"github.com/rrowan/cinescout/internal/recommend"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	pipeline, err := recommend.NewPipeline(recommend.DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}

	cfg := config.ServerConfig{
		Timeout:         5 * time.Second,
		RateLimitReqs:   1000,
		RateLimitWindow: time.Minute,
	}
	router := NewRouter(cfg, NewHandler(pipeline, zerolog.Nop()), zerolog.Nop())

	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() }) //nolint:errcheck // test cleanup
	return resp
}

func ingestFixtures(t *testing.T, server *httptest.Server) {
	t.Helper()

	movies := []recommend.Candidate{
		{ID: 1, Title: "Midnight Heist", Year: 2021, Genres: []string{"Thriller"},
			Rating: 7.8, Popularity: 320, Overview: "a meticulous heist crew targets a tokyo vault"},
		{ID: 2, Title: "Starbound", Year: 2019, Genres: []string{"Sci-Fi"},
			Rating: 8.1, Popularity: 540, Overview: "a ragtag space crew crosses the outer rim"},
	}
	resp := postJSON(t, server.URL+"/api/v1/movies/batch", movies)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("batch ingest status = %d, want 201", resp.StatusCode)
	}
}

func TestRecommendEndpoint(t *testing.T) {
	server := newTestServer(t)
	ingestFixtures(t, server)

	resp := postJSON(t, server.URL+"/api/v1/recommend", recommend.Request{
		Profile: recommend.QueryProfile{RawText: "heist thriller"},
		K:       5,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Request-ID"); got == "" {
		t.Error("response missing X-Request-ID header")
	}

	var body recommend.Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(body.Results) == 0 {
		t.Fatal("no results for matching query")
	}
	if body.Results[0].ID != 1 {
		t.Errorf("top result = %d, want 1", body.Results[0].ID)
	}
	if body.Metadata.RequestID == "" {
		t.Error("response metadata missing request id")
	}
}

func TestRecommendEndpointEmptyQuery(t *testing.T) {
	server := newTestServer(t)
	ingestFixtures(t, server)

	resp := postJSON(t, server.URL+"/api/v1/recommend", recommend.Request{
		Profile: recommend.QueryProfile{RawText: "   "},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (empty query is a structured response)", resp.StatusCode)
	}

	var body recommend.Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !body.Diagnostics.EmptyQuery {
		t.Error("diagnostics.empty_query = false, want true")
	}
}

func TestRecommendEndpointBadJSON(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/v1/recommend", "application/json",
		bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck // test cleanup

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestIngestSingleMovie(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/v1/movies", recommend.Candidate{
		ID: 7, Title: "Blue Notes", Year: 2008,
		Overview: "a jazz musician drifts through new orleans",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var body ingestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Ingested != 1 || body.CatalogSize != 1 {
		t.Errorf("ingest response = %+v, want 1/1", body)
	}
}

func TestIngestRejectsMissingTitle(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/v1/movies", recommend.Candidate{ID: 9})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestIngestRejectsEmptyBatch(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/v1/movies/batch", []recommend.Candidate{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetMovie(t *testing.T) {
	server := newTestServer(t)
	ingestFixtures(t, server)

	t.Run("found", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/api/v1/movies/1")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		defer resp.Body.Close() //nolint:errcheck // test cleanup

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var movie recommend.Candidate
		if err := json.NewDecoder(resp.Body).Decode(&movie); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if movie.Title != "Midnight Heist" {
			t.Errorf("title = %q, want Midnight Heist", movie.Title)
		}
	})

	t.Run("not found", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/api/v1/movies/999")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		defer resp.Body.Close() //nolint:errcheck // test cleanup
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("bad id", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/api/v1/movies/abc")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		defer resp.Body.Close() //nolint:errcheck // test cleanup
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	server := newTestServer(t)

	for _, path := range []string{"/api/v1/health/live", "/api/v1/health/ready"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(server.URL + path)
			if err != nil {
				t.Fatalf("GET %s: %v", path, err)
			}
			defer resp.Body.Close() //nolint:errcheck // test cleanup
			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d, want 200", resp.StatusCode)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck // test cleanup
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	server := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/v1/health/live", nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("X-Request-ID", "caller-supplied")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck // test cleanup

	if got := resp.Header.Get("X-Request-ID"); got != "caller-supplied" {
		t.Errorf("X-Request-ID = %q, want caller-supplied", got)
	}
}

func TestRateLimit(t *testing.T) {
	pipeline, err := recommend.NewPipeline(recommend.DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	cfg := config.ServerConfig{
		Timeout:         5 * time.Second,
		RateLimitReqs:   2,
		RateLimitWindow: time.Minute,
	}
	router := NewRouter(cfg, NewHandler(pipeline, zerolog.Nop()), zerolog.Nop())
	server := httptest.NewServer(router.Setup())
	defer server.Close()

	var last int
	for i := 0; i < 5; i++ {
		resp, err := http.Get(fmt.Sprintf("%s/api/v1/movies/%d", server.URL, i))
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		last = resp.StatusCode
		resp.Body.Close() //nolint:errcheck // test cleanup
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("status after burst = %d, want 429", last)
	}
}

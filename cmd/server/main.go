// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

// Package main is the entry point for the Cinescout server.
//
// Cinescout serves hybrid movie recommendations over a REST API. Queries are
// answered by fusing a BM25 keyword index with a dense vector index, scoring
// the merged candidates on multiple relevance factors, and diversifying the
// final ranking with maximal marginal relevance.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, config file, and environment (Koanf v2)
//  2. Logging: global zerolog logger from the logging config section
//  3. Pipeline: catalog, sparse index, dense index, fusion, scoring
//  4. Snapshots: previously persisted indexes are restored from disk
//  5. Embedder: remote embedding service or local hashing fallback
//  6. Enricher (optional): auxiliary metadata client with circuit breaker
//  7. Supervision: suture tree running the HTTP server and snapshot service
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (HTTP_PORT, INDEX_DATA_DIR, EMBED_BASE_URL, ...)
//   - Config file (config.yaml, or the path in CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the HTTP server
// drains in-flight requests and the snapshot service writes a final
// snapshot before exit.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rrowan/cinescout/internal/api"
	"github.com/rrowan/cinescout/internal/config"
	"github.com/rrowan/cinescout/internal/embed"
	"github.com/rrowan/cinescout/internal/enrich"
	"github.com/rrowan/cinescout/internal/logging"
	"github.com/rrowan/cinescout/internal/metrics"
	"github.com/rrowan/cinescout/internal/recommend"
	"github.com/rrowan/cinescout/internal/recommend/reranking"
	"github.com/rrowan/cinescout/internal/supervisor"
	"github.com/rrowan/cinescout/internal/supervisor/services"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: cfg.Logging.Timestamp,
	})

	logging.Info().
		Str("data_dir", cfg.Index.DataDir).
		Int("port", cfg.Server.Port).
		Msg("Starting Cinescout")

	pipeline, err := recommend.NewPipeline(&cfg.Recommend, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create recommendation pipeline")
	}

	// Restore persisted indexes. A corrupt snapshot is fatal: serving from
	// a partially restored index would silently skew results, so the
	// operator must delete the snapshot and re-ingest.
	if err := pipeline.LoadSnapshots(cfg.Index.DataDir); err != nil {
		if errors.Is(err, recommend.ErrIndexCorruption) {
			logging.Fatal().Err(err).
				Str("data_dir", cfg.Index.DataDir).
				Msg("Index snapshot is corrupt; remove it and re-ingest the catalog")
		}
		logging.Fatal().Err(err).Msg("Failed to load index snapshots")
	}
	sparseLen, denseLen := pipeline.IndexSizes()
	metrics.SetIndexSizes(sparseLen, denseLen, pipeline.Catalog().Len())
	logging.Info().
		Int("catalog", pipeline.Catalog().Len()).
		Int("sparse_docs", sparseLen).
		Int("dense_vectors", denseLen).
		Msg("Index snapshots loaded")

	embedder, err := embed.New(cfg.Embed, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create embedder")
	}
	pipeline.SetEmbedder(embedder)
	if cfg.Embed.BaseURL != "" {
		logging.Info().Str("url", cfg.Embed.BaseURL).Msg("Remote embedding service enabled")
	} else {
		logging.Info().Int("dimension", cfg.Embed.Dimension).Msg("Local hashing embedder enabled")
	}

	// Enrichment is optional: without a base URL the pipeline scores
	// candidates on catalog metadata alone.
	if cfg.Enrich.BaseURL != "" {
		fetcher, err := enrich.NewHTTPFetcher(cfg.Enrich, logging.Logger())
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create enrichment fetcher")
		}
		pipeline.SetEnricher(enrich.NewEnricher(fetcher, cfg.Enrich.Concurrency, logging.Logger()))
		logging.Info().Str("url", cfg.Enrich.BaseURL).Msg("Enrichment service enabled")
	} else {
		logging.Info().Msg("Enrichment disabled - scoring on catalog metadata only")
	}

	pipeline.RegisterSelector(reranking.NewMMR(cfg.Recommend.Diversity.Lambda))

	handler := api.NewHandler(pipeline, logging.Logger())
	router := api.NewRouter(cfg.Server, handler, logging.Logger())

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     router.Setup(),
		ReadTimeout: cfg.Server.Timeout,
	}

	// sutureslog needs an slog.Logger; bridge it to the global zerolog.
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddAPIService(services.NewHTTPServerService(server, supervisor.DefaultTreeConfig().ShutdownTimeout))
	tree.AddIndexService(services.NewSnapshotService(
		pipeline,
		cfg.Index.DataDir,
		cfg.Index.SnapshotInterval,
		metrics.MarkSnapshotSaved,
		logging.Logger(),
	))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Server starting")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
		os.Exit(1)
	}

	logging.Info().Msg("Server stopped")
}

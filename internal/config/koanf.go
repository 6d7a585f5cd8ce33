// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cinescout/config.yaml",
	"/etc/cinescout/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load loads configuration with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
//
// Precedence is ENV > file > defaults. The loaded configuration is
// validated before being returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, honoring CONFIG_PATH first.
// Returns an empty string when no file exists; the loader then runs on
// defaults plus environment only.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables return an empty string and are skipped, so stray
// environment variables never pollute the configuration.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - INDEX_DATA_DIR -> index.data_dir
//   - RECOMMEND_DIVERSITY_LAMBDA -> recommend.diversity.lambda
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_host":           "server.host",
		"http_port":           "server.port",
		"http_timeout":        "server.timeout",
		"rate_limit_requests": "server.rate_limit_reqs",
		"rate_limit_window":   "server.rate_limit_window",

		// Index mappings
		"index_data_dir":          "index.data_dir",
		"index_snapshot_interval": "index.snapshot_interval",

		// Recommendation mappings
		"recommend_weight_semantic":        "recommend.weights.semantic",
		"recommend_weight_genre":           "recommend.weights.genre",
		"recommend_weight_rating":          "recommend.weights.rating",
		"recommend_weight_recency":         "recommend.weights.recency",
		"recommend_weight_popularity":      "recommend.weights.popularity",
		"recommend_weight_keyword_match":   "recommend.weights.keyword_match",
		"recommend_weight_auxiliary_match": "recommend.weights.auxiliary_match",
		"recommend_recency_tau":            "recommend.scoring.recency_tau",
		"recommend_popularity_ref_max":     "recommend.scoring.popularity_ref_max",
		"recommend_bonus_threshold":        "recommend.scoring.bonus_threshold",
		"recommend_bonus_factor":           "recommend.scoring.bonus_factor",
		"recommend_fusion_kappa":           "recommend.fusion.kappa",
		"recommend_diversity_lambda":       "recommend.diversity.lambda",
		"recommend_default_k":              "recommend.limits.default_k",
		"recommend_max_k":                  "recommend.limits.max_k",
		"recommend_retrieval_depth":        "recommend.limits.retrieval_depth",
		"recommend_max_candidates":         "recommend.limits.max_candidates",

		// Enrichment mappings
		"enrich_base_url":    "enrich.base_url",
		"enrich_timeout":     "enrich.timeout",
		"enrich_rps":         "enrich.requests_per_second",
		"enrich_burst":       "enrich.burst",
		"enrich_concurrency": "enrich.concurrency",

		// Embedding mappings
		"embed_base_url":  "embed.base_url",
		"embed_model":     "embed.model",
		"embed_dimension": "embed.dimension",
		"embed_timeout":   "embed.timeout",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	return ""
}

// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

// Package config defines the service configuration and its layered loader.
package config

import (
	"fmt"
	"time"

	"github.com/rrowan/cinescout/internal/embed"
	"github.com/rrowan/cinescout/internal/enrich"
	"github.com/rrowan/cinescout/internal/logging"
	"github.com/rrowan/cinescout/internal/recommend"
)

// Config is the root service configuration.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `json:"server" koanf:"server"`

	// Index configures index persistence.
	Index IndexConfig `json:"index" koanf:"index"`

	// Recommend configures the recommendation pipeline.
	Recommend recommend.Config `json:"recommend" koanf:"recommend"`

	// Enrich configures the auxiliary metadata client.
	Enrich enrich.Config `json:"enrich" koanf:"enrich"`

	// Embed configures the embedding backend.
	Embed embed.Config `json:"embed" koanf:"embed"`

	// Logging configures the structured logger.
	Logging logging.Config `json:"logging" koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Host is the bind address.
	// Default: 0.0.0.0.
	Host string `json:"host" koanf:"host"`

	// Port is the listen port.
	// Default: 8480.
	Port int `json:"port" koanf:"port"`

	// Timeout bounds request handling.
	// Default: 30s.
	Timeout time.Duration `json:"timeout" koanf:"timeout"`

	// RateLimitReqs is the per-client request budget per window.
	// Default: 100.
	RateLimitReqs int `json:"rate_limit_reqs" koanf:"rate_limit_reqs"`

	// RateLimitWindow is the rate limit window.
	// Default: 1m.
	RateLimitWindow time.Duration `json:"rate_limit_window" koanf:"rate_limit_window"`
}

// IndexConfig configures index persistence.
type IndexConfig struct {
	// DataDir is the directory holding index and catalog snapshots.
	// Default: /data/cinescout.
	DataDir string `json:"data_dir" koanf:"data_dir"`

	// SnapshotInterval is how often indexes are persisted in the
	// background. Zero disables periodic snapshots; a final snapshot is
	// still written on shutdown.
	// Default: 15m.
	SnapshotInterval time.Duration `json:"snapshot_interval" koanf:"snapshot_interval"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// layered first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8480,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Index: IndexConfig{
			DataDir:          "/data/cinescout",
			SnapshotInterval: 15 * time.Minute,
		},
		Recommend: *recommend.DefaultConfig(),
		Enrich:    enrich.DefaultConfig(),
		Embed:     embed.DefaultConfig(),
		Logging:   logging.DefaultConfig(),
	}
}

// Validate checks the configuration for errors. Configuration errors are
// fatal at startup.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	if c.Server.RateLimitReqs < 1 {
		return fmt.Errorf("server.rate_limit_reqs must be positive, got %d", c.Server.RateLimitReqs)
	}
	if c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("server.rate_limit_window must be positive, got %s", c.Server.RateLimitWindow)
	}

	if c.Index.DataDir == "" {
		return fmt.Errorf("index.data_dir is required")
	}
	if c.Index.SnapshotInterval < 0 {
		return fmt.Errorf("index.snapshot_interval must not be negative, got %s", c.Index.SnapshotInterval)
	}

	if err := c.Recommend.Validate(); err != nil {
		return err
	}
	if err := c.Enrich.Validate(); err != nil {
		return err
	}
	if err := c.Embed.Validate(); err != nil {
		return err
	}

	return nil
}

// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SnapshotSaver persists index state to a directory.
// Satisfied by *recommend.Pipeline.
type SnapshotSaver interface {
	SaveSnapshots(dir string) error
}

// SnapshotService periodically saves index snapshots under a supervisor.
// A final save runs on shutdown so restarts never lose more than one
// interval of ingestion.
type SnapshotService struct {
	saver    SnapshotSaver
	dir      string
	interval time.Duration
	onSaved  func()
	logger   zerolog.Logger
	name     string
}

// NewSnapshotService creates a snapshot service. An interval of zero or
// less disables periodic saves; only the shutdown save runs. onSaved is
// called after each successful save and may be nil.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSnapshotService(saver SnapshotSaver, dir string, interval time.Duration, onSaved func(), logger zerolog.Logger) *SnapshotService {
	return &SnapshotService{
		saver:    saver,
		dir:      dir,
		interval: interval,
		onSaved:  onSaved,
		logger:   logger.With().Str("service", "snapshot").Logger(),
		name:     "snapshot-service",
	}
}

// Serve implements the suture.Service interface.
func (s *SnapshotService) Serve(ctx context.Context) error {
	s.logger.Info().
		Str("dir", s.dir).
		Dur("interval", s.interval).
		Msg("snapshot service starting")

	if s.interval <= 0 {
		<-ctx.Done()
		s.saveFinal()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.saveFinal()
			return ctx.Err()

		case <-ticker.C:
			s.save()
		}
	}
}

// save writes one snapshot, logging failures without crashing the service.
// A transient disk error should not trigger a supervisor restart loop.
func (s *SnapshotService) save() {
	start := time.Now()
	if err := s.saver.SaveSnapshots(s.dir); err != nil {
		s.logger.Error().Err(err).Msg("snapshot save failed")
		return
	}
	if s.onSaved != nil {
		s.onSaved()
	}
	s.logger.Info().Dur("duration", time.Since(start)).Msg("snapshot saved")
}

// saveFinal runs the shutdown save.
func (s *SnapshotService) saveFinal() {
	s.logger.Info().Msg("snapshot service shutting down, saving final snapshot")
	s.save()
}

// String returns the service name for logging.
func (s *SnapshotService) String() string {
	return s.name
}

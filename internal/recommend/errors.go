// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

package recommend

import (
	"errors"
	"fmt"
)

// Failure taxonomy. Only index corruption and configuration errors are fatal
// to the caller; source and enrichment failures degrade gracefully and are
// reported as diagnostics on the response.
var (
	// ErrIndexCorruption indicates a persisted index snapshot failed its
	// integrity check and must be rebuilt or reloaded from a good snapshot.
	ErrIndexCorruption = errors.New("index snapshot corrupt")

	// ErrNoSources indicates no retrieval source is configured.
	ErrNoSources = errors.New("no retrieval sources configured")
)

// SourceError reports that a single retrieval source was unavailable.
// The query continues with the remaining sources.
type SourceError struct {
	// Source is the failing source name ("sparse", "dense").
	Source string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	return fmt.Sprintf("retrieval source %s unavailable: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error {
	return e.Err
}

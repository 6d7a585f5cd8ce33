// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

package recommend

import "sync"

// Catalog is the process-wide movie metadata store backing both indices.
// Retrieval sources return bare ids; the pipeline materializes full
// candidates from the catalog. The catalog is created at startup (loaded
// from a snapshot or empty), mutated only by explicit upserts, and
// persisted on shutdown.
//
// Upserts are serialized; reads proceed concurrently.
type Catalog struct {
	mu     sync.RWMutex
	movies map[int]Candidate
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{movies: make(map[int]Candidate)}
}

// Upsert stores a movie record, overwriting any existing record with the
// same id. Per-query provenance is not persisted.
func (c *Catalog) Upsert(m Candidate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upsertLocked(m)
}

// UpsertBatch stores multiple movie records through the same code path as
// Upsert, so single-item and batch ingestion converge to identical state.
func (c *Catalog) UpsertBatch(ms []Candidate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range ms {
		c.upsertLocked(ms[i])
	}
}

// upsertLocked stores one record. Must be called with mu held.
func (c *Catalog) upsertLocked(m Candidate) {
	m.Sources = nil
	c.movies[m.ID] = m
}

// Get returns the movie record for id.
func (c *Catalog) Get(id int) (Candidate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.movies[id]
	return m, ok
}

// Len returns the number of stored movies.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.movies)
}

// Export returns a copy of the catalog contents for persistence.
func (c *Catalog) Export() map[int]Candidate {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[int]Candidate, len(c.movies))
	for id, m := range c.movies {
		out[id] = m
	}
	return out
}

// Restore replaces the catalog contents from a persisted snapshot.
func (c *Catalog) Restore(movies map[int]Candidate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.movies = make(map[int]Candidate, len(movies))
	for id, m := range movies {
		c.movies[id] = m
	}
}

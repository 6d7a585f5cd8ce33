// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

// Package dense implements an exact-nearest-neighbor vector index over
// movie embeddings using cosine similarity.
//
// Vectors are L2-normalized at insertion so a search reduces to a dot
// product. The scan is brute force; at catalog scale (tens of thousands of
// movies) this stays well under a millisecond and avoids the recall
// variance of approximate structures.
package dense

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rrowan/cinescout/internal/recommend/storage"
)

// Hit is a ranked search result. Score is cosine similarity in [-1, 1].
type Hit struct {
	ID    int
	Score float64
}

// Index is a thread-safe exact vector index. Writes are serialized;
// searches proceed concurrently against a consistent view.
type Index struct {
	mu sync.RWMutex

	// dim is fixed by the first inserted vector.
	dim int

	// ids preserves insertion order, which breaks score ties so results
	// are stable across identical runs.
	ids []int

	// vectors maps id -> normalized embedding.
	vectors map[int][]float32
}

// snapshot is the gob-persisted form of the index.
type snapshot struct {
	Dim     int
	IDs     []int
	Vectors map[int][]float32
}

// New creates an empty index.
func New() *Index {
	return &Index{vectors: make(map[int][]float32)}
}

// Add inserts a vector under id, replacing any existing vector with the
// same id. The vector is normalized on insertion. Returns an error for an
// empty or zero-magnitude vector, or a dimension mismatch with vectors
// already in the index.
func (idx *Index) Add(id int, vec []float32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.addLocked(id, vec)
}

// AddBatch inserts multiple vectors through the same code path as Add.
// Stops at the first invalid vector and reports it; vectors already
// inserted remain.
func (idx *Index) AddBatch(vecs map[int][]float32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ids := make([]int, 0, len(vecs))
	for id := range vecs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		if err := idx.addLocked(id, vecs[id]); err != nil {
			return fmt.Errorf("vector %d: %w", id, err)
		}
	}
	return nil
}

// addLocked is the single insertion path. Must be called with mu held.
func (idx *Index) addLocked(id int, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty vector")
	}
	if idx.dim == 0 {
		idx.dim = len(vec)
	} else if len(vec) != idx.dim {
		return fmt.Errorf("dimension mismatch: got %d, index has %d", len(vec), idx.dim)
	}

	normalized, err := normalize(vec)
	if err != nil {
		return err
	}

	if _, exists := idx.vectors[id]; !exists {
		idx.ids = append(idx.ids, id)
	}
	idx.vectors[id] = normalized
	return nil
}

// Len returns the number of indexed vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Dimension returns the index vector dimension, 0 when empty.
func (idx *Index) Dimension() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dim
}

// Search returns the top limit hits by cosine similarity to query,
// descending, ties broken by insertion order. Returns an error on
// dimension mismatch; an empty index or nil query returns no hits.
func (idx *Index) Search(query []float32, limit int) ([]Hit, error) {
	if len(query) == 0 || limit <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.vectors) == 0 {
		return nil, nil
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), idx.dim)
	}

	q, err := normalize(query)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(idx.ids))
	for _, id := range idx.ids {
		hits = append(hits, Hit{ID: id, Score: dot(q, idx.vectors[id])})
	}

	// Stable sort preserves insertion order among equal scores.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Save persists the index to path.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	snap := snapshot{Dim: idx.dim, IDs: idx.ids, Vectors: idx.vectors}
	return storage.Save(path, "dense", len(idx.vectors), &snap)
}

// Load restores the index from path, replacing current contents. The
// index is left unchanged on any error.
func (idx *Index) Load(path string) error {
	var snap snapshot
	if _, err := storage.Load(path, &snap); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if snap.Vectors == nil {
		snap.Vectors = make(map[int][]float32)
	}
	idx.dim = snap.Dim
	idx.ids = snap.IDs
	idx.vectors = snap.Vectors
	return nil
}

// normalize returns vec scaled to unit length.
func normalize(vec []float32) ([]float32, error) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return nil, fmt.Errorf("zero-magnitude vector")
	}

	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) * inv)
	}
	return out, nil
}

// dot computes the dot product of two equal-length vectors.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

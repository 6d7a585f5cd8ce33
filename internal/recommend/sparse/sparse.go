// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

// Package sparse implements a BM25-ranked inverted index over movie text.
//
// Documents are tokenized once at index time; the same tokenizer must be
// applied to queries by the caller so both sides agree on term identity.
// Adding a document whose id is already indexed replaces the previous
// version completely, so re-ingestion is idempotent.
package sparse

import (
	"math"
	"sort"
	"sync"

	"github.com/rrowan/cinescout/internal/recommend/storage"
)

// BM25 free parameters. K1 controls term-frequency saturation, B the
// strength of document-length normalization.
const (
	k1 = 1.5
	b  = 0.75
)

// Hit is a ranked search result.
type Hit struct {
	ID    int
	Score float64
}

// Index is a thread-safe BM25 inverted index. Writes are serialized;
// searches proceed concurrently against a consistent view.
type Index struct {
	mu sync.RWMutex

	// postings maps term -> docID -> term frequency.
	postings map[string]map[int]int

	// docLengths maps docID -> token count.
	docLengths map[int]int

	// totalTokens is the sum of all document lengths, kept incrementally
	// so average length is O(1) at query time.
	totalTokens int
}

// snapshot is the gob-persisted form of the index.
type snapshot struct {
	Postings    map[string]map[int]int
	DocLengths  map[int]int
	TotalTokens int
}

// New creates an empty index.
func New() *Index {
	return &Index{
		postings:   make(map[string]map[int]int),
		docLengths: make(map[int]int),
	}
}

// Add indexes a document's tokens under id, replacing any existing
// document with the same id.
func (idx *Index) Add(id int, tokens []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.addLocked(id, tokens)
}

// AddBatch indexes multiple documents through the same code path as Add,
// so batch and repeated single-document ingestion produce identical state.
func (idx *Index) AddBatch(docs map[int][]string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	// Deterministic insertion order; postings state is order-independent
	// but iteration order should not leak into anything observable.
	ids := make([]int, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		idx.addLocked(id, docs[id])
	}
}

// addLocked is the single ingestion path. Must be called with mu held.
func (idx *Index) addLocked(id int, tokens []string) {
	if _, exists := idx.docLengths[id]; exists {
		idx.removeLocked(id)
	}

	idx.docLengths[id] = len(tokens)
	idx.totalTokens += len(tokens)

	for _, term := range tokens {
		posting, ok := idx.postings[term]
		if !ok {
			posting = make(map[int]int)
			idx.postings[term] = posting
		}
		posting[id]++
	}
}

// removeLocked removes all postings for id. Must be called with mu held.
func (idx *Index) removeLocked(id int) {
	idx.totalTokens -= idx.docLengths[id]
	delete(idx.docLengths, id)

	for term, posting := range idx.postings {
		if _, ok := posting[id]; ok {
			delete(posting, id)
			if len(posting) == 0 {
				delete(idx.postings, term)
			}
		}
	}
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docLengths)
}

// Search scores all documents matching any query token and returns the top
// limit hits ordered by BM25 score descending, ties broken by ascending id.
// Scores are min-max rescaled to [0, 1] within the result set; they are
// comparable within one response, not across queries. Unseen query terms
// contribute nothing. An empty query or empty index returns no hits.
func (idx *Index) Search(tokens []string, limit int) []Hit {
	if len(tokens) == 0 || limit <= 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.docLengths)
	if n == 0 {
		return nil
	}
	avgLen := float64(idx.totalTokens) / float64(n)

	scores := make(map[int]float64)
	for _, term := range tokens {
		posting, ok := idx.postings[term]
		if !ok {
			continue
		}

		// idf with +1 smoothing keeps common terms non-negative.
		df := float64(len(posting))
		idf := math.Log((float64(n)-df+0.5)/(df+0.5) + 1)

		for id, tf := range posting {
			docLen := float64(idx.docLengths[id])
			norm := k1 * (1 - b + b*docLen/avgLen)
			scores[id] += idf * (float64(tf) * (k1 + 1)) / (float64(tf) + norm)
		}
	}

	if len(scores) == 0 {
		return nil
	}

	hits := make([]Hit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, Hit{ID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}

	rescale(hits)
	return hits
}

// rescale min-max normalizes hit scores in place. A degenerate range (all
// scores equal) maps every hit to 1.
func rescale(hits []Hit) {
	if len(hits) == 0 {
		return
	}

	minScore, maxScore := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < minScore {
			minScore = h.Score
		}
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}

	span := maxScore - minScore
	for i := range hits {
		if span == 0 {
			hits[i].Score = 1
			continue
		}
		hits[i].Score = (hits[i].Score - minScore) / span
	}
}

// Save persists the index to path.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	snap := snapshot{
		Postings:    idx.postings,
		DocLengths:  idx.docLengths,
		TotalTokens: idx.totalTokens,
	}
	return storage.Save(path, "sparse", len(idx.docLengths), &snap)
}

// Load restores the index from path, replacing current contents. A
// checksum failure surfaces as storage.ErrCorrupt; the index is left
// unchanged on any error.
func (idx *Index) Load(path string) error {
	var snap snapshot
	if _, err := storage.Load(path, &snap); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if snap.Postings == nil {
		snap.Postings = make(map[string]map[int]int)
	}
	if snap.DocLengths == nil {
		snap.DocLengths = make(map[int]int)
	}
	idx.postings = snap.Postings
	idx.docLengths = snap.DocLengths
	idx.totalTokens = snap.TotalTokens
	return nil
}

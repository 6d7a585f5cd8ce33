// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

// Package reranking implements diversity selection over scored candidates.
package reranking

import (
	"context"
	"strings"

	"github.com/rrowan/cinescout/internal/recommend"
)

// maxSelectSize limits slice allocations to prevent excessive memory usage.
// k is also bounded by len(items).
const maxSelectSize = 10000

// MMR implements Maximal Marginal Relevance selection.
// It balances relevance and diversity by iteratively selecting candidates
// that are both high-scoring and dissimilar to already selected ones.
//
// The MMR objective is:
//
//	MMR = argmax[lambda * score(i) - (1-lambda) * max(sim(i, s)) for s in selected]
//
// Where:
//   - lambda: balance parameter (1.0 = pure relevance, 0.0 = pure diversity)
//   - score(i): composite score for candidate i
//   - sim(i, s): pairwise similarity between candidate i and selected s
//
// Similarity uses embedding cosine when both candidates carry embeddings,
// falling back to genre Jaccard otherwise, so selection degrades gracefully
// when the embedding source is unavailable.
//
// Reference:
// Carbonell, J., & Goldstein, J. (1998). "The Use of MMR, Diversity-Based
// Reranking for Reordering Documents and Producing Summaries." SIGIR 1998.
type MMR struct {
	// lambda balances relevance vs. diversity (0.0 to 1.0)
	lambda float64
}

// NewMMR creates a new MMR selector. Lambda is clamped to [0, 1].
func NewMMR(lambda float64) *MMR {
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}
	return &MMR{lambda: lambda}
}

// Name returns the selector identifier.
func (m *MMR) Name() string {
	return "mmr"
}

// Select greedily picks k candidates maximizing the MMR objective. Input
// must already be ordered by composite descending; the first pick is
// always items[0]. Tied MMR scores resolve to the earlier input position,
// which is the higher-composite (then lower-id) candidate, so selection is
// deterministic for identical inputs.
func (m *MMR) Select(ctx context.Context, items []recommend.ScoredCandidate, k int) []recommend.ScoredCandidate {
	if len(items) == 0 || k <= 0 {
		return nil
	}

	if k > maxSelectSize {
		k = maxSelectSize
	}
	if k > len(items) {
		k = len(items)
	}

	// Pure relevance short-circuits the similarity matrix entirely.
	if m.lambda >= 1.0 {
		return items[:k]
	}

	similarities := buildSimilarityMatrix(items)

	selected := make([]recommend.ScoredCandidate, 0, k)
	selectedIndices := make(map[int]struct{}, k)

	for len(selected) < k {
		if ctx.Err() != nil {
			break
		}

		bestIdx := -1
		bestMMR := 0.0

		for i := range items {
			if _, ok := selectedIndices[i]; ok {
				continue
			}

			maxSim := 0.0
			for j := range selectedIndices {
				if sim := similarities[i][j]; sim > maxSim {
					maxSim = sim
				}
			}

			mmrScore := m.lambda*items[i].Composite - (1-m.lambda)*maxSim

			// Strict > keeps the earliest (highest-composite) index on ties.
			if bestIdx < 0 || mmrScore > bestMMR {
				bestMMR = mmrScore
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			break
		}

		selected = append(selected, items[bestIdx])
		selectedIndices[bestIdx] = struct{}{}
	}

	return selected
}

// buildSimilarityMatrix computes pairwise candidate similarity.
func buildSimilarityMatrix(items []recommend.ScoredCandidate) [][]float64 {
	n := len(items)
	similarities := make([][]float64, n)
	for i := range similarities {
		similarities[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim := pairSimilarity(&items[i].Candidate, &items[j].Candidate)
			similarities[i][j] = sim
			similarities[j][i] = sim
		}
	}

	return similarities
}

// pairSimilarity prefers embedding cosine, rescaled from [-1, 1] to [0, 1]
// so it shares a range with Jaccard. Falls back to genre Jaccard when
// either embedding is missing.
func pairSimilarity(a, b *recommend.Candidate) float64 {
	if len(a.Embedding) > 0 && len(b.Embedding) > 0 && len(a.Embedding) == len(b.Embedding) {
		return (recommend.Cosine(a.Embedding, b.Embedding) + 1) / 2
	}
	return genreJaccard(a.Genres, b.Genres)
}

// genreJaccard computes Jaccard similarity between genre lists.
func genreJaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(a))
	for _, g := range a {
		setA[strings.ToLower(g)] = struct{}{}
	}

	setB := make(map[string]struct{}, len(b))
	for _, g := range b {
		setB[strings.ToLower(g)] = struct{}{}
	}

	intersection := 0
	for g := range setA {
		if _, ok := setB[g]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}

// Ensure MMR implements the interface.
var _ recommend.Selector = (*MMR)(nil)

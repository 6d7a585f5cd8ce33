// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

// Package fusion merges ranked lists from heterogeneous retrieval sources
// with reciprocal rank fusion. RRF uses only rank positions, never raw
// scores, so BM25 and cosine lists combine without cross-source score
// calibration.
package fusion

import "sort"

// DefaultKappa is the standard RRF smoothing constant.
const DefaultKappa = 60

// Ranked is one fused result.
type Ranked struct {
	// ID is the document id.
	ID int

	// Score is the summed reciprocal rank contribution across lists.
	Score float64

	// Rank is the 1-based position in the fused ordering.
	Rank int
}

// RRF fuses ranked id lists: each id accumulates 1/(kappa+rank) per list
// it appears in, with rank starting at 1. Output is ordered by fused score
// descending, ties broken by ascending id. A kappa below 1 falls back to
// DefaultKappa. Empty input lists contribute nothing; ids absent from a
// list receive no contribution from it.
func RRF(kappa int, lists ...[]int) []Ranked {
	if kappa < 1 {
		kappa = DefaultKappa
	}

	scores := make(map[int]float64)
	for _, list := range lists {
		for i, id := range list {
			scores[id] += 1 / float64(kappa+i+1)
		}
	}

	if len(scores) == 0 {
		return nil
	}

	fused := make([]Ranked, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, Ranked{ID: id, Score: score})
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ID < fused[j].ID
	})

	for i := range fused {
		fused[i].Rank = i + 1
	}
	return fused
}

// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

package recommend

// MergeCandidates merges per-source candidate lists into one de-duplicated
// set keyed by id. Lists are processed in argument order, which fixes the
// field-conflict precedence: the first source to report a field wins for
// overwritable fields, while auxiliary text is additive — once any source
// supplies plot or theme text it is retained even if a later-merged source
// has none. A candidate is never dropped because one contributing source
// lacked fields (e.g. a failed auxiliary fetch).
//
// Output order is the first-seen order across the input lists, so merging
// is deterministic for identical inputs.
func MergeCandidates(lists ...[]Candidate) []Candidate {
	byID := make(map[int]*Candidate)
	order := make([]int, 0)

	for _, list := range lists {
		for i := range list {
			c := &list[i]
			existing, ok := byID[c.ID]
			if !ok {
				merged := *c
				merged.Sources = append([]string(nil), c.Sources...)
				byID[c.ID] = &merged
				order = append(order, c.ID)
				continue
			}
			mergeInto(existing, c)
		}
	}

	out := make([]Candidate, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

// mergeInto folds src into dst. dst was seen first, so its reported fields
// take precedence; src only fills gaps.
func mergeInto(dst, src *Candidate) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.Year == 0 {
		dst.Year = src.Year
	}
	if len(dst.Genres) == 0 {
		dst.Genres = src.Genres
	}
	if dst.Rating == 0 {
		dst.Rating = src.Rating
	}
	if dst.Popularity == 0 {
		dst.Popularity = src.Popularity
	}
	if dst.Overview == "" {
		dst.Overview = src.Overview
	}
	if len(dst.Embedding) == 0 {
		dst.Embedding = src.Embedding
	}

	// Auxiliary text is additive: absence never overwrites presence.
	if dst.Plot == "" {
		dst.Plot = src.Plot
	}
	if dst.Themes == "" {
		dst.Themes = src.Themes
	}

	for _, s := range src.Sources {
		if !dst.HasSource(s) {
			dst.Sources = append(dst.Sources, s)
		}
	}
}

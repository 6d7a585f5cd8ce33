// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

package recommend

import (
	"strings"
	"unicode"
)

// stopWords are excluded from extracted keyword sets. Keyword-dependent
// sub-scores must stay defined (zero) when filtering empties the set.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "of": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "and": {}, "or": {}, "but": {}, "me": {},
	"about": {}, "i": {}, "is": {}, "it": {}, "that": {}, "this": {},
	"with": {}, "some": {}, "something": {},
}

// Tokenize lowercases text and splits it into alphanumeric tokens.
// It is the single tokenization used by the sparse index and all
// keyword-matching sub-scores, so index-time and query-time views agree.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	lower := strings.ToLower(text)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TokenSet returns the distinct tokens of a text.
func TokenSet(text string) map[string]struct{} {
	tokens := Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// ExtractKeywords tokenizes raw query text and removes stop words,
// preserving first-seen order and deduplicating. It is the fallback used
// when the external query-understanding collaborator supplies no keywords.
func ExtractKeywords(raw string) []string {
	tokens := Tokenize(raw)
	if len(tokens) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(tokens))
	keywords := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, stop := stopWords[t]; stop {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		keywords = append(keywords, t)
	}

	return keywords
}

// fractionFound returns the fraction of keywords present in the token set.
// Returns 0 for an empty keyword set.
func fractionFound(keywords []string, tokens map[string]struct{}) float64 {
	if len(keywords) == 0 {
		return 0
	}

	found := 0
	for _, kw := range keywords {
		if _, ok := tokens[kw]; ok {
			found++
		}
	}

	return float64(found) / float64(len(keywords))
}

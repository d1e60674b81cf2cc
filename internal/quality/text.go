// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package quality scores generated drafts. Every scorer is a pure function of
// its text input; callers decide what the scores mean for a draft's status.
package quality

import (
	"regexp"
	"strings"
)

var (
	// tagRegex strips HTML tags left in generated bodies.
	tagRegex = regexp.MustCompile(`<[^>]*>`)
	// wordRegex matches a word token, keeping inner apostrophes.
	wordRegex = regexp.MustCompile(`[\p{L}\p{N}]+(?:'[\p{L}]+)?`)
)

// Report is the result of a single scorer.
type Report struct {
	Score     int      `json:"score"`
	Issues    []string `json:"issues"`
	Strengths []string `json:"strengths"`
}

func (r *Report) penalize(points int, issue string) {
	r.Score -= points
	r.Issues = append(r.Issues, issue)
}

func (r *Report) reward(points int, strength string) {
	r.Score += points
	r.Strengths = append(r.Strengths, strength)
}

func (r *Report) clamp() {
	if r.Score < 0 {
		r.Score = 0
	}
	if r.Score > 100 {
		r.Score = 100
	}
}

// tokenize lowercases text and splits it into word tokens.
func tokenize(text string) []string {
	text = tagRegex.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "’", "'")
	return wordRegex.FindAllString(strings.ToLower(text), -1)
}

// phrase is a pre-tokenized lexicon entry.
type phrase struct {
	text   string
	tokens []string
}

func phrases(entries ...string) []phrase {
	out := make([]phrase, 0, len(entries))
	for _, e := range entries {
		if toks := tokenize(e); len(toks) > 0 {
			out = append(out, phrase{text: e, tokens: toks})
		}
	}
	return out
}

// matchAt reports whether ph occurs in words starting at index i.
func (ph phrase) matchAt(words []string, i int) bool {
	if i < 0 || i+len(ph.tokens) > len(words) {
		return false
	}
	for j, tok := range ph.tokens {
		if words[i+j] != tok {
			return false
		}
	}
	return true
}

// occurrences returns the start indices of non-overlapping matches of any phrase.
// Longer phrases win when two start at the same index.
func occurrences(words []string, lexicon []phrase) []int {
	var idx []int
	for i := 0; i < len(words); {
		matched := 0
		for _, ph := range lexicon {
			if len(ph.tokens) > matched && ph.matchAt(words, i) {
				matched = len(ph.tokens)
			}
		}
		if matched > 0 {
			idx = append(idx, i)
			i += matched
			continue
		}
		i++
	}
	return idx
}

// without returns words with every lexicon match removed, using the same
// longest-match scan as occurrences.
func without(words []string, lexicon []phrase) []string {
	out := make([]string, 0, len(words))
	for i := 0; i < len(words); {
		matched := 0
		for _, ph := range lexicon {
			if len(ph.tokens) > matched && ph.matchAt(words, i) {
				matched = len(ph.tokens)
			}
		}
		if matched > 0 {
			i += matched
			continue
		}
		out = append(out, words[i])
		i++
	}
	return out
}

// containsAny reports whether any phrase starts within words[from:to).
func containsAny(words []string, lexicon []phrase, from, to int) bool {
	if from < 0 {
		from = 0
	}
	if to > len(words) {
		to = len(words)
	}
	for i := from; i < to; i++ {
		for _, ph := range lexicon {
			if ph.matchAt(words, i) {
				return true
			}
		}
	}
	return false
}

// distinctHits counts how many lexicon entries appear at least once.
func distinctHits(words []string, lexicon []phrase) []string {
	var hits []string
	for _, ph := range lexicon {
		for i := range words {
			if ph.matchAt(words, i) {
				hits = append(hits, ph.text)
				break
			}
		}
	}
	return hits
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package quality

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const headlineBase = 50

var powerWords = map[string]bool{
	"proven": true, "ultimate": true, "essential": true, "easy": true,
	"effortless": true, "fast": true, "quick": true, "simple": true,
	"secret": true, "secrets": true, "powerful": true, "complete": true,
	"definitive": true, "surprising": true, "instantly": true, "boost": true,
	"master": true, "mistakes": true, "avoid": true, "critical": true,
	"remarkable": true, "smart": true, "free": true, "new": true,
}

var (
	questionStart = regexp.MustCompile(`^(what|why|when|where|who|which|can|should|is|are|do|does|will)\b|^how (do|does|can|much|many|long|often|is|are)\b`)
	seoPatterns   = []*regexp.Regexp{
		regexp.MustCompile(`\bhow to\b`),
		regexp.MustCompile(`\bwhy\b`),
		regexp.MustCompile(`\bguide\b`),
		regexp.MustCompile(`\bwhat is\b`),
		regexp.MustCompile(`\bbest\b`),
		regexp.MustCompile(`\b(tips|ways|steps|examples|ideas|strategies)\b`),
		regexp.MustCompile(`\bstep[- ]by[- ]step\b`),
		regexp.MustCompile(`\bchecklist\b`),
		regexp.MustCompile(`\b(vs|versus)\b`),
		regexp.MustCompile(`\bfor (beginners|teams|startups|small business(es)?)\b`),
	}
)

// stopWords are ignored when comparing a headline with its idea title.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "for": true, "from": true,
	"how": true, "in": true, "into": true, "is": true, "it": true, "of": true,
	"on": true, "or": true, "the": true, "to": true, "with": true, "you": true,
	"your": true, "our": true, "this": true, "that": true, "what": true,
	"why": true, "can": true, "will": true, "at": true, "by": true, "be": true,
}

// ScoreHeadline rates a title's search and attention strength against the
// title of the idea it was generated from. Base 50, clamped to [0,100].
func ScoreHeadline(headline, ideaTitle string) Report {
	r := Report{Score: headlineBase}
	headline = strings.TrimSpace(headline)
	lower := strings.ToLower(headline)
	words := tokenize(headline)

	chars := utf8.RuneCountInString(headline)
	switch {
	case chars >= 50 && chars <= 60:
		r.reward(10, fmt.Sprintf("ideal length (%d chars)", chars))
	case chars >= 40 && chars <= 70:
		r.reward(5, fmt.Sprintf("acceptable length (%d chars)", chars))
	case chars > 80:
		r.penalize(15, fmt.Sprintf("too long (%d chars)", chars))
	case chars < 30:
		r.penalize(10, fmt.Sprintf("too short (%d chars)", chars))
	}

	n := len(words)
	switch {
	case n >= 5 && n <= 9:
		r.reward(10, fmt.Sprintf("ideal word count (%d)", n))
	case n >= 4 && n <= 12:
		r.reward(5, fmt.Sprintf("acceptable word count (%d)", n))
	case n > 15:
		r.penalize(10, fmt.Sprintf("too many words (%d)", n))
	case n < 3:
		r.penalize(10, fmt.Sprintf("too few words (%d)", n))
	}

	for _, w := range words {
		if powerWords[w] {
			r.reward(15, fmt.Sprintf("uses power word %q", w))
			break
		}
	}
	if strings.HasSuffix(headline, "?") || questionStart.MatchString(lower) {
		r.reward(10, "phrased as a question")
	}

	if strings.IndexFunc(headline, unicode.IsDigit) >= 0 {
		r.reward(5, "contains a number")
	}

	seo := 0
	for _, re := range seoPatterns {
		if re.MatchString(lower) {
			seo++
		}
	}
	switch {
	case seo >= 2:
		r.reward(10, fmt.Sprintf("%d search patterns", seo))
	case seo == 1:
		r.reward(5, "1 search pattern")
	default:
		r.Issues = append(r.Issues, "no search patterns")
	}

	shared := sharedSignificantWords(words, tokenize(ideaTitle))
	switch {
	case shared >= 2:
		r.reward(10, fmt.Sprintf("shares %d key words with the idea", shared))
	case shared == 1:
		r.reward(5, "shares 1 key word with the idea")
	default:
		r.Issues = append(r.Issues, "drifts from the idea title")
	}

	r.clamp()
	return r
}

// sharedSignificantWords counts distinct non-stopword tokens present in both lists.
func sharedSignificantWords(a, b []string) int {
	inB := make(map[string]bool, len(b))
	for _, w := range b {
		if isSignificant(w) {
			inB[w] = true
		}
	}
	seen := make(map[string]bool)
	count := 0
	for _, w := range a {
		if inB[w] && !seen[w] {
			seen[w] = true
			count++
		}
	}
	return count
}

func isSignificant(w string) bool {
	return utf8.RuneCountInString(w) > 2 && !stopWords[w]
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package quality

import "encoding/json"

// Assessment bundles both scorer reports for one draft.
type Assessment struct {
	Nativeness Report `json:"nativeness"`
	Headline   Report `json:"headline"`
}

// Assess runs both scorers over a finished draft.
func Assess(body, headline, ideaTitle string, offerTerms []string) Assessment {
	return Assessment{
		Nativeness: ScoreNativeness(body, offerTerms),
		Headline:   ScoreHeadline(headline, ideaTitle),
	}
}

// Meets reports whether both scores reach the given thresholds.
func (a Assessment) Meets(minNativeness, minHeadline int) bool {
	return a.Nativeness.Score >= minNativeness && a.Headline.Score >= minHeadline
}

// JSON encodes the assessment for storage alongside the draft.
func (a Assessment) JSON() string {
	b, err := json.Marshal(a)
	if err != nil {
		return "{}"
	}
	return string(b)
}

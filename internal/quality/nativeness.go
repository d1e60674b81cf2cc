// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package quality

import (
	"fmt"
	"strings"
)

// Nativeness penalties
const (
	penaltyNoMention        = 30
	penaltyOverPromotion    = 15
	penaltyEarlyMention     = 20
	penaltyNoTransition     = 25
	penaltyAbruptTransition = 20
	penaltySalesPressure    = 30
	penaltyHighPressure     = 15
	penaltyLateOfferShort   = 15
	penaltyNoSolutionNearby = 10

	maxMentions          = 3
	highPressureHits     = 5
	minPrecedingRatio    = 0.70
	strongPrecedingRatio = 0.85

	// Word windows around the offer mention.
	transitionWindow  = 50
	contextWindow     = 30
	coOccurrenceRange = 10
)

var transitionPhrases = phrases(
	"one option is",
	"another option is",
	"one option",
	"can help with",
	"can help",
	"one way to",
	"one approach is",
	"a tool like",
	"tools like",
	"a solution like",
	"one solution is",
	"this is where",
	"that's where",
	"consider using",
	"you might try",
	"it's worth looking at",
	"for example",
	"such as",
)

var problemLanguage = phrases(
	"problem", "problems", "struggle", "struggling", "challenge", "challenges",
	"pain", "painful", "frustrating", "frustration", "difficult", "hard",
	"issue", "issues", "mistake", "mistakes", "bottleneck", "slow", "waste",
	"wasted", "costly", "risk", "fail", "failing", "broken", "stuck", "manual",
)

var solutionLanguage = phrases(
	"solution", "solutions", "solve", "solves", "tool", "tools", "option",
	"options", "can", "helps", "help", "platform", "approach", "automate",
	"automates", "simplify", "simplifies", "streamline", "streamlines", "lets",
)

// pressureLanguage is urgency, discount and imperative purchase vocabulary.
var pressureLanguage = phrases(
	"buy now", "buy today", "purchase now", "purchase today", "order now",
	"subscribe now", "sign up now", "sign up today", "act now", "hurry",
	"limited time", "last chance", "don't miss", "ends soon", "only today",
	"while supplies last", "before it's too late", "discount", "coupon",
	"promo code", "special offer", "exclusive deal", "save big", "sale ends",
	"risk free", "guaranteed results",
)

// ScoreNativeness measures how unobtrusively the offer is woven into text.
// offerTerms are the product name and aliases. The score starts at 100 and
// penalties are floored at 0.
func ScoreNativeness(text string, offerTerms []string) Report {
	r := Report{Score: 100}
	words := tokenize(text)

	if hits := distinctHits(words, pressureLanguage); len(hits) > 0 {
		r.penalize(penaltySalesPressure, fmt.Sprintf("sales-pressure vocabulary present: %s", strings.Join(hits, ", ")))
		if len(hits) > highPressureHits {
			r.penalize(penaltyHighPressure, fmt.Sprintf("high volume of sales pressure (%d distinct phrases)", len(hits)))
		}
	} else {
		r.Strengths = append(r.Strengths, "no sales-pressure vocabulary")
	}

	// Pressure phrases are scored above and take no part in the structural
	// checks, so they can never supply problem context or push the offer later.
	words = without(words, pressureLanguage)
	total := len(words)

	mentions := occurrences(words, phrases(offerTerms...))

	if len(mentions) == 0 {
		r.penalize(penaltyNoMention, "offer is never mentioned")
		r.clamp()
		return r
	}

	if len(mentions) > maxMentions {
		r.penalize(penaltyOverPromotion, fmt.Sprintf("offer mentioned %d times (over-promotion)", len(mentions)))
	} else {
		r.Strengths = append(r.Strengths, fmt.Sprintf("offer mentioned %d time(s)", len(mentions)))
	}

	// A mention at word index i is in the first third when 3*i < total.
	if 3*mentions[0] < total {
		r.penalize(penaltyEarlyMention, "offer mentioned in the first third, before the problem is explored")
	}

	final := mentions[len(mentions)-1]

	if !containsAny(words, transitionPhrases, final-transitionWindow, final) {
		r.penalize(penaltyNoTransition, "no solution-framing transition before the final offer mention")
	} else {
		r.Strengths = append(r.Strengths, "offer introduced with a transition phrase")
	}

	problemBefore := containsAny(words, problemLanguage, final-contextWindow, final)
	solutionAfter := containsAny(words, solutionLanguage, final+1, final+1+contextWindow)
	if !problemBefore || !solutionAfter {
		r.penalize(penaltyAbruptTransition, "abrupt shift from problem context to offer")
	}

	ratio := float64(final) / float64(total)
	switch {
	case ratio < minPrecedingRatio:
		r.penalize(penaltyLateOfferShort, fmt.Sprintf("only %.0f%% of the text precedes the offer section", ratio*100))
	case ratio >= strongPrecedingRatio:
		r.Strengths = append(r.Strengths, fmt.Sprintf("%.0f%% of the text builds context before the offer", ratio*100))
	}

	bare := 0
	for _, m := range mentions {
		if !containsAny(words, solutionLanguage, m-coOccurrenceRange, m+coOccurrenceRange+1) {
			bare++
		}
	}
	if bare > 0 {
		r.penalize(penaltyNoSolutionNearby, fmt.Sprintf("%d offer mention(s) lack nearby solution context", bare))
	}

	r.clamp()
	return r
}

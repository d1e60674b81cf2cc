// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package classify maps a backlog idea to the content template used to draft it.
//
// Classification is a pure function of the idea text: the same title,
// description and category always yield the same template, so regenerating a
// draft reuses the template picked the first time unless the idea changed.
package classify

import (
	"regexp"
	"strings"

	"github.com/olegiv/ocms-pipeline/internal/model"
)

// TemplateType names a content template.
type TemplateType string

// Template types, in tie-break priority order.
const (
	TypeProblemLed TemplateType = "problem_led"
	TypeTutorial   TemplateType = "tutorial"
	TypeComparison TemplateType = "comparison"
	TypeListicle   TemplateType = "listicle"
	TypeFAQ        TemplateType = "faq"
	TypeGeneric    TemplateType = "generic"
)

// priority is the fixed tie-break order. Earlier wins.
var priority = []TemplateType{
	TypeProblemLed,
	TypeTutorial,
	TypeComparison,
	TypeListicle,
	TypeFAQ,
	TypeGeneric,
}

// Scoring weights
const (
	titleWeight       = 2.0
	descriptionWeight = 1.0
	categoryPrior     = 1.5

	// LowConfidence is the confidence below which a classification is worth flagging.
	LowConfidence = 0.25
)

// pattern is a single weighted marker of a template signature.
type pattern struct {
	re     *regexp.Regexp
	weight float64
}

func p(expr string, weight float64) pattern {
	return pattern{re: regexp.MustCompile(expr), weight: weight}
}

// signatures holds the competing template markers.
var signatures = map[TemplateType][]pattern{
	TypeProblemLed: {
		p(`\bwhy\b`, 1),
		p(`\bstruggl\w*`, 2),
		p(`\bproblems?\b`, 2),
		p(`\bmistakes?\b`, 1.5),
		p(`\bfail\w*`, 1.5),
		p(`\bpain\w*`, 1.5),
		p(`\bfrustrat\w*`, 2),
		p(`\bwrong\b`, 1.5),
		p(`\bfix\w*`, 1),
		p(`\bavoid\w*`, 1),
		p(`\bchalleng\w*`, 1.5),
		p(`\bbottlenecks?\b`, 1.5),
		p(`\bstop\b`, 1),
	},
	TypeTutorial: {
		p(`\bhow to\b`, 3),
		p(`\bstep[- ]by[- ]step\b`, 3),
		p(`\bguide\b`, 2),
		p(`\btutorial\b`, 3),
		p(`\bwalk ?through\b`, 2),
		p(`\bset ?up\b`, 1.5),
		p(`\bconfigur\w*`, 1.5),
		p(`\bbuild\w*`, 1),
		p(`\bcreat\w*`, 1),
		p(`\blearn\b`, 1),
	},
	TypeComparison: {
		p(`\bvs\.?(\s|$)`, 3),
		p(`\bversus\b`, 3),
		p(`\bcompar\w*`, 2.5),
		p(`\balternatives?\b`, 2.5),
		p(`\bbetter than\b`, 2),
		p(`\bdifferences? between\b`, 2.5),
		p(`\bpros and cons\b`, 2),
		p(`\bwhich (one|is better)\b`, 1.5),
	},
	TypeListicle: {
		p(`^\d+\s`, 3),
		p(`\b\d+\s+(ways|tips|reasons|tools|ideas|steps|mistakes|examples|strategies|tricks|lessons|signs)\b`, 3),
		p(`\btop\s+\d+\b`, 2.5),
		p(`\bbest\b`, 1),
		p(`\blist of\b`, 2),
		p(`\bchecklist\b`, 1.5),
	},
	TypeFAQ: {
		p(`\?\s*$`, 2),
		p(`^(what|why|when|where|who|which|can|does|do|is|are|should)\b`, 1.5),
		p(`^how (do|does|can|much|many|long|often|is|are)\b`, 1.5),
		p(`\bfaqs?\b`, 3),
		p(`\bfrequently asked\b`, 3),
		p(`\bquestions\b`, 1.5),
		p(`\bwhat is\b`, 1.5),
	},
}

// categoryPriors nudges the template choice toward the idea's category.
var categoryPriors = map[model.Category]TemplateType{
	model.CategoryPain:    TypeProblemLed,
	model.CategoryTrigger: TypeProblemLed,
	model.CategoryGoal:    TypeTutorial,
	model.CategoryFeature: TypeTutorial,
	model.CategoryBenefit: TypeComparison,
	model.CategoryFAQ:     TypeFAQ,
}

// Result is the outcome of a classification.
type Result struct {
	Type       TemplateType             `json:"type"`
	Confidence float64                  `json:"confidence"` // (top - second) / top, 0 when nothing matched
	Margin     float64                  `json:"margin"`     // top - second, raw weight units
	Scores     map[TemplateType]float64 `json:"scores"`
}

// IsLowConfidence reports whether the winner barely beat the runner-up.
func (r Result) IsLowConfidence() bool {
	return r.Confidence < LowConfidence
}

// Classify picks the content template for an idea. It never fails: when no
// signature matches, the generic template is returned with zero confidence.
func Classify(title, description string, category model.Category) Result {
	title = normalize(title)
	description = normalize(description)

	scores := make(map[TemplateType]float64, len(priority))
	for _, tt := range priority {
		if tt == TypeGeneric {
			continue
		}
		var score float64
		for _, pat := range signatures[tt] {
			if title != "" && pat.re.MatchString(title) {
				score += pat.weight * titleWeight
			}
			if description != "" && pat.re.MatchString(description) {
				score += pat.weight * descriptionWeight
			}
		}
		if prior, ok := categoryPriors[category]; ok && prior == tt {
			score += categoryPrior
		}
		scores[tt] = score
	}

	// Strict comparisons keep the earlier type on ties.
	best := TypeGeneric
	var bestScore, secondScore float64
	for _, tt := range priority {
		score := scores[tt]
		switch {
		case score > bestScore:
			secondScore = bestScore
			best, bestScore = tt, score
		case score > secondScore:
			secondScore = score
		}
	}

	if bestScore == 0 {
		return Result{Type: TypeGeneric, Scores: scores}
	}

	margin := bestScore - secondScore
	return Result{
		Type:       best,
		Confidence: margin / bestScore,
		Margin:     margin,
		Scores:     scores,
	}
}

// normalize lowercases and collapses whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package generator

import (
	"fmt"
	"strings"

	"github.com/olegiv/ocms-pipeline/internal/classify"
)

// templateGuidance shapes the article per detected template type.
var templateGuidance = map[classify.TemplateType]string{
	classify.TypeProblemLed: "Open with the reader's problem and its cost. Explore the causes before " +
		"discussing any fix. Introduce solutions only in the final third.",
	classify.TypeTutorial: "Write a step-by-step tutorial with numbered steps, prerequisites, and a " +
		"short troubleshooting section.",
	classify.TypeComparison: "Compare the options fairly with a criteria table, the strengths and " +
		"weaknesses of each, and a recommendation per use case.",
	classify.TypeListicle: "Write a numbered list article. Every item gets a heading and two or " +
		"three sentences of concrete advice.",
	classify.TypeFAQ: "Write question-and-answer pairs. Every question is a level-3 heading followed " +
		"by a direct answer.",
	classify.TypeGeneric: "Write a well-structured informational article with an introduction, " +
		"several sections, and a conclusion.",
}

// buildSystemPrompt creates the system prompt for draft generation.
func buildSystemPrompt(req Request) string {
	lang := req.Context.Language
	if lang == "" {
		lang = "en"
	}

	return fmt.Sprintf(`You are an expert content writer and SEO specialist. You write content in the language with code %q.

You must respond with a valid JSON object (no markdown code fences, no extra text) with exactly these fields:

{
  "title": "An engaging, search-friendly title between 50 and 60 characters",
  "outline": "The section headings, one per line",
  "content": "The full article in Markdown. Use ## and ### headings, lists, and emphasis. Minimum 600 words.",
  "format": "article, website_page or faq"
}

Important rules:
- Do not use a level-1 heading (the title is displayed separately)
- %s
- Mention the product at most three times and only in the last part of the article
- Introduce the product as one option among others, with a phrase such as "one option is"
- Never use sales pressure: no discounts, deadlines, "buy now" or similar calls
- Respond ONLY with the JSON object, no other text`, lang, guidanceFor(req.TemplateType))
}

func guidanceFor(t classify.TemplateType) string {
	if g, ok := templateGuidance[t]; ok {
		return g
	}
	return templateGuidance[classify.TypeGeneric]
}

// buildUserPrompt creates the user prompt for draft generation.
func buildUserPrompt(req Request) string {
	var sb strings.Builder
	pc := req.Context

	fmt.Fprintf(&sb, "Write an article about: %s\n\n", req.Title)

	if req.Description != "" {
		fmt.Fprintf(&sb, "Angle: %s\n", req.Description)
	}
	if req.Category != "" {
		fmt.Fprintf(&sb, "Idea category: %s\n", req.Category)
	}
	if pc.Persona != "" {
		fmt.Fprintf(&sb, "Target audience: %s\n", pc.Persona)
	}
	if pc.Tone != "" {
		fmt.Fprintf(&sb, "Tone: %s\n", pc.Tone)
	}
	if len(req.Keywords) > 0 {
		fmt.Fprintf(&sb, "Keywords to cover: %s\n", strings.Join(req.Keywords, ", "))
	}
	if pc.ProductName != "" {
		fmt.Fprintf(&sb, "Product: %s\n", pc.ProductName)
		if pc.ValueProposition != "" {
			fmt.Fprintf(&sb, "What the product does: %s\n", pc.ValueProposition)
		}
	}

	return sb.String()
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package generator drafts articles through an external text-generation
// service. The pipeline depends only on the Generator interface; the OpenAI
// adapter works against any OpenAI-compatible endpoint.
package generator

import (
	"context"
	"errors"

	"github.com/olegiv/ocms-pipeline/internal/classify"
	"github.com/olegiv/ocms-pipeline/internal/model"
)

// Request is everything a generator needs to draft one idea.
type Request struct {
	IdeaID       string
	Title        string
	Description  string
	Category     model.Category
	TemplateType classify.TemplateType
	Keywords     []string
	Context      model.ProjectContext
}

// Usage describes the cost of one generation call.
type Usage struct {
	Provider         string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	CostUSD          float64
}

// Result is a generated draft.
type Result struct {
	Title   string
	Outline string
	Content string // Markdown
	Format  model.ContentFormat
	Usage   Usage
}

// Generator produces a draft for a request. Implementations may block for
// seconds and must honor ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Describer is implemented by generators that can name their backend for
// the usage ledger.
type Describer interface {
	Describe() (provider, model string)
}

// ErrNotConfigured is returned by Disabled.
var ErrNotConfigured = errors.New("text generation is not configured")

// Disabled is the generator used when no provider credentials are set.
// Every request fails, so drafts are reported as GenerationFailed.
type Disabled struct{}

// Generate implements Generator.
func (Disabled) Generate(context.Context, Request) (*Result, error) {
	return nil, ErrNotConfigured
}

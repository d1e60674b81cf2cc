// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/olegiv/ocms-pipeline/internal/classify"
	"github.com/olegiv/ocms-pipeline/internal/model"
)

// ErrIncompleteContent is returned when the response lacks a title or body.
var ErrIncompleteContent = errors.New("incomplete content: title and content are required")

type generatedContent struct {
	Title   string `json:"title"`
	Outline string `json:"outline"`
	Content string `json:"content"`
	Format  string `json:"format"`
}

// parseGeneratedContent extracts the JSON draft from a model response,
// tolerating code fences and surrounding prose.
func parseGeneratedContent(response string, templateType classify.TemplateType) (*Result, error) {
	var gc generatedContent
	cleaned := strings.TrimSpace(response)

	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	if err := json.Unmarshal([]byte(cleaned), &gc); err != nil {
		start := strings.Index(response, "{")
		end := strings.LastIndex(response, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("no JSON found in response: %w", err)
		}
		if err2 := json.Unmarshal([]byte(response[start:end+1]), &gc); err2 != nil {
			return nil, fmt.Errorf("could not parse JSON from response: %w (original: %w)", err2, err)
		}
	}

	gc.Title = strings.TrimSpace(gc.Title)
	gc.Content = strings.TrimSpace(gc.Content)
	if gc.Title == "" || gc.Content == "" {
		return nil, ErrIncompleteContent
	}

	format := model.ParseFormat(strings.TrimSpace(gc.Format))
	if gc.Format == "" && templateType == classify.TypeFAQ {
		format = model.FormatFAQ
	}

	return &Result{
		Title:   gc.Title,
		Outline: strings.TrimSpace(gc.Outline),
		Content: gc.Content,
		Format:  format,
	}, nil
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package publish

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mozillazg/go-unidecode"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/olegiv/ocms-pipeline/internal/model"
)

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	// Generated text is untrusted. Only UGC-safe markup reaches the endpoint.
	sanitizer = bluemonday.UGCPolicy()

	slugInvalid     = regexp.MustCompile(`[^a-z0-9-]+`)
	multipleHyphens = regexp.MustCompile(`-{2,}`)
)

// maxSlugLength keeps slugs readable in URLs.
const maxSlugLength = 80

// RenderHTML converts Markdown to sanitized HTML.
func RenderHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return sanitizer.Sanitize(buf.String()), nil
}

// Slugify converts a title to a URL slug, transliterating non-Latin scripts.
func Slugify(s string) string {
	result := strings.ToLower(unidecode.Unidecode(s))
	result = strings.ReplaceAll(result, " ", "-")
	result = slugInvalid.ReplaceAllString(result, "-")
	result = multipleHyphens.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")

	if len(result) > maxSlugLength {
		result = strings.TrimRight(result[:maxSlugLength], "-")
	}
	return result
}

// BuildPost assembles the payload for a ready content item.
func BuildPost(item *model.ContentItem, scheduledFor time.Time) (Post, error) {
	html, err := RenderHTML(item.Content)
	if err != nil {
		return Post{}, err
	}
	slug := Slugify(item.Title)
	if slug == "" {
		slug = item.BacklogIdeaID
	}
	return Post{
		IdeaID:       item.BacklogIdeaID,
		ContentID:    item.ID,
		ProjectID:    item.ProjectID,
		HypothesisID: item.HypothesisID,
		Title:        item.Title,
		Slug:         slug,
		Format:       item.Format,
		Category:     item.Category,
		Outline:      item.Outline,
		Markdown:     item.Content,
		HTML:         html,
		ScheduledFor: scheduledFor.UTC(),
	}, nil
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
)

// ContentStatus is the lifecycle state of a ContentItem.
type ContentStatus string

// Content statuses
const (
	ContentStatusDraft     ContentStatus = "draft"
	ContentStatusReview    ContentStatus = "review"
	ContentStatusReady     ContentStatus = "ready"
	ContentStatusPublished ContentStatus = "published"
)

// approvalSteps is the only forward path through review.
var approvalSteps = map[ContentStatus]ContentStatus{
	ContentStatusDraft:  ContentStatusReview,
	ContentStatusReview: ContentStatusReady,
}

// Valid reports whether s is a known content status.
func (s ContentStatus) Valid() bool {
	switch s {
	case ContentStatusDraft, ContentStatusReview, ContentStatusReady, ContentStatusPublished:
		return true
	}
	return false
}

// NextApproval returns the status an approval moves s to.
// ok is false when s has no approval step (ready, published).
func (s ContentStatus) NextApproval() (next ContentStatus, ok bool) {
	next, ok = approvalSteps[s]
	return next, ok
}

// CanRegenerate reports whether new generated text may overwrite an item in s.
func (s ContentStatus) CanRegenerate() bool {
	return s != ContentStatusPublished
}

// ContentFormat is the shape of the generated body.
type ContentFormat string

// Content formats
const (
	FormatArticle     ContentFormat = "article"
	FormatWebsitePage ContentFormat = "website_page"
	FormatFAQ         ContentFormat = "faq"
)

// ParseFormat maps free text to a known format, defaulting to article.
func ParseFormat(s string) ContentFormat {
	switch ContentFormat(s) {
	case FormatWebsitePage, FormatFAQ:
		return ContentFormat(s)
	default:
		return FormatArticle
	}
}

// ContentItem is the generated article body for a BacklogIdea.
type ContentItem struct {
	ID            string         `json:"id"`
	BacklogIdeaID string         `json:"backlog_idea_id"`
	ProjectID     string         `json:"project_id"`
	HypothesisID  string         `json:"hypothesis_id"`
	Title         string         `json:"title"`
	Outline       string         `json:"outline"`
	Content       string         `json:"content"`
	Category      Category       `json:"category"`
	Format        ContentFormat  `json:"format"`
	Status        ContentStatus  `json:"status"`
	QualityScore  int            `json:"quality_score"`
	HeadlineScore int            `json:"headline_score"`
	QualityReport string         `json:"quality_report"` // JSON
	PublishedRef  sql.NullString `json:"published_ref"`
	PublishedURL  sql.NullString `json:"published_url"`
	PublishedAt   sql.NullTime   `json:"published_at"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// IsPublished returns true once a remote post exists for the item.
func (c *ContentItem) IsPublished() bool {
	return c.PublishedRef.Valid && c.PublishedRef.String != ""
}

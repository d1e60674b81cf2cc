// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"

	"github.com/olegiv/ocms-pipeline/internal/model"
)

const contentColumns = `id, backlog_idea_id, project_id, hypothesis_id, title, outline, content,
	category, format, status, quality_score, headline_score, quality_report,
	published_ref, published_url, published_at, created_at, updated_at`

func scanContentItem(s scanner) (model.ContentItem, error) {
	var c model.ContentItem
	err := s.Scan(
		&c.ID,
		&c.BacklogIdeaID,
		&c.ProjectID,
		&c.HypothesisID,
		&c.Title,
		&c.Outline,
		&c.Content,
		&c.Category,
		&c.Format,
		&c.Status,
		&c.QualityScore,
		&c.HeadlineScore,
		&c.QualityReport,
		&c.PublishedRef,
		&c.PublishedURL,
		&c.PublishedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

// GetContentItem returns sql.ErrNoRows when id is unknown.
func (q *Queries) GetContentItem(ctx context.Context, id string) (model.ContentItem, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM content_items WHERE id = ?`, id)
	return scanContentItem(row)
}

// GetContentItemByIdea returns the item linked to an idea.
func (q *Queries) GetContentItemByIdea(ctx context.Context, ideaID string) (model.ContentItem, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM content_items WHERE backlog_idea_id = ?`, ideaID)
	return scanContentItem(row)
}

// UpsertContentItemParams carries a freshly generated and scored draft.
type UpsertContentItemParams struct {
	ID            string // used only when the idea has no item yet
	BacklogIdeaID string
	ProjectID     string
	HypothesisID  string
	Title         string
	Outline       string
	Content       string
	Category      model.Category
	Format        model.ContentFormat
	QualityScore  int
	HeadlineScore int
	QualityReport string
	Now           time.Time
}

// UpsertContentItem creates the idea's item or overwrites its generated
// fields, resetting it to draft. Published items are never overwritten.
func (q *Queries) UpsertContentItem(ctx context.Context, arg UpsertContentItemParams) (model.ContentItem, error) {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO content_items (
			id, backlog_idea_id, project_id, hypothesis_id, title, outline, content,
			category, format, status, quality_score, headline_score, quality_report,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 'draft', ?, ?, ?, ?, ?)
		ON CONFLICT (backlog_idea_id) DO UPDATE SET
			title = excluded.title,
			outline = excluded.outline,
			content = excluded.content,
			category = excluded.category,
			format = excluded.format,
			status = 'draft',
			quality_score = excluded.quality_score,
			headline_score = excluded.headline_score,
			quality_report = excluded.quality_report,
			updated_at = excluded.updated_at
		WHERE content_items.published_ref IS NULL`,
		arg.ID,
		arg.BacklogIdeaID,
		arg.ProjectID,
		arg.HypothesisID,
		arg.Title,
		arg.Outline,
		arg.Content,
		arg.Category,
		arg.Format,
		arg.QualityScore,
		arg.HeadlineScore,
		arg.QualityReport,
		arg.Now,
		arg.Now,
	)
	if err != nil {
		return model.ContentItem{}, err
	}
	return q.GetContentItemByIdea(ctx, arg.BacklogIdeaID)
}

// UpdateContentStatusParams is a status compare-and-set.
type UpdateContentStatusParams struct {
	ID        string
	From      model.ContentStatus
	To        model.ContentStatus
	UpdatedAt time.Time
}

// UpdateContentStatus moves the item From -> To, reporting false if it was
// not in From.
func (q *Queries) UpdateContentStatus(ctx context.Context, arg UpdateContentStatusParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE content_items SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		arg.To, arg.UpdatedAt, arg.ID, arg.From,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// SetContentPublishedParams records the remote post.
type SetContentPublishedParams struct {
	ID           string
	PublishedRef string
	PublishedURL string
	PublishedAt  time.Time
}

// SetContentPublished stores the remote reference once. It reports false when
// a reference is already present or the item is not ready.
func (q *Queries) SetContentPublished(ctx context.Context, arg SetContentPublishedParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE content_items
		SET status = 'published', published_ref = ?, published_url = ?,
		    published_at = ?, updated_at = ?
		WHERE id = ? AND published_ref IS NULL AND status = 'ready'`,
		arg.PublishedRef, arg.PublishedURL, arg.PublishedAt, arg.PublishedAt, arg.ID,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/olegiv/ocms-pipeline/internal/model"
)

const ideaColumns = `id, project_id, hypothesis_id, cluster_id, title, normalized_title,
	description, category, status, status_before, scheduled_date, in_progress_since,
	template_type, template_confidence, created_at, updated_at, claim_token, publishing_since`

func scanIdea(s scanner) (model.BacklogIdea, error) {
	var i model.BacklogIdea
	err := s.Scan(
		&i.ID,
		&i.ProjectID,
		&i.HypothesisID,
		&i.ClusterID,
		&i.Title,
		&i.NormalizedTitle,
		&i.Description,
		&i.Category,
		&i.Status,
		&i.StatusBefore,
		&i.ScheduledDate,
		&i.InProgressSince,
		&i.TemplateType,
		&i.TemplateConfidence,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.ClaimToken,
		&i.PublishingSince,
	)
	return i, err
}

func (q *Queries) listIdeas(ctx context.Context, query string, args ...any) ([]model.BacklogIdea, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.BacklogIdea
	for rows.Next() {
		i, err := scanIdea(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateIdeaParams holds the columns of a new idea.
type CreateIdeaParams struct {
	ID                 string
	ProjectID          string
	HypothesisID       string
	ClusterID          sql.NullString
	Title              string
	NormalizedTitle    string
	Description        string
	Category           model.Category
	TemplateType       string
	TemplateConfidence float64
	CreatedAt          time.Time
}

// CreateIdea inserts a pending idea. A concurrent active duplicate surfaces as
// a UNIQUE violation (see IsUniqueViolation).
func (q *Queries) CreateIdea(ctx context.Context, arg CreateIdeaParams) (model.BacklogIdea, error) {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO backlog_ideas (
			id, project_id, hypothesis_id, cluster_id, title, normalized_title,
			description, category, status, template_type, template_confidence,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?, ?, ?, ?)`,
		arg.ID,
		arg.ProjectID,
		arg.HypothesisID,
		arg.ClusterID,
		arg.Title,
		arg.NormalizedTitle,
		arg.Description,
		arg.Category,
		arg.TemplateType,
		arg.TemplateConfidence,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	if err != nil {
		return model.BacklogIdea{}, err
	}
	return q.GetIdea(ctx, arg.ID)
}

// GetIdea returns sql.ErrNoRows when id is unknown.
func (q *Queries) GetIdea(ctx context.Context, id string) (model.BacklogIdea, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+ideaColumns+` FROM backlog_ideas WHERE id = ?`, id)
	return scanIdea(row)
}

// FindActiveIdeaParams identifies a dedup scope.
type FindActiveIdeaParams struct {
	ProjectID       string
	HypothesisID    string
	Category        model.Category
	NormalizedTitle string
}

// FindActiveIdea looks up a non-archived idea by its dedup key.
func (q *Queries) FindActiveIdea(ctx context.Context, arg FindActiveIdeaParams) (model.BacklogIdea, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+ideaColumns+` FROM backlog_ideas
		WHERE project_id = ? AND hypothesis_id = ? AND category = ?
		  AND normalized_title = ? AND status <> 'archived'`,
		arg.ProjectID, arg.HypothesisID, arg.Category, arg.NormalizedTitle,
	)
	return scanIdea(row)
}

// ListIdeasParams filters ideas. Empty fields match everything.
type ListIdeasParams struct {
	ProjectID    string
	HypothesisID string
	Status       model.IdeaStatus
	Limit        int64
	Offset       int64
}

// ListIdeas returns ideas newest first.
func (q *Queries) ListIdeas(ctx context.Context, arg ListIdeasParams) ([]model.BacklogIdea, error) {
	limit := arg.Limit
	if limit <= 0 {
		limit = -1
	}
	return q.listIdeas(ctx, `
		SELECT `+ideaColumns+` FROM backlog_ideas
		WHERE (?1 = '' OR project_id = ?1)
		  AND (?2 = '' OR hypothesis_id = ?2)
		  AND (?3 = '' OR status = ?3)
		ORDER BY created_at DESC, id
		LIMIT ?4 OFFSET ?5`,
		arg.ProjectID, arg.HypothesisID, string(arg.Status), limit, arg.Offset,
	)
}

// ListIdeasByStatus returns every idea in status, oldest first.
func (q *Queries) ListIdeasByStatus(ctx context.Context, status model.IdeaStatus) ([]model.BacklogIdea, error) {
	return q.listIdeas(ctx, `
		SELECT `+ideaColumns+` FROM backlog_ideas
		WHERE status = ?
		ORDER BY created_at, id`,
		status,
	)
}

// ScheduleIdeaParams moves an idea onto a date.
type ScheduleIdeaParams struct {
	ID            string
	ScheduledDate time.Time
	UpdatedAt     time.Time
}

// ScheduleIdea sets status=scheduled from pending or scheduled.
// It reports false when the idea was in any other state.
func (q *Queries) ScheduleIdea(ctx context.Context, arg ScheduleIdeaParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE backlog_ideas
		SET status = 'scheduled', scheduled_date = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'scheduled')`,
		arg.ScheduledDate, arg.UpdatedAt, arg.ID,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// UnscheduleIdea moves a scheduled idea back to pending and clears its date.
// An idea that is being published is left alone.
func (q *Queries) UnscheduleIdea(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE backlog_ideas
		SET status = 'pending', scheduled_date = NULL, updated_at = ?
		WHERE id = ? AND status = 'scheduled' AND publishing_since IS NULL`,
		now, id,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// ClaimIdeaParams is the compare-and-set that starts a draft request.
// Token identifies the request in later updates.
type ClaimIdeaParams struct {
	ID       string
	Expected model.IdeaStatus
	Token    string
	Now      time.Time
}

// ClaimIdeaForDraft atomically moves the idea from Expected to in_progress,
// remembering Expected so it can be restored. Only one caller can win, and
// an idea that is being published cannot be claimed.
func (q *Queries) ClaimIdeaForDraft(ctx context.Context, arg ClaimIdeaParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE backlog_ideas
		SET status = 'in_progress', status_before = status, in_progress_since = ?,
		    claim_token = ?, updated_at = ?
		WHERE id = ? AND status = ? AND status IN ('pending', 'scheduled')
		  AND publishing_since IS NULL`,
		arg.Now, arg.Token, arg.Now, arg.ID, arg.Expected,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// ReleaseIdeaDraft ends a draft request that failed, restoring the
// pre-request status. It reports false when the request no longer owns the idea.
func (q *Queries) ReleaseIdeaDraft(ctx context.Context, id, token string, now time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE backlog_ideas
		SET status = COALESCE(status_before, 'pending'), status_before = NULL,
		    in_progress_since = NULL, claim_token = NULL, updated_at = ?
		WHERE id = ? AND status = 'in_progress' AND COALESCE(claim_token, '') = ?`,
		now, id, token,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// ReturnIdeaToPending ends the in-progress request identified by token with
// the idea pending. It serves both successful drafts and stale recovery.
func (q *Queries) ReturnIdeaToPending(ctx context.Context, id, token string, now time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE backlog_ideas
		SET status = 'pending', status_before = NULL, in_progress_since = NULL,
		    claim_token = NULL, updated_at = ?
		WHERE id = ? AND status = 'in_progress' AND COALESCE(claim_token, '') = ?`,
		now, id, token,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// ClaimPublishParams is the compare-and-set that starts a publish.
// A claim older than StaleBefore belongs to a dead request and may be taken.
type ClaimPublishParams struct {
	ID          string
	Token       string
	Now         time.Time
	StaleBefore time.Time
}

// ClaimIdeaForPublish marks a scheduled idea as being published. While the
// mark is held the idea cannot be drafted or unscheduled.
func (q *Queries) ClaimIdeaForPublish(ctx context.Context, arg ClaimPublishParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE backlog_ideas
		SET publishing_since = ?, claim_token = ?, updated_at = ?
		WHERE id = ? AND status = 'scheduled'
		  AND (publishing_since IS NULL OR publishing_since < ?)`,
		arg.Now, arg.Token, arg.Now, arg.ID, arg.StaleBefore,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// ReleasePublishClaim drops the publish mark held by token.
func (q *Queries) ReleasePublishClaim(ctx context.Context, id, token string, now time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE backlog_ideas
		SET publishing_since = NULL, claim_token = NULL, updated_at = ?
		WHERE id = ? AND publishing_since IS NOT NULL AND claim_token = ?`,
		now, id, token,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// ClearStalePublishClaims drops publish marks set before cutoff.
func (q *Queries) ClearStalePublishClaims(ctx context.Context, cutoff, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE backlog_ideas
		SET publishing_since = NULL, claim_token = NULL, updated_at = ?
		WHERE publishing_since IS NOT NULL AND publishing_since < ?`,
		now, cutoff,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkIdeaPublished moves a scheduled idea to published.
func (q *Queries) MarkIdeaPublished(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE backlog_ideas
		SET status = 'published', publishing_since = NULL, claim_token = NULL, updated_at = ?
		WHERE id = ? AND status = 'scheduled'`,
		now, id,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// ArchiveIdea archives from any state. It reports false when the idea was
// already archived or does not exist.
func (q *Queries) ArchiveIdea(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE backlog_ideas
		SET status = 'archived', status_before = NULL, in_progress_since = NULL,
		    claim_token = NULL, publishing_since = NULL, updated_at = ?
		WHERE id = ? AND status <> 'archived'`,
		now, id,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

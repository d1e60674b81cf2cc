// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"

	"github.com/olegiv/ocms-pipeline/internal/model"
)

// GetJobOverride returns the persisted schedule of a job, or sql.ErrNoRows.
func (q *Queries) GetJobOverride(ctx context.Context, name string) (string, error) {
	var schedule string
	err := q.db.QueryRowContext(ctx, `SELECT schedule FROM job_overrides WHERE name = ?`, name).Scan(&schedule)
	return schedule, err
}

// UpsertJobOverride persists a schedule override.
func (q *Queries) UpsertJobOverride(ctx context.Context, name, schedule string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO job_overrides (name, schedule, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET schedule = excluded.schedule, updated_at = excluded.updated_at`,
		name, schedule, now,
	)
	return err
}

// DeleteJobOverride removes a schedule override.
func (q *Queries) DeleteJobOverride(ctx context.Context, name string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM job_overrides WHERE name = ?`, name)
	return err
}

// CreateJobRun opens a run record in the running state.
func (q *Queries) CreateJobRun(ctx context.Context, job, trigger string, startedAt time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO job_runs (job, triggered_by, status, started_at) VALUES (?, ?, 'running', ?)`,
		job, trigger, startedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishJobRunParams closes a run record.
type FinishJobRunParams struct {
	ID          int64
	Status      string
	Summary     string
	Error       string
	CompletedAt time.Time
	DurationMs  int64
}

// FinishJobRun records the outcome of a run.
func (q *Queries) FinishJobRun(ctx context.Context, arg FinishJobRunParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE job_runs
		SET status = ?, summary = ?, error = ?, completed_at = ?, duration_ms = ?
		WHERE id = ?`,
		arg.Status, arg.Summary, arg.Error, arg.CompletedAt, arg.DurationMs, arg.ID,
	)
	return err
}

// ListJobRuns returns the newest runs of a job first. An empty job lists all.
func (q *Queries) ListJobRuns(ctx context.Context, job string, limit int64) ([]model.JobRun, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, job, triggered_by, status, summary, error, started_at, completed_at, duration_ms
		FROM job_runs
		WHERE (?1 = '' OR job = ?1)
		ORDER BY id DESC
		LIMIT ?2`, job, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []model.JobRun
	for rows.Next() {
		var r model.JobRun
		if err := rows.Scan(
			&r.ID,
			&r.Job,
			&r.Trigger,
			&r.Status,
			&r.Summary,
			&r.Error,
			&r.StartedAt,
			&r.CompletedAt,
			&r.DurationMs,
		); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteJobRunsBefore prunes run history and returns the number of rows removed.
func (q *Queries) DeleteJobRunsBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM job_runs WHERE started_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/olegiv/ocms-pipeline/internal/metrics"
	"github.com/olegiv/ocms-pipeline/internal/model"
	"github.com/olegiv/ocms-pipeline/internal/store"
)

const maxRunErrorLen = 1000

// execute runs a job once, recording the run in job_runs and metrics.
// Overlapping runs of the same job are skipped.
func (r *Registry) execute(ctx context.Context, rj *registeredJob, trigger string) (*model.JobRun, error) {
	name := rj.job.Name
	if !rj.running.CompareAndSwap(false, true) {
		metrics.JobRunsTotal.WithLabelValues(name, "skipped").Inc()
		r.logger.Warn("job still running, skipping run", "job", name, "trigger", trigger)
		return nil, ErrJobRunning
	}
	defer rj.running.Store(false)

	run := &model.JobRun{
		Job:       name,
		Trigger:   trigger,
		Status:    model.JobStatusRunning,
		StartedAt: r.now(),
	}

	// Bookkeeping must survive a cancelled trigger request.
	bookCtx := context.WithoutCancel(ctx)
	id, err := r.queries.CreateJobRun(bookCtx, name, trigger, run.StartedAt)
	if err != nil {
		r.logger.Error("failed to create job run record", "job", name, "error", err)
	}
	run.ID = id

	begin := time.Now()
	summary, runErr := runSafely(ctx, rj.job)
	elapsed := time.Since(begin)

	run.Summary = summary
	run.DurationMs = elapsed.Milliseconds()
	run.CompletedAt = sql.NullTime{Time: r.now(), Valid: true}
	run.Status = model.JobStatusSuccess
	if runErr != nil {
		run.Status = model.JobStatusFailure
		run.Error = runErr.Error()
		if len(run.Error) > maxRunErrorLen {
			run.Error = run.Error[:maxRunErrorLen]
		}
	}

	metrics.RecordJobRun(name, run.Status, elapsed.Seconds())

	if id != 0 {
		if err := r.queries.FinishJobRun(bookCtx, store.FinishJobRunParams{
			ID:          id,
			Status:      run.Status,
			Summary:     run.Summary,
			Error:       run.Error,
			CompletedAt: run.CompletedAt.Time,
			DurationMs:  run.DurationMs,
		}); err != nil {
			r.logger.Error("failed to finish job run record", "job", name, "run_id", id, "error", err)
		}
	}

	if runErr != nil {
		r.logger.Error("job failed",
			"job", name,
			"trigger", trigger,
			"duration_ms", run.DurationMs,
			"error", runErr)
		return run, runErr
	}

	r.logger.Debug("job finished",
		"job", name,
		"trigger", trigger,
		"duration_ms", run.DurationMs,
		"summary", summary)
	return run, nil
}

// runSafely turns a panic in a job into an error so cron keeps running.
func runSafely(ctx context.Context, job Job) (summary string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, p)
		}
	}()
	return job.Run(ctx)
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
)

// Job run triggers
const (
	JobTriggerCron   = "cron"
	JobTriggerManual = "manual"
)

// Job run statuses
const (
	JobStatusRunning = "running"
	JobStatusSuccess = "success"
	JobStatusFailure = "failure"
)

// JobRun records one execution of a background job.
type JobRun struct {
	ID          int64
	Job         string
	Trigger     string
	Status      string
	Summary     string
	Error       string
	StartedAt   time.Time
	CompletedAt sql.NullTime
	DurationMs  int64
}

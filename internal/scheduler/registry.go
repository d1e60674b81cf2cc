// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/olegiv/ocms-pipeline/internal/model"
	"github.com/olegiv/ocms-pipeline/internal/store"
)

// DefaultTriggersPerMinute limits manual runs of a single job.
const DefaultTriggersPerMinute = 6

var (
	// ErrJobNotFound is returned for an unknown job name.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobRunning is returned when a run is requested while one is active.
	ErrJobRunning = errors.New("job is already running")
	// ErrRateLimited is returned when manual triggers come too fast.
	ErrRateLimited = errors.New("rate limit exceeded, try again in a few seconds")
)

// Job is a named unit of background work. Run returns a one-line summary.
type Job struct {
	Name        string
	Description string
	Schedule    string // default cron expression
	Run         func(ctx context.Context) (string, error)
}

// registeredJob holds a job with its effective schedule and run state.
type registeredJob struct {
	job      Job
	schedule string // effective schedule (override or default)
	entryID  cron.EntryID
	running  atomic.Bool
	limiter  *rate.Limiter
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	DefaultSchedule string    `json:"default_schedule"`
	Schedule        string    `json:"schedule"`
	IsOverridden    bool      `json:"is_overridden"`
	Running         bool      `json:"running"`
	LastRun         time.Time `json:"last_run"`
	NextRun         time.Time `json:"next_run"`
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// TriggersPerMinute bounds manual runs per job. Zero uses the default.
	TriggersPerMinute int
}

// Registry owns the cron entries of all jobs, their persisted schedule
// overrides and their run history.
type Registry struct {
	queries      *store.Queries
	cron         *cron.Cron
	logger       *slog.Logger
	triggerEvery time.Duration
	mu           sync.RWMutex
	jobs         map[string]*registeredJob
	now          func() time.Time
}

// NewRegistry creates a registry adding entries to c.
func NewRegistry(db *sql.DB, c *cron.Cron, logger *slog.Logger, opts RegistryOptions) *Registry {
	perMinute := opts.TriggersPerMinute
	if perMinute <= 0 {
		perMinute = DefaultTriggersPerMinute
	}
	return &Registry{
		queries:      store.New(db),
		cron:         c,
		logger:       logger,
		triggerEvery: time.Minute / time.Duration(perMinute),
		jobs:         make(map[string]*registeredJob),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// effectiveSchedule returns the persisted override if one exists, otherwise
// the default.
func (r *Registry) effectiveSchedule(name, defaultSchedule string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	override, err := r.queries.GetJobOverride(ctx, name)
	if err == nil && override != "" {
		if ValidateSchedule(override) == nil {
			return override
		}
		r.logger.Warn("ignoring invalid schedule override", "job", name, "schedule", override)
	}
	if err != nil && !store.IsNotFound(err) {
		r.logger.Error("failed to load schedule override", "job", name, "error", err)
	}
	return defaultSchedule
}

// Register adds a job to cron using its effective schedule.
func (r *Registry) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("job needs a name and a run function")
	}
	if err := ValidateSchedule(job.Schedule); err != nil {
		return fmt.Errorf("job %s: %w", job.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.Name]; ok {
		return fmt.Errorf("job %s is already registered", job.Name)
	}

	rj := &registeredJob{
		job:      job,
		schedule: r.effectiveSchedule(job.Name, job.Schedule),
		limiter:  rate.NewLimiter(rate.Every(r.triggerEvery), 1),
	}
	entryID, err := r.cron.AddFunc(rj.schedule, r.cronFunc(rj))
	if err != nil {
		return fmt.Errorf("scheduling job %s: %w", job.Name, err)
	}
	rj.entryID = entryID
	r.jobs[job.Name] = rj

	r.logger.Debug("registered scheduled job", "job", job.Name, "schedule", rj.schedule)
	return nil
}

func (r *Registry) cronFunc(rj *registeredJob) func() {
	return func() {
		_, _ = r.execute(context.Background(), rj, model.JobTriggerCron)
	}
}

func (r *Registry) lookup(name string) (*registeredJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rj, ok := r.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return rj, nil
}

// List returns all registered jobs sorted by name.
func (r *Registry) List() []JobInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]JobInfo, 0, len(r.jobs))
	for _, rj := range r.jobs {
		entry := r.cron.Entry(rj.entryID)
		result = append(result, JobInfo{
			Name:            rj.job.Name,
			Description:     rj.job.Description,
			DefaultSchedule: rj.job.Schedule,
			Schedule:        rj.schedule,
			IsOverridden:    rj.schedule != rj.job.Schedule,
			Running:         rj.running.Load(),
			LastRun:         entry.Prev,
			NextRun:         entry.Next,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// TriggerNow runs a job immediately and waits for it, subject to the
// per-job rate limit.
func (r *Registry) TriggerNow(ctx context.Context, name string) (*model.JobRun, error) {
	rj, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	if !rj.limiter.Allow() {
		return nil, ErrRateLimited
	}

	r.logger.Info("manually triggering job", "job", name)
	return r.execute(ctx, rj, model.JobTriggerManual)
}

// UpdateSchedule replaces the cron entry of a job and persists the override.
func (r *Registry) UpdateSchedule(name, schedule string) error {
	if err := ValidateSchedule(schedule); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rj, ok := r.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	if err := r.reschedule(rj, schedule); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.queries.UpsertJobOverride(ctx, name, schedule, r.now()); err != nil {
		r.logger.Error("failed to persist schedule override", "job", name, "error", err)
	}

	r.logger.Info("updated job schedule", "job", name, "schedule", schedule)
	return nil
}

// ResetSchedule removes the override and restores the default schedule.
func (r *Registry) ResetSchedule(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rj, ok := r.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	if rj.schedule != rj.job.Schedule {
		if err := r.reschedule(rj, rj.job.Schedule); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.queries.DeleteJobOverride(ctx, name); err != nil {
		r.logger.Error("failed to remove schedule override", "job", name, "error", err)
	}

	r.logger.Info("reset job schedule to default", "job", name, "schedule", rj.job.Schedule)
	return nil
}

// reschedule swaps the cron entry. The caller holds r.mu.
func (r *Registry) reschedule(rj *registeredJob, schedule string) error {
	r.cron.Remove(rj.entryID)
	entryID, err := r.cron.AddFunc(schedule, r.cronFunc(rj))
	if err != nil {
		fallbackID, fallbackErr := r.cron.AddFunc(rj.schedule, r.cronFunc(rj))
		if fallbackErr != nil {
			return fmt.Errorf("critical: failed to restore schedule after update failure: %w (original: %w)", fallbackErr, err)
		}
		rj.entryID = fallbackID
		return fmt.Errorf("failed to apply new schedule: %w", err)
	}
	rj.entryID = entryID
	rj.schedule = schedule
	return nil
}

// Runs returns the newest runs of a job, or of all jobs when name is empty.
func (r *Registry) Runs(ctx context.Context, name string, limit int64) ([]model.JobRun, error) {
	if name != "" {
		if _, err := r.lookup(name); err != nil {
			return nil, err
		}
	}
	if limit <= 0 {
		limit = 50
	}
	return r.queries.ListJobRuns(ctx, name, limit)
}

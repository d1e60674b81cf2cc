// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the pipeline's background jobs: publishing due
// ideas, recovering stale draft requests and pruning history.
package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/ocms-pipeline/internal/service"
	"github.com/olegiv/ocms-pipeline/internal/store"
)

// Job names
const (
	JobPublishDue   = "publish-due"
	JobRecoverStale = "recover-stale"
	JobPruneHistory = "prune-history"
)

const (
	defaultPublishSchedule  = "* * * * *"
	defaultRecoverySchedule = "*/10 * * * *"
	defaultPruneSchedule    = "0 3 * * *" // daily at 03:00 UTC
	defaultRetention        = 30 * 24 * time.Hour
)

// DuePublisher publishes every idea whose scheduled date has passed.
type DuePublisher interface {
	PublishDue(ctx context.Context, now time.Time) (*service.PublishSummary, error)
}

// StaleRecoverer returns abandoned in-progress ideas to pending.
type StaleRecoverer interface {
	RecoverStale(ctx context.Context, olderThan time.Duration) ([]string, error)
}

// Config holds job schedules and windows. Zero values use the defaults.
type Config struct {
	PublishSchedule   string
	RecoverySchedule  string
	PruneSchedule     string
	StaleAfter        time.Duration
	Retention         time.Duration
	TriggersPerMinute int
}

func (c *Config) applyDefaults() {
	if c.PublishSchedule == "" {
		c.PublishSchedule = defaultPublishSchedule
	}
	if c.RecoverySchedule == "" {
		c.RecoverySchedule = defaultRecoverySchedule
	}
	if c.PruneSchedule == "" {
		c.PruneSchedule = defaultPruneSchedule
	}
	if c.Retention <= 0 {
		c.Retention = defaultRetention
	}
}

// Scheduler owns the cron instance and the job registry.
type Scheduler struct {
	cron      *cron.Cron
	registry  *Registry
	queries   *store.Queries
	publisher DuePublisher
	recoverer StaleRecoverer
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a scheduler with the pipeline jobs registered. It does not
// start running them until Start is called.
func New(db *sql.DB, publisher DuePublisher, recoverer StaleRecoverer, logger *slog.Logger, cfg Config) (*Scheduler, error) {
	cfg.applyDefaults()

	c := cron.New(cron.WithLocation(time.UTC))
	s := &Scheduler{
		cron:      c,
		registry:  NewRegistry(db, c, logger, RegistryOptions{TriggersPerMinute: cfg.TriggersPerMinute}),
		queries:   store.New(db),
		publisher: publisher,
		recoverer: recoverer,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}

	jobs := []Job{
		{
			Name:        JobPublishDue,
			Description: "Publish scheduled ideas whose date has passed",
			Schedule:    cfg.PublishSchedule,
			Run:         s.publishDue,
		},
		{
			Name:        JobRecoverStale,
			Description: "Return abandoned draft requests to pending",
			Schedule:    cfg.RecoverySchedule,
			Run:         s.recoverStale,
		},
		{
			Name:        JobPruneHistory,
			Description: fmt.Sprintf("Delete events and job runs older than %s", cfg.Retention),
			Schedule:    cfg.PruneSchedule,
			Run:         s.pruneHistory,
		},
	}
	for _, job := range jobs {
		if err := s.registry.Register(job); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Registry exposes the job registry for manual triggers and overrides.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// Start begins running jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) publishDue(ctx context.Context) (string, error) {
	summary, err := s.publisher.PublishDue(ctx, s.now())
	if err != nil {
		return "", fmt.Errorf("publishing due ideas: %w", err)
	}
	return fmt.Sprintf("due=%d published=%d failed=%d",
		summary.Due, len(summary.Published), len(summary.Failed)), nil
}

func (s *Scheduler) recoverStale(ctx context.Context) (string, error) {
	ids, err := s.recoverer.RecoverStale(ctx, s.cfg.StaleAfter)
	if err != nil {
		return "", fmt.Errorf("recovering stale ideas: %w", err)
	}
	return fmt.Sprintf("recovered=%d", len(ids)), nil
}

func (s *Scheduler) pruneHistory(ctx context.Context) (string, error) {
	cutoff := s.now().Add(-s.cfg.Retention)

	events, err := s.queries.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		return "", fmt.Errorf("pruning events: %w", err)
	}
	runs, err := s.queries.DeleteJobRunsBefore(ctx, cutoff)
	if err != nil {
		return "", fmt.Errorf("pruning job runs: %w", err)
	}

	if events > 0 || runs > 0 {
		s.logger.Info("pruned history",
			"older_than", cutoff.Format("2006-01-02"),
			"events", events,
			"job_runs", runs)
	}
	return fmt.Sprintf("events=%d job_runs=%d", events, runs), nil
}

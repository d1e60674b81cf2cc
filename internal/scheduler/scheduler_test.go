// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/olegiv/ocms-pipeline/internal/model"
	"github.com/olegiv/ocms-pipeline/internal/service"
	"github.com/olegiv/ocms-pipeline/internal/store"
)

type fakePublisher struct {
	summary *service.PublishSummary
	err     error
	calls   int
	lastNow time.Time
}

func (f *fakePublisher) PublishDue(_ context.Context, now time.Time) (*service.PublishSummary, error) {
	f.calls++
	f.lastNow = now
	return f.summary, f.err
}

type fakeRecoverer struct {
	ids       []string
	olderThan time.Duration
}

func (f *fakeRecoverer) RecoverStale(_ context.Context, olderThan time.Duration) ([]string, error) {
	f.olderThan = olderThan
	return f.ids, nil
}

func TestNew_RegistersPipelineJobs(t *testing.T) {
	s, err := New(testDB(t), &fakePublisher{}, &fakeRecoverer{}, testLogger(), Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	jobs := s.Registry().List()
	want := map[string]string{
		JobPublishDue:   defaultPublishSchedule,
		JobRecoverStale: defaultRecoverySchedule,
		JobPruneHistory: defaultPruneSchedule,
	}
	if len(jobs) != len(want) {
		t.Fatalf("expected %d jobs, got %d", len(want), len(jobs))
	}
	for _, job := range jobs {
		if want[job.Name] != job.Schedule {
			t.Errorf("%s schedule = %q, want %q", job.Name, job.Schedule, want[job.Name])
		}
	}
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	_, err := New(testDB(t), &fakePublisher{}, &fakeRecoverer{}, testLogger(), Config{PublishSchedule: "soon"})
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := New(testDB(t), &fakePublisher{}, &fakeRecoverer{}, testLogger(), Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Start()
	s.Stop()
}

func TestPublishDueJob(t *testing.T) {
	pub := &fakePublisher{summary: &service.PublishSummary{
		Due:       3,
		Published: []string{"a", "b"},
		Failed:    map[string]string{"c": "not ready"},
	}}
	s, err := New(testDB(t), pub, &fakeRecoverer{}, testLogger(), Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	run, err := s.Registry().TriggerNow(context.Background(), JobPublishDue)
	if err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	if run.Summary != "due=3 published=2 failed=1" {
		t.Errorf("summary = %q", run.Summary)
	}
	if !pub.lastNow.Equal(fixed) {
		t.Errorf("PublishDue now = %s, want %s", pub.lastNow, fixed)
	}

	pub.err = errors.New("db locked")
	s.Registry().jobs[JobPublishDue].limiter.SetLimit(rate.Inf)
	run, err = s.Registry().TriggerNow(context.Background(), JobPublishDue)
	if err == nil || !strings.Contains(err.Error(), "db locked") {
		t.Fatalf("TriggerNow error = %v, want db locked", err)
	}
	if run.Status != model.JobStatusFailure {
		t.Errorf("status = %s, want failure", run.Status)
	}
}

func TestRecoverStaleJob(t *testing.T) {
	rec := &fakeRecoverer{ids: []string{"x", "y"}}
	s, err := New(testDB(t), &fakePublisher{}, rec, testLogger(), Config{StaleAfter: 45 * time.Minute})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	run, err := s.Registry().TriggerNow(context.Background(), JobRecoverStale)
	if err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	if run.Summary != "recovered=2" {
		t.Errorf("summary = %q", run.Summary)
	}
	if rec.olderThan != 45*time.Minute {
		t.Errorf("olderThan = %s, want 45m", rec.olderThan)
	}
}

func TestPruneHistoryJob(t *testing.T) {
	db := testDB(t)
	q := store.New(db)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, at := range []time.Time{now.Add(-40 * 24 * time.Hour), now} {
		if _, err := q.CreateEvent(ctx, store.CreateEventParams{
			Level: model.EventLevelInfo, Category: model.EventCategorySystem,
			Message: "event", Metadata: "{}", CreatedAt: at,
		}); err != nil {
			t.Fatalf("CreateEvent: %v", err)
		}
	}
	if _, err := q.CreateJobRun(ctx, JobPublishDue, model.JobTriggerCron, now.Add(-40*24*time.Hour)); err != nil {
		t.Fatalf("CreateJobRun: %v", err)
	}

	s, err := New(db, &fakePublisher{}, &fakeRecoverer{}, testLogger(), Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	run, err := s.Registry().TriggerNow(ctx, JobPruneHistory)
	if err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	if run.Summary != "events=1 job_runs=1" {
		t.Errorf("summary = %q", run.Summary)
	}

	events, err := q.ListEvents(ctx, 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("remaining events = %d, want 1", len(events))
	}
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/olegiv/ocms-pipeline/internal/model"
)

// testDB creates a temporary test database.
func testDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "pipeline-test-*.db")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	dbPath := f.Name()
	_ = f.Close()

	db, err := NewDB(dbPath)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}

	if err := Migrate(db); err != nil {
		_ = db.Close()
		t.Fatalf("Migrate: %v", err)
	}

	return db, func() { _ = db.Close() }
}

func createTestIdea(t *testing.T, q *Queries, id, title string) model.BacklogIdea {
	t.Helper()

	idea, err := q.CreateIdea(context.Background(), CreateIdeaParams{
		ID:              id,
		ProjectID:       "proj",
		HypothesisID:    "hyp",
		Title:           title,
		NormalizedTitle: title,
		Category:        model.CategoryPain,
		TemplateType:    "generic",
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateIdea: %v", err)
	}
	return idea
}

func TestCreateIdea(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	q := New(db)
	idea := createTestIdea(t, q, "idea-1", "slow reports")

	if idea.Status != model.IdeaStatusPending {
		t.Errorf("Status = %q, want pending", idea.Status)
	}
	if idea.ScheduledDate.Valid {
		t.Error("ScheduledDate should be NULL")
	}
	if idea.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestCreateIdea_UniqueAmongActive(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	createTestIdea(t, q, "idea-1", "slow reports")

	_, err := q.CreateIdea(ctx, CreateIdeaParams{
		ID:              "idea-2",
		ProjectID:       "proj",
		HypothesisID:    "hyp",
		Title:           "Slow Reports",
		NormalizedTitle: "slow reports",
		Category:        model.CategoryPain,
		CreatedAt:       time.Now().UTC(),
	})
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}

	if _, err := q.ArchiveIdea(ctx, "idea-1", time.Now().UTC()); err != nil {
		t.Fatalf("ArchiveIdea: %v", err)
	}

	if _, err := q.CreateIdea(ctx, CreateIdeaParams{
		ID:              "idea-2",
		ProjectID:       "proj",
		HypothesisID:    "hyp",
		Title:           "Slow Reports",
		NormalizedTitle: "slow reports",
		Category:        model.CategoryPain,
		CreatedAt:       time.Now().UTC(),
	}); err != nil {
		t.Fatalf("CreateIdea after archive: %v", err)
	}
}

func TestGetIdea_NotFound(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	_, err := New(db).GetIdea(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestClaimIdeaForDraft_OnlyOneWinner(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	createTestIdea(t, q, "idea-1", "slow reports")
	now := time.Now().UTC()

	won, err := q.ClaimIdeaForDraft(ctx, ClaimIdeaParams{ID: "idea-1", Expected: model.IdeaStatusPending, Now: now})
	if err != nil || !won {
		t.Fatalf("first claim = %v, %v; want true", won, err)
	}

	won, err = q.ClaimIdeaForDraft(ctx, ClaimIdeaParams{ID: "idea-1", Expected: model.IdeaStatusPending, Now: now})
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if won {
		t.Error("second claim should lose")
	}

	idea, _ := q.GetIdea(ctx, "idea-1")
	if idea.Status != model.IdeaStatusInProgress {
		t.Errorf("Status = %q, want in_progress", idea.Status)
	}
	if idea.StatusBefore.String != string(model.IdeaStatusPending) {
		t.Errorf("StatusBefore = %q, want pending", idea.StatusBefore.String)
	}
	if !idea.InProgressSince.Valid {
		t.Error("InProgressSince should be set")
	}
}

func TestReleaseIdeaDraft_RestoresScheduled(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	createTestIdea(t, q, "idea-1", "slow reports")
	now := time.Now().UTC()
	date := now.Add(48 * time.Hour)

	if ok, err := q.ScheduleIdea(ctx, ScheduleIdeaParams{ID: "idea-1", ScheduledDate: date, UpdatedAt: now}); err != nil || !ok {
		t.Fatalf("ScheduleIdea = %v, %v", ok, err)
	}
	if ok, err := q.ClaimIdeaForDraft(ctx, ClaimIdeaParams{ID: "idea-1", Expected: model.IdeaStatusScheduled, Now: now}); err != nil || !ok {
		t.Fatalf("ClaimIdeaForDraft = %v, %v", ok, err)
	}
	if ok, err := q.ReleaseIdeaDraft(ctx, "idea-1", "", now); err != nil || !ok {
		t.Fatalf("ReleaseIdeaDraft = %v, %v", ok, err)
	}

	idea, err := q.GetIdea(ctx, "idea-1")
	if err != nil {
		t.Fatalf("GetIdea: %v", err)
	}
	if idea.Status != model.IdeaStatusScheduled {
		t.Errorf("Status = %q, want scheduled", idea.Status)
	}
	if idea.StatusBefore.Valid || idea.InProgressSince.Valid {
		t.Error("request bookkeeping should be cleared")
	}
	if !idea.ScheduledDate.Valid || !idea.ScheduledDate.Time.Equal(date) {
		t.Errorf("ScheduledDate = %v, want %v", idea.ScheduledDate.Time, date)
	}
}

func TestScheduleIdea_RejectsInProgress(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	createTestIdea(t, q, "idea-1", "slow reports")
	now := time.Now().UTC()

	_, _ = q.ClaimIdeaForDraft(ctx, ClaimIdeaParams{ID: "idea-1", Expected: model.IdeaStatusPending, Now: now})

	ok, err := q.ScheduleIdea(ctx, ScheduleIdeaParams{ID: "idea-1", ScheduledDate: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("ScheduleIdea: %v", err)
	}
	if ok {
		t.Error("ScheduleIdea should not touch an in-progress idea")
	}
}

func TestUpsertContentItem(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	createTestIdea(t, q, "idea-1", "slow reports")
	now := time.Now().UTC()

	params := UpsertContentItemParams{
		ID:            "item-1",
		BacklogIdeaID: "idea-1",
		ProjectID:     "proj",
		HypothesisID:  "hyp",
		Title:         "First",
		Content:       "body",
		Category:      model.CategoryPain,
		Format:        model.FormatArticle,
		QualityScore:  80,
		HeadlineScore: 60,
		QualityReport: "{}",
		Now:           now,
	}
	item, err := q.UpsertContentItem(ctx, params)
	if err != nil {
		t.Fatalf("UpsertContentItem: %v", err)
	}
	if item.Status != model.ContentStatusDraft {
		t.Errorf("Status = %q, want draft", item.Status)
	}

	if ok, _ := q.UpdateContentStatus(ctx, UpdateContentStatusParams{ID: "item-1", From: model.ContentStatusDraft, To: model.ContentStatusReview, UpdatedAt: now}); !ok {
		t.Fatal("draft -> review should succeed")
	}

	params.ID = "item-2"
	params.Title = "Second"
	params.Format = model.FormatFAQ
	item, err = q.UpsertContentItem(ctx, params)
	if err != nil {
		t.Fatalf("UpsertContentItem (regenerate): %v", err)
	}
	if item.ID != "item-1" {
		t.Errorf("ID = %q, want existing item-1", item.ID)
	}
	if item.Title != "Second" || item.Format != model.FormatFAQ {
		t.Errorf("regenerated fields not stored: %+v", item)
	}
	if item.Status != model.ContentStatusDraft {
		t.Errorf("Status = %q, want draft after regeneration", item.Status)
	}
}

func TestSetContentPublished_Once(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	createTestIdea(t, q, "idea-1", "slow reports")
	now := time.Now().UTC()

	if _, err := q.UpsertContentItem(ctx, UpsertContentItemParams{
		ID: "item-1", BacklogIdeaID: "idea-1", ProjectID: "proj", HypothesisID: "hyp",
		Title: "T", Category: model.CategoryPain, Format: model.FormatArticle, QualityReport: "{}", Now: now,
	}); err != nil {
		t.Fatalf("UpsertContentItem: %v", err)
	}

	publish := SetContentPublishedParams{ID: "item-1", PublishedRef: "ref-1", PublishedURL: "https://example.com/p", PublishedAt: now}
	if ok, _ := q.SetContentPublished(ctx, publish); ok {
		t.Fatal("a draft must not be marked published")
	}

	_, _ = q.UpdateContentStatus(ctx, UpdateContentStatusParams{ID: "item-1", From: model.ContentStatusDraft, To: model.ContentStatusReview, UpdatedAt: now})
	_, _ = q.UpdateContentStatus(ctx, UpdateContentStatusParams{ID: "item-1", From: model.ContentStatusReview, To: model.ContentStatusReady, UpdatedAt: now})

	if ok, err := q.SetContentPublished(ctx, publish); err != nil || !ok {
		t.Fatalf("SetContentPublished = %v, %v", ok, err)
	}

	publish.PublishedRef = "ref-2"
	if ok, _ := q.SetContentPublished(ctx, publish); ok {
		t.Error("published_ref must not be overwritten")
	}

	item, _ := q.GetContentItem(ctx, "item-1")
	if item.PublishedRef.String != "ref-1" {
		t.Errorf("PublishedRef = %q, want ref-1", item.PublishedRef.String)
	}
}

func TestIdeaDeleteRestrictedByContentItem(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	createTestIdea(t, q, "idea-1", "slow reports")

	if _, err := q.UpsertContentItem(ctx, UpsertContentItemParams{
		ID: "item-1", BacklogIdeaID: "idea-1", ProjectID: "proj", HypothesisID: "hyp",
		Title: "T", Category: model.CategoryPain, Format: model.FormatArticle, QualityReport: "{}", Now: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("UpsertContentItem: %v", err)
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM backlog_ideas WHERE id = ?`, "idea-1"); err == nil {
		t.Error("deleting a referenced idea should fail")
	}
}

func TestScheduleSettings_KeepsSealedKeyWhenBlank(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	now := time.Now().UTC()

	row := ScheduleSettingsRow{
		ProjectID: "proj", HypothesisID: "hyp", EndpointURL: "https://example.com",
		APIKeySealed: "sealed", Cadence: "0 9 * * 1", Enabled: true, UpdatedAt: now,
	}
	if err := q.UpsertScheduleSettings(ctx, row); err != nil {
		t.Fatalf("UpsertScheduleSettings: %v", err)
	}

	row.APIKeySealed = ""
	row.Enabled = false
	if err := q.UpsertScheduleSettings(ctx, row); err != nil {
		t.Fatalf("UpsertScheduleSettings (update): %v", err)
	}

	got, err := q.GetScheduleSettings(ctx, "proj", "hyp")
	if err != nil {
		t.Fatalf("GetScheduleSettings: %v", err)
	}
	if got.APIKeySealed != "sealed" {
		t.Errorf("APIKeySealed = %q, want sealed", got.APIKeySealed)
	}
	if got.Enabled {
		t.Error("Enabled should be false")
	}
}

func TestProjectContextRoundTrip(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)

	pc := model.ProjectContext{
		ProjectID: "proj", HypothesisID: "hyp", ProductName: "Acme",
		ProductAliases: []string{"Acme Reports"}, Persona: "ops lead", Language: "en",
	}
	if err := q.UpsertProjectContext(ctx, pc, time.Now().UTC()); err != nil {
		t.Fatalf("UpsertProjectContext: %v", err)
	}

	got, err := q.GetProjectContext(ctx, "proj", "hyp")
	if err != nil {
		t.Fatalf("GetProjectContext: %v", err)
	}
	if got.ProductName != "Acme" || len(got.ProductAliases) != 1 || got.ProductAliases[0] != "Acme Reports" {
		t.Errorf("GetProjectContext = %+v", got)
	}
}

func TestEvents(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	old := time.Now().UTC().Add(-48 * time.Hour)

	for i, at := range []time.Time{old, time.Now().UTC()} {
		if _, err := q.CreateEvent(ctx, CreateEventParams{
			Level: model.EventLevelWarning, Category: model.EventCategorySystem,
			Message: "event", Metadata: "{}", CreatedAt: at,
		}); err != nil {
			t.Fatalf("CreateEvent %d: %v", i, err)
		}
	}

	n, err := q.DeleteEventsBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteEventsBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	events, err := q.ListEvents(ctx, 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("len(events) = %d, want 1", len(events))
	}
}

func TestJobRunsAndOverrides(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	now := time.Now().UTC()

	if _, err := q.GetJobOverride(ctx, "publish-due"); !IsNotFound(err) {
		t.Fatalf("GetJobOverride err = %v, want not found", err)
	}
	if err := q.UpsertJobOverride(ctx, "publish-due", "*/5 * * * *", now); err != nil {
		t.Fatalf("UpsertJobOverride: %v", err)
	}
	if err := q.UpsertJobOverride(ctx, "publish-due", "*/2 * * * *", now); err != nil {
		t.Fatalf("UpsertJobOverride again: %v", err)
	}
	schedule, err := q.GetJobOverride(ctx, "publish-due")
	if err != nil || schedule != "*/2 * * * *" {
		t.Fatalf("GetJobOverride = %q, %v", schedule, err)
	}
	if err := q.DeleteJobOverride(ctx, "publish-due"); err != nil {
		t.Fatalf("DeleteJobOverride: %v", err)
	}

	id, err := q.CreateJobRun(ctx, "publish-due", model.JobTriggerManual, now.Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("CreateJobRun: %v", err)
	}
	if err := q.FinishJobRun(ctx, FinishJobRunParams{
		ID: id, Status: model.JobStatusFailure, Error: "boom",
		CompletedAt: now.Add(-48 * time.Hour), DurationMs: 12,
	}); err != nil {
		t.Fatalf("FinishJobRun: %v", err)
	}
	if _, err := q.CreateJobRun(ctx, "recover-stale", model.JobTriggerCron, now); err != nil {
		t.Fatalf("CreateJobRun: %v", err)
	}

	runs, err := q.ListJobRuns(ctx, "publish-due", 10)
	if err != nil {
		t.Fatalf("ListJobRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != model.JobStatusFailure || runs[0].Error != "boom" || !runs[0].CompletedAt.Valid {
		t.Fatalf("runs = %+v", runs)
	}

	all, err := q.ListJobRuns(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListJobRuns all: %v", err)
	}
	if len(all) != 2 || all[0].Job != "recover-stale" {
		t.Errorf("all runs = %+v", all)
	}

	n, err := q.DeleteJobRunsBefore(ctx, now.Add(-24*time.Hour))
	if err != nil || n != 1 {
		t.Errorf("DeleteJobRunsBefore = %d, %v", n, err)
	}
}

func TestReleaseIdeaDraft_RequiresOwner(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	createTestIdea(t, q, "idea-1", "slow reports")
	now := time.Now().UTC()

	if ok, err := q.ClaimIdeaForDraft(ctx, ClaimIdeaParams{ID: "idea-1", Expected: model.IdeaStatusPending, Token: "second", Now: now}); err != nil || !ok {
		t.Fatalf("ClaimIdeaForDraft = %v, %v", ok, err)
	}

	if ok, err := q.ReleaseIdeaDraft(ctx, "idea-1", "first", now); err != nil || ok {
		t.Fatalf("ReleaseIdeaDraft(first) = %v, %v, want false", ok, err)
	}
	if ok, err := q.ReturnIdeaToPending(ctx, "idea-1", "first", now); err != nil || ok {
		t.Fatalf("ReturnIdeaToPending(first) = %v, %v, want false", ok, err)
	}
	idea, _ := q.GetIdea(ctx, "idea-1")
	if idea.Status != model.IdeaStatusInProgress || idea.ClaimToken.String != "second" {
		t.Fatalf("idea = %q owned by %q, want in_progress owned by second", idea.Status, idea.ClaimToken.String)
	}

	if ok, err := q.ReturnIdeaToPending(ctx, "idea-1", "second", now); err != nil || !ok {
		t.Fatalf("ReturnIdeaToPending(second) = %v, %v", ok, err)
	}
	idea, _ = q.GetIdea(ctx, "idea-1")
	if idea.Status != model.IdeaStatusPending || idea.ClaimToken.Valid {
		t.Errorf("idea = %q token %v, want pending without token", idea.Status, idea.ClaimToken)
	}
}

func TestClaimIdeaForPublish(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	createTestIdea(t, q, "idea-1", "slow reports")
	now := time.Now().UTC()

	claim := func(token string, at time.Time) bool {
		t.Helper()
		ok, err := q.ClaimIdeaForPublish(ctx, ClaimPublishParams{
			ID: "idea-1", Token: token, Now: at, StaleBefore: at.Add(-time.Minute),
		})
		if err != nil {
			t.Fatalf("ClaimIdeaForPublish(%s): %v", token, err)
		}
		return ok
	}

	if claim("a", now) {
		t.Fatal("pending idea must not be claimed for publishing")
	}
	if ok, err := q.ScheduleIdea(ctx, ScheduleIdeaParams{ID: "idea-1", ScheduledDate: now, UpdatedAt: now}); err != nil || !ok {
		t.Fatalf("ScheduleIdea = %v, %v", ok, err)
	}
	if !claim("a", now) {
		t.Fatal("first claim should win")
	}
	if claim("b", now.Add(time.Second)) {
		t.Fatal("second claim should lose while the first is fresh")
	}

	// The publish mark keeps drafts and unscheduling out.
	if ok, err := q.ClaimIdeaForDraft(ctx, ClaimIdeaParams{ID: "idea-1", Expected: model.IdeaStatusScheduled, Token: "d", Now: now}); err != nil || ok {
		t.Errorf("ClaimIdeaForDraft = %v, %v, want false", ok, err)
	}
	if ok, err := q.UnscheduleIdea(ctx, "idea-1", now); err != nil || ok {
		t.Errorf("UnscheduleIdea = %v, %v, want false", ok, err)
	}

	if ok, err := q.ReleasePublishClaim(ctx, "idea-1", "b", now); err != nil || ok {
		t.Errorf("ReleasePublishClaim(b) = %v, %v, want false", ok, err)
	}

	later := now.Add(time.Hour)
	if !claim("c", later) {
		t.Fatal("stale claim should be taken over")
	}
	if ok, err := q.ReleasePublishClaim(ctx, "idea-1", "a", later); err != nil || ok {
		t.Errorf("ReleasePublishClaim(a) after takeover = %v, %v, want false", ok, err)
	}
	if ok, err := q.ReleasePublishClaim(ctx, "idea-1", "c", later); err != nil || !ok {
		t.Fatalf("ReleasePublishClaim(c) = %v, %v", ok, err)
	}

	idea, _ := q.GetIdea(ctx, "idea-1")
	if idea.IsPublishing() || idea.ClaimToken.Valid {
		t.Error("publish mark should be cleared")
	}
	if idea.Status != model.IdeaStatusScheduled {
		t.Errorf("Status = %q, want scheduled", idea.Status)
	}
}

func TestClearStalePublishClaims(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	now := time.Now().UTC()
	for _, id := range []string{"old", "fresh"} {
		createTestIdea(t, q, id, id+" reports")
		if ok, err := q.ScheduleIdea(ctx, ScheduleIdeaParams{ID: id, ScheduledDate: now, UpdatedAt: now}); err != nil || !ok {
			t.Fatalf("ScheduleIdea(%s) = %v, %v", id, ok, err)
		}
	}
	if _, err := q.ClaimIdeaForPublish(ctx, ClaimPublishParams{ID: "old", Token: "x", Now: now.Add(-time.Hour), StaleBefore: now}); err != nil {
		t.Fatal(err)
	}
	if _, err := q.ClaimIdeaForPublish(ctx, ClaimPublishParams{ID: "fresh", Token: "y", Now: now, StaleBefore: now}); err != nil {
		t.Fatal(err)
	}

	n, err := q.ClearStalePublishClaims(ctx, now.Add(-10*time.Minute), now)
	if err != nil {
		t.Fatalf("ClearStalePublishClaims: %v", err)
	}
	if n != 1 {
		t.Errorf("cleared = %d, want 1", n)
	}
	old, _ := q.GetIdea(ctx, "old")
	fresh, _ := q.GetIdea(ctx, "fresh")
	if old.IsPublishing() {
		t.Error("old claim should be cleared")
	}
	if !fresh.IsPublishing() {
		t.Error("fresh claim should be kept")
	}
}

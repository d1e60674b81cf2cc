// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/olegiv/ocms-pipeline/internal/classify"
	"github.com/olegiv/ocms-pipeline/internal/metrics"
	"github.com/olegiv/ocms-pipeline/internal/model"
	"github.com/olegiv/ocms-pipeline/internal/store"
)

// Idea input limits
const (
	MaxTitleLength       = 300
	MaxDescriptionLength = 5000
	// maxSlotSearch bounds the cadence walk in ScheduleNext.
	maxSlotSearch = 1000
)

// IdeaService owns BacklogIdea transitions.
type IdeaService struct {
	queries    *store.Queries
	settings   *SettingsService
	logger     *slog.Logger
	staleAfter time.Duration
	now        func() time.Time
}

// NewIdeaService creates a new IdeaService. staleAfter is the default
// window for RecoverStale.
func NewIdeaService(db *sql.DB, settings *SettingsService, logger *slog.Logger, staleAfter time.Duration) *IdeaService {
	return &IdeaService{
		queries:    store.New(db),
		settings:   settings,
		logger:     logger,
		staleAfter: staleAfter,
		now:        utcNow,
	}
}

// CreateIdeaInput describes a new idea.
type CreateIdeaInput struct {
	ProjectID    string         `json:"project_id"`
	HypothesisID string         `json:"hypothesis_id"`
	ClusterID    string         `json:"cluster_id,omitempty"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Category     model.Category `json:"category"`
}

func (in *CreateIdeaInput) normalize() {
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.HypothesisID = strings.TrimSpace(in.HypothesisID)
	in.ClusterID = strings.TrimSpace(in.ClusterID)
	in.Title = strings.Join(strings.Fields(in.Title), " ")
	in.Description = strings.TrimSpace(in.Description)
}

func (in *CreateIdeaInput) validate() error {
	var problems []string
	if in.ProjectID == "" {
		problems = append(problems, "project_id is required")
	}
	if in.HypothesisID == "" {
		problems = append(problems, "hypothesis_id is required")
	}
	if in.Title == "" {
		problems = append(problems, "title is required")
	} else if utf8.RuneCountInString(in.Title) > MaxTitleLength {
		problems = append(problems, fmt.Sprintf("title exceeds %d characters", MaxTitleLength))
	}
	if utf8.RuneCountInString(in.Description) > MaxDescriptionLength {
		problems = append(problems, fmt.Sprintf("description exceeds %d characters", MaxDescriptionLength))
	}
	if !in.Category.Valid() {
		problems = append(problems, fmt.Sprintf("unknown category %q", in.Category))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// CreateIdea stores a pending idea after dedup and classification.
func (s *IdeaService) CreateIdea(ctx context.Context, in CreateIdeaInput) (*model.BacklogIdea, error) {
	const op = "CreateIdea"

	in.normalize()
	if err := in.validate(); err != nil {
		return nil, newError(op, KindInvalidInput, err)
	}

	var clusterID sql.NullString
	if in.ClusterID != "" {
		cluster, err := s.queries.GetSeoCluster(ctx, in.ClusterID)
		if store.IsNotFound(err) {
			return nil, errorf(op, KindInvalidInput, "unknown cluster %s", in.ClusterID)
		}
		if err != nil {
			return nil, fmt.Errorf("loading cluster: %w", err)
		}
		if cluster.ProjectID != in.ProjectID || cluster.HypothesisID != in.HypothesisID {
			return nil, errorf(op, KindInvalidInput, "cluster %s belongs to another scope", in.ClusterID)
		}
		clusterID = sql.NullString{String: cluster.ID, Valid: true}
	}

	normalized := NormalizeTitle(in.Title)
	existing, err := s.queries.FindActiveIdea(ctx, store.FindActiveIdeaParams{
		ProjectID:       in.ProjectID,
		HypothesisID:    in.HypothesisID,
		Category:        in.Category,
		NormalizedTitle: normalized,
	})
	switch {
	case err == nil:
		return nil, errorf(op, KindDuplicateIdea, "active idea %s has the same title", existing.ID)
	case !store.IsNotFound(err):
		return nil, fmt.Errorf("checking duplicates: %w", err)
	}

	class := classify.Classify(in.Title, in.Description, in.Category)

	idea, err := s.queries.CreateIdea(ctx, store.CreateIdeaParams{
		ID:                 uuid.NewString(),
		ProjectID:          in.ProjectID,
		HypothesisID:       in.HypothesisID,
		ClusterID:          clusterID,
		Title:              in.Title,
		NormalizedTitle:    normalized,
		Description:        in.Description,
		Category:           in.Category,
		TemplateType:       string(class.Type),
		TemplateConfidence: class.Confidence,
		CreatedAt:          s.now(),
	})
	if store.IsUniqueViolation(err) {
		return nil, newError(op, KindDuplicateIdea, err)
	}
	if err != nil {
		return nil, fmt.Errorf("creating idea: %w", err)
	}

	if class.IsLowConfidence() {
		s.logger.Info("idea classified with low confidence",
			"idea_id", idea.ID,
			"template", class.Type,
			"confidence", class.Confidence)
	}
	return &idea, nil
}

// GetIdea returns an idea in any state, archived included.
func (s *IdeaService) GetIdea(ctx context.Context, id string) (*model.BacklogIdea, error) {
	return loadIdea(ctx, s.queries, "GetIdea", id)
}

// ListIdeasFilter narrows ListIdeas. Empty fields match everything.
type ListIdeasFilter struct {
	ProjectID    string
	HypothesisID string
	Status       model.IdeaStatus
	Limit        int64
	Offset       int64
}

// ListIdeas returns ideas newest first.
func (s *IdeaService) ListIdeas(ctx context.Context, f ListIdeasFilter) ([]model.BacklogIdea, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, errorf("ListIdeas", KindInvalidInput, "unknown status %q", f.Status)
	}
	ideas, err := s.queries.ListIdeas(ctx, store.ListIdeasParams{
		ProjectID:    f.ProjectID,
		HypothesisID: f.HypothesisID,
		Status:       f.Status,
		Limit:        f.Limit,
		Offset:       f.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("listing ideas: %w", err)
	}
	return ideas, nil
}

// ArchiveIdea archives an idea from any state. Archiving an archived idea is
// a no-op.
func (s *IdeaService) ArchiveIdea(ctx context.Context, id string) (*model.BacklogIdea, error) {
	const op = "ArchiveIdea"

	changed, err := s.queries.ArchiveIdea(ctx, id, s.now())
	if err != nil {
		return nil, fmt.Errorf("archiving idea: %w", err)
	}

	idea, err := loadIdea(ctx, s.queries, op, id)
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info("idea archived", "idea_id", id)
	}
	return idea, nil
}

// ScheduleIdea puts a pending or scheduled idea on date.
func (s *IdeaService) ScheduleIdea(ctx context.Context, id string, date time.Time) (*model.BacklogIdea, error) {
	const op = "ScheduleIdea"

	if date.IsZero() {
		return nil, errorf(op, KindInvalidInput, "scheduled date is required")
	}

	idea, err := loadIdea(ctx, s.queries, op, id)
	if err != nil {
		return nil, err
	}
	if !idea.Status.CanTransitionTo(model.IdeaStatusScheduled) {
		return nil, invalidTransition(op, idea.Status, model.IdeaStatusScheduled)
	}

	ok, err := s.queries.ScheduleIdea(ctx, store.ScheduleIdeaParams{
		ID:            id,
		ScheduledDate: date.UTC(),
		UpdatedAt:     s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling idea: %w", err)
	}
	if !ok {
		// Lost a race with a draft request or an archive.
		return nil, s.transitionLost(ctx, op, id, model.IdeaStatusScheduled)
	}

	s.logger.Info("idea scheduled", "idea_id", id, "scheduled_date", date.UTC().Format(time.RFC3339))
	return loadIdea(ctx, s.queries, op, id)
}

// UnscheduleIdea returns a scheduled idea to pending and clears its date.
func (s *IdeaService) UnscheduleIdea(ctx context.Context, id string) (*model.BacklogIdea, error) {
	const op = "UnscheduleIdea"

	ok, err := s.queries.UnscheduleIdea(ctx, id, s.now())
	if err != nil {
		return nil, fmt.Errorf("unscheduling idea: %w", err)
	}
	if !ok {
		return nil, s.transitionLost(ctx, op, id, model.IdeaStatusPending)
	}
	return loadIdea(ctx, s.queries, op, id)
}

// ScheduleNext schedules an idea on the first free cadence slot of its scope.
func (s *IdeaService) ScheduleNext(ctx context.Context, id string) (*model.BacklogIdea, error) {
	const op = "ScheduleNext"

	idea, err := loadIdea(ctx, s.queries, op, id)
	if err != nil {
		return nil, err
	}
	if !idea.Status.CanTransitionTo(model.IdeaStatusScheduled) {
		return nil, invalidTransition(op, idea.Status, model.IdeaStatusScheduled)
	}

	settings, err := s.settings.GetSettings(ctx, idea.ProjectID, idea.HypothesisID)
	if err != nil {
		return nil, err
	}
	schedule, err := settings.Schedule()
	if err != nil {
		return nil, errorf(op, KindSettingsMissing, "cadence %q: %w", settings.Cadence, err)
	}

	scheduled, err := s.queries.ListIdeas(ctx, store.ListIdeasParams{
		ProjectID:    idea.ProjectID,
		HypothesisID: idea.HypothesisID,
		Status:       model.IdeaStatusScheduled,
	})
	if err != nil {
		return nil, fmt.Errorf("listing scheduled ideas: %w", err)
	}
	taken := make(map[int64]bool, len(scheduled))
	for _, other := range scheduled {
		if other.ID != id && other.ScheduledDate.Valid {
			taken[other.ScheduledDate.Time.Truncate(time.Minute).Unix()] = true
		}
	}

	slot := schedule.Next(s.now())
	for i := 0; taken[slot.Unix()]; i++ {
		if i >= maxSlotSearch {
			return nil, errorf(op, KindNotReady, "no free slot in the next %d cadence runs", maxSlotSearch)
		}
		slot = schedule.Next(slot)
	}

	return s.ScheduleIdea(ctx, id, slot)
}

// RecoverStale returns in_progress ideas older than olderThan to pending.
// A non-positive olderThan uses the configured window.
func (s *IdeaService) RecoverStale(ctx context.Context, olderThan time.Duration) ([]string, error) {
	if olderThan <= 0 {
		olderThan = s.staleAfter
	}

	ideas, err := s.queries.ListIdeasByStatus(ctx, model.IdeaStatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("listing in-progress ideas: %w", err)
	}

	now := s.now()
	recovered := []string{}
	for _, idea := range ideas {
		if !idea.IsStale(now, olderThan) {
			continue
		}
		ok, err := s.queries.ReturnIdeaToPending(ctx, idea.ID, idea.ClaimToken.String, now)
		if err != nil {
			return recovered, fmt.Errorf("recovering idea %s: %w", idea.ID, err)
		}
		if !ok {
			continue
		}
		s.logger.Warn("recovered stale in-progress idea",
			"idea_id", idea.ID,
			"in_progress_since", idea.InProgressSince.Time.Format(time.RFC3339),
			"window", olderThan.String())
		recovered = append(recovered, idea.ID)
	}

	// Publish marks are only left behind by requests that died mid-call.
	cleared, err := s.queries.ClearStalePublishClaims(ctx, now.Add(-olderThan), now)
	if err != nil {
		return recovered, fmt.Errorf("clearing stale publish claims: %w", err)
	}
	if cleared > 0 {
		s.logger.Warn("cleared stale publish claims", "count", cleared, "window", olderThan.String())
	}

	metrics.RecordStaleRecovered(len(recovered))
	return recovered, nil
}

// transitionLost builds the error for a compare-and-set that matched no row.
func (s *IdeaService) transitionLost(ctx context.Context, op, id string, to model.IdeaStatus) error {
	idea, err := loadIdea(ctx, s.queries, op, id)
	if err != nil {
		return err
	}
	if idea.IsPublishing() {
		return errorf(op, KindInvalidTransition, "idea %s is being published", id)
	}
	return invalidTransition(op, idea.Status, to)
}

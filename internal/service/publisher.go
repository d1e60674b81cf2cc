// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/olegiv/ocms-pipeline/internal/metrics"
	"github.com/olegiv/ocms-pipeline/internal/model"
	"github.com/olegiv/ocms-pipeline/internal/publish"
	"github.com/olegiv/ocms-pipeline/internal/store"
)

// DefaultPublishTimeout bounds one call to the publishing endpoint.
const DefaultPublishTimeout = 30 * time.Second

// PublishService moves scheduled ideas with ready content to the
// publishing endpoint.
type PublishService struct {
	db       *sql.DB
	queries  *store.Queries
	client   publish.Client
	settings *SettingsService
	logger   *slog.Logger
	timeout  time.Duration
	flights  singleflight.Group
	now      func() time.Time
}

// NewPublishService creates a new PublishService.
func NewPublishService(db *sql.DB, client publish.Client, settings *SettingsService, logger *slog.Logger, timeout time.Duration) *PublishService {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &PublishService{
		db:       db,
		queries:  store.New(db),
		client:   client,
		settings: settings,
		logger:   logger,
		timeout:  timeout,
		now:      utcNow,
	}
}

// PublishResult describes the remote post of an idea.
type PublishResult struct {
	IdeaID      string    `json:"idea_id"`
	ContentID   string    `json:"content_id"`
	Ref         string    `json:"published_ref"`
	URL         string    `json:"published_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	// AlreadyPublished is set when no endpoint call was made.
	AlreadyPublished bool `json:"already_published"`
}

func publishedResult(item *model.ContentItem) *PublishResult {
	return &PublishResult{
		IdeaID:           item.BacklogIdeaID,
		ContentID:        item.ID,
		Ref:              item.PublishedRef.String,
		URL:              item.PublishedURL.String,
		PublishedAt:      item.PublishedAt.Time,
		AlreadyPublished: true,
	}
}

// Publish sends an idea's ready content to its scope's endpoint. Once an
// item has a published reference, further calls return it without calling
// the endpoint. A failed call leaves both entities unchanged.
//
// Concurrent calls for one idea share a single attempt, which runs to
// completion even when the caller's ctx ends first.
func (s *PublishService) Publish(ctx context.Context, ideaID string) (*PublishResult, error) {
	const op = "Publish"

	flightCtx := context.WithoutCancel(ctx)
	ch := s.flights.DoChan(ideaID, func() (any, error) {
		return s.publish(flightCtx, ideaID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*PublishResult), nil
	case <-ctx.Done():
		return nil, newError(op, KindPublishFailed, ctx.Err())
	}
}

func (s *PublishService) publish(ctx context.Context, ideaID string) (*PublishResult, error) {
	const op = "Publish"

	idea, err := loadIdea(ctx, s.queries, op, ideaID)
	if err != nil {
		return nil, err
	}

	item, err := s.queries.GetContentItemByIdea(ctx, ideaID)
	hasItem := err == nil
	if err != nil && !store.IsNotFound(err) {
		return nil, fmt.Errorf("loading content: %w", err)
	}
	if hasItem && item.IsPublished() {
		metrics.RecordPublish(metrics.OutcomeNoop, -1)
		return publishedResult(&item), nil
	}

	now := s.now()
	if err := s.checkReady(op, idea, &item, hasItem, now); err != nil {
		metrics.RecordPublish(metrics.OutcomeRejected, -1)
		return nil, err
	}

	settings, err := s.settings.CompleteSettings(ctx, idea.ProjectID, idea.HypothesisID)
	if err != nil {
		metrics.RecordPublish(metrics.OutcomeRejected, -1)
		return nil, err
	}

	// The claim keeps drafts and unscheduling away from the idea until the
	// outcome of the endpoint call is recorded.
	token := uuid.NewString()
	claimed, err := s.queries.ClaimIdeaForPublish(ctx, store.ClaimPublishParams{
		ID:          idea.ID,
		Token:       token,
		Now:         now,
		StaleBefore: now.Add(-s.claimTTL()),
	})
	if err != nil {
		return nil, fmt.Errorf("claiming idea for publish: %w", err)
	}
	if !claimed {
		return s.claimLost(ctx, op, idea.ID)
	}

	// Content may have changed between the checks above and the claim.
	item, err = s.queries.GetContentItemByIdea(ctx, ideaID)
	if err != nil || item.Status != model.ContentStatusReady {
		s.releaseClaim(ctx, idea.ID, token)
		if err != nil && !store.IsNotFound(err) {
			return nil, fmt.Errorf("reloading content: %w", err)
		}
		metrics.RecordPublish(metrics.OutcomeRejected, -1)
		return nil, errorf(op, KindNotReady, "content for idea %s changed before publishing", idea.ID)
	}

	post, err := publish.BuildPost(&item, idea.ScheduledDate.Time)
	if err != nil {
		s.releaseClaim(ctx, idea.ID, token)
		return nil, newError(op, KindPublishFailed, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	begin := time.Now()
	receipt, err := s.client.Publish(callCtx, post, publish.Target{
		EndpointURL: settings.EndpointURL,
		APIKey:      settings.APIKey,
	})
	elapsed := time.Since(begin).Seconds()
	if err != nil {
		s.releaseClaim(ctx, idea.ID, token)
		metrics.RecordPublish(metrics.OutcomeFailure, elapsed)
		s.logger.Warn("publish failed",
			"idea_id", idea.ID,
			"content_id", item.ID,
			"retryable", publish.IsRetryable(err),
			"error", err)
		return nil, newError(op, KindPublishFailed, err)
	}

	publishedAt := s.now()
	err = store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		set, err := q.SetContentPublished(ctx, store.SetContentPublishedParams{
			ID:           item.ID,
			PublishedRef: receipt.Ref,
			PublishedURL: receipt.URL,
			PublishedAt:  publishedAt,
		})
		if err != nil {
			return fmt.Errorf("recording publication: %w", err)
		}
		if !set {
			return errPublishRace
		}
		marked, err := q.MarkIdeaPublished(ctx, idea.ID, publishedAt)
		if err != nil {
			return fmt.Errorf("marking idea published: %w", err)
		}
		if !marked {
			return errPublishRace
		}
		return nil
	})
	if err != nil {
		return s.recordReceipt(ctx, op, &item, token, receipt, publishedAt, elapsed, err)
	}

	metrics.RecordPublish(metrics.OutcomeSuccess, elapsed)
	s.logger.Info("content published",
		"idea_id", idea.ID,
		"content_id", item.ID,
		"published_ref", receipt.Ref,
		"published_url", receipt.URL)

	return &PublishResult{
		IdeaID:      idea.ID,
		ContentID:   item.ID,
		Ref:         receipt.Ref,
		URL:         receipt.URL,
		PublishedAt: publishedAt,
	}, nil
}

var errPublishRace = errors.New("content or idea changed during publish")

// claimTTL is how long a publish claim is honoured. Past it the request that
// took the claim has outlived its endpoint timeout.
func (s *PublishService) claimTTL() time.Duration {
	return 2 * s.timeout
}

// checkReady applies the publish preconditions in order.
func (s *PublishService) checkReady(op string, idea *model.BacklogIdea, item *model.ContentItem, hasItem bool, now time.Time) error {
	if idea.Status != model.IdeaStatusScheduled {
		return errorf(op, KindNotReady, "idea %s is %s, not scheduled", idea.ID, idea.Status)
	}
	if !idea.IsDue(now) {
		return errorf(op, KindNotDue, "idea %s is scheduled for %s",
			idea.ID, idea.ScheduledDate.Time.Format(time.RFC3339))
	}
	if !hasItem {
		return errorf(op, KindNotReady, "idea %s has no content", idea.ID)
	}
	if item.Status != model.ContentStatusReady {
		return errorf(op, KindNotReady, "content %s is %s, not ready", item.ID, item.Status)
	}
	return nil
}

// claimLost answers a publish whose claim matched no row.
func (s *PublishService) claimLost(ctx context.Context, op, ideaID string) (*PublishResult, error) {
	item, err := s.queries.GetContentItemByIdea(ctx, ideaID)
	if err == nil && item.IsPublished() {
		metrics.RecordPublish(metrics.OutcomeNoop, -1)
		return publishedResult(&item), nil
	}
	metrics.RecordPublish(metrics.OutcomeRejected, -1)

	idea, err := loadIdea(ctx, s.queries, op, ideaID)
	if err != nil {
		return nil, err
	}
	if idea.IsPublishing() {
		return nil, errorf(op, KindNotReady, "idea %s is already being published", ideaID)
	}
	return nil, errorf(op, KindNotReady, "idea %s is %s, not scheduled", ideaID, idea.Status)
}

func (s *PublishService) releaseClaim(ctx context.Context, ideaID, token string) {
	if _, err := s.queries.ReleasePublishClaim(ctx, ideaID, token, s.now()); err != nil {
		s.logger.Error("failed to release publish claim",
			"idea_id", ideaID,
			"error", err)
	}
}

// recordReceipt keeps the remote reference after the publish transaction
// failed, so a retry never posts the idea again.
func (s *PublishService) recordReceipt(ctx context.Context, op string, item *model.ContentItem, token string, receipt *publish.Receipt, publishedAt time.Time, elapsed float64, txErr error) (*PublishResult, error) {
	ideaID := item.BacklogIdeaID

	set, err := s.queries.SetContentPublished(ctx, store.SetContentPublishedParams{
		ID:           item.ID,
		PublishedRef: receipt.Ref,
		PublishedURL: receipt.URL,
		PublishedAt:  publishedAt,
	})
	if err != nil {
		// The claim is kept so no draft replaces the posted content before
		// the record is retried.
		metrics.RecordPublish(metrics.OutcomeFailure, elapsed)
		s.logger.Error("published remotely but failed to record",
			"idea_id", ideaID,
			"published_ref", receipt.Ref,
			"error", errors.Join(txErr, err))
		return nil, newError(op, KindPublishFailed, txErr)
	}

	if !set {
		s.releaseClaim(ctx, ideaID, token)
		current, err := s.queries.GetContentItemByIdea(ctx, ideaID)
		if err == nil && current.IsPublished() {
			metrics.RecordPublish(metrics.OutcomeNoop, -1)
			return publishedResult(&current), nil
		}
		metrics.RecordPublish(metrics.OutcomeFailure, elapsed)
		s.logger.Error("published remotely but local state changed",
			"idea_id", ideaID,
			"published_ref", receipt.Ref,
			"error", txErr)
		return nil, newError(op, KindPublishFailed, txErr)
	}

	if _, err := s.queries.MarkIdeaPublished(ctx, ideaID, publishedAt); err != nil {
		s.logger.Error("failed to mark idea published", "idea_id", ideaID, "error", err)
	}
	s.releaseClaim(ctx, ideaID, token)

	metrics.RecordPublish(metrics.OutcomeSuccess, elapsed)
	s.logger.Warn("content published while the idea changed",
		"idea_id", ideaID,
		"content_id", item.ID,
		"published_ref", receipt.Ref,
		"error", txErr)

	return &PublishResult{
		IdeaID:      ideaID,
		ContentID:   item.ID,
		Ref:         receipt.Ref,
		URL:         receipt.URL,
		PublishedAt: publishedAt,
	}, nil
}

// PublishSummary reports one PublishDue sweep.
type PublishSummary struct {
	Due       int               `json:"due"`
	Published []string          `json:"published"`
	Failed    map[string]string `json:"failed"`
}

// PublishDue publishes every scheduled idea whose date is at or before now.
// Per-idea failures are collected, not returned.
func (s *PublishService) PublishDue(ctx context.Context, now time.Time) (*PublishSummary, error) {
	ideas, err := s.queries.ListIdeasByStatus(ctx, model.IdeaStatusScheduled)
	if err != nil {
		return nil, fmt.Errorf("listing scheduled ideas: %w", err)
	}

	summary := &PublishSummary{Published: []string{}, Failed: map[string]string{}}
	for _, idea := range ideas {
		if !idea.IsDue(now) {
			continue
		}
		summary.Due++

		if err := ctx.Err(); err != nil {
			return summary, err
		}

		res, err := s.Publish(ctx, idea.ID)
		if err != nil {
			summary.Failed[idea.ID] = err.Error()
			s.logger.Warn("scheduled publish skipped",
				"idea_id", idea.ID,
				"kind", KindOf(err),
				"error", err)
			continue
		}
		summary.Published = append(summary.Published, res.IdeaID)
	}

	if summary.Due > 0 {
		s.logger.Info("publish sweep finished",
			"due", summary.Due,
			"published", len(summary.Published),
			"failed", len(summary.Failed))
	}
	return summary, nil
}

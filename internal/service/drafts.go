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
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/olegiv/ocms-pipeline/internal/classify"
	"github.com/olegiv/ocms-pipeline/internal/generator"
	"github.com/olegiv/ocms-pipeline/internal/metrics"
	"github.com/olegiv/ocms-pipeline/internal/model"
	"github.com/olegiv/ocms-pipeline/internal/quality"
	"github.com/olegiv/ocms-pipeline/internal/store"
)

// Draft defaults
const (
	DefaultGenerationTimeout = 2 * time.Minute
	DefaultStaleAfter        = 30 * time.Minute
	maxUsageErrorLength      = 500
)

// DraftOptions configures a DraftService.
type DraftOptions struct {
	// Timeout bounds one generation call, independent of the caller's context.
	Timeout time.Duration
	// StaleAfter is how long an in_progress idea owned by another process is
	// trusted before RequestDraft reports StaleInProgress.
	StaleAfter time.Duration
	// AutoReview advances a new draft to review when both scores reach the
	// minimums below.
	AutoReview    bool
	MinNativeness int
	MinHeadline   int
}

// DraftService owns ContentItem transitions and the generation call.
type DraftService struct {
	db       *sql.DB
	queries  *store.Queries
	gen      generator.Generator
	contexts ContextLoader
	logger   *slog.Logger
	opts     DraftOptions
	flights  singleflight.Group
	now      func() time.Time
}

// NewDraftService creates a new DraftService.
func NewDraftService(db *sql.DB, gen generator.Generator, contexts ContextLoader, logger *slog.Logger, opts DraftOptions) *DraftService {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultGenerationTimeout
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	return &DraftService{
		db:       db,
		queries:  store.New(db),
		gen:      gen,
		contexts: contexts,
		logger:   logger,
		opts:     opts,
		now:      utcNow,
	}
}

// DraftResult is the handle returned by RequestDraft.
type DraftResult struct {
	IdeaID    string    `json:"idea_id"`
	StartedAt time.Time `json:"started_at"`
	// InFlight is set when another process owns the generation. Content is
	// nil; poll the idea until it leaves in_progress.
	InFlight bool `json:"in_flight"`
	// Shared is set when concurrent callers in this process received the
	// result of one generation.
	Shared     bool                `json:"shared"`
	Content    *model.ContentItem  `json:"content,omitempty"`
	Assessment *quality.Assessment `json:"assessment,omitempty"`
}

// RequestDraft generates a draft for an idea. Concurrent requests for the
// same idea share one generation call. A caller whose ctx ends first gets a
// retryable GenerationFailed while the generation itself runs to completion.
func (s *DraftService) RequestDraft(ctx context.Context, ideaID string) (*DraftResult, error) {
	const op = "RequestDraft"

	flightCtx := context.WithoutCancel(ctx)
	ch := s.flights.DoChan(ideaID, func() (any, error) {
		return s.draft(flightCtx, ideaID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		out := *res.Val.(*DraftResult)
		out.Shared = res.Shared
		if res.Shared {
			metrics.RecordDraftRequest(metrics.DraftAttached)
		}
		return &out, nil
	case <-ctx.Done():
		return nil, newError(op, KindGenerationFailed, ctx.Err())
	}
}

// draft runs one flight: claim, generate, score, store.
func (s *DraftService) draft(ctx context.Context, ideaID string) (*DraftResult, error) {
	const op = "RequestDraft"

	idea, err := loadIdea(ctx, s.queries, op, ideaID)
	if err != nil {
		return nil, err
	}
	if err := s.checkDraftable(op, idea); err != nil {
		return nil, err
	}
	if idea.Status == model.IdeaStatusInProgress {
		return s.foreignFlight(op, idea)
	}
	if idea.IsPublishing() {
		return nil, errorf(op, KindInvalidTransition, "idea %s is being published", idea.ID)
	}

	pc, err := s.contexts.Load(ctx, idea.ProjectID, idea.HypothesisID)
	if err != nil {
		return nil, newError(op, KindGenerationFailed, err)
	}
	keywords := s.clusterKeywords(ctx, idea)

	started := s.now()
	token := uuid.NewString()
	claimed, err := s.queries.ClaimIdeaForDraft(ctx, store.ClaimIdeaParams{
		ID:       idea.ID,
		Expected: idea.Status,
		Token:    token,
		Now:      started,
	})
	if err != nil {
		return nil, fmt.Errorf("claiming idea: %w", err)
	}
	if !claimed {
		current, err := loadIdea(ctx, s.queries, op, ideaID)
		if err != nil {
			return nil, err
		}
		if err := s.checkDraftable(op, current); err != nil {
			return nil, err
		}
		if current.Status == model.IdeaStatusInProgress {
			return s.foreignFlight(op, current)
		}
		if current.IsPublishing() {
			return nil, errorf(op, KindInvalidTransition, "idea %s is being published", idea.ID)
		}
		return nil, invalidTransition(op, current.Status, model.IdeaStatusInProgress)
	}
	metrics.RecordDraftRequest(metrics.DraftStarted)

	class := classify.Classify(idea.Title, idea.Description, idea.Category)
	if class.IsLowConfidence() {
		s.logger.Info("drafting with low-confidence template",
			"idea_id", idea.ID,
			"template", class.Type,
			"confidence", class.Confidence)
	}

	genCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	begin := time.Now()
	result, genErr := s.gen.Generate(genCtx, generator.Request{
		IdeaID:       idea.ID,
		Title:        idea.Title,
		Description:  idea.Description,
		Category:     idea.Category,
		TemplateType: class.Type,
		Keywords:     keywords,
		Context:      *pc,
	})
	elapsed := time.Since(begin)
	s.recordUsage(ctx, idea.ID, result, genErr, elapsed)

	if genErr != nil {
		outcome := metrics.OutcomeFailure
		if errors.Is(genErr, context.DeadlineExceeded) {
			outcome = metrics.OutcomeTimeout
		}
		metrics.RecordGeneration(outcome, elapsed.Seconds())
		s.logger.Warn("draft generation failed",
			"idea_id", idea.ID,
			"duration", elapsed.String(),
			"error", genErr)
		s.release(ctx, idea.ID, token)
		return nil, newError(op, KindGenerationFailed, genErr)
	}
	metrics.RecordGeneration(metrics.OutcomeSuccess, elapsed.Seconds())
	metrics.RecordGenerationUsage(result.Usage.PromptTokens, result.Usage.CompletionTokens, result.Usage.CostUSD)

	assessment := quality.Assess(result.Content, result.Title, idea.Title, pc.OfferTerms())

	item, err := s.saveDraft(ctx, idea, token, result, assessment)
	if err != nil {
		s.release(ctx, idea.ID, token)
		return nil, err
	}

	s.logger.Info("draft generated",
		"idea_id", idea.ID,
		"content_id", item.ID,
		"template", class.Type,
		"nativeness", assessment.Nativeness.Score,
		"headline", assessment.Headline.Score,
		"status", item.Status)

	return &DraftResult{
		IdeaID:     idea.ID,
		StartedAt:  started,
		Content:    item,
		Assessment: &assessment,
	}, nil
}

// checkDraftable rejects ideas that can never get a draft.
func (s *DraftService) checkDraftable(op string, idea *model.BacklogIdea) error {
	switch {
	case idea.IsArchived():
		return errorf(op, KindIdeaNotFound, "idea %s is archived", idea.ID)
	case idea.Status.IsTerminal():
		return invalidTransition(op, idea.Status, model.IdeaStatusInProgress)
	}
	return nil
}

// foreignFlight answers a request for an idea another process is drafting.
func (s *DraftService) foreignFlight(op string, idea *model.BacklogIdea) (*DraftResult, error) {
	if idea.IsStale(s.now(), s.opts.StaleAfter) {
		metrics.RecordDraftRequest(metrics.DraftStale)
		return nil, errorf(op, KindStaleInProgress, "idea %s in progress since %s",
			idea.ID, idea.InProgressSince.Time.Format(time.RFC3339))
	}
	metrics.RecordDraftRequest(metrics.DraftInFlight)
	return &DraftResult{
		IdeaID:    idea.ID,
		StartedAt: idea.InProgressSince.Time,
		InFlight:  true,
	}, nil
}

// saveDraft stores the generated item and returns the idea to pending in
// one transaction. token is the claim taken by the flight.
func (s *DraftService) saveDraft(ctx context.Context, idea *model.BacklogIdea, token string, result *generator.Result, a quality.Assessment) (*model.ContentItem, error) {
	const op = "RequestDraft"
	now := s.now()

	var item model.ContentItem
	err := store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		var err error
		item, err = q.UpsertContentItem(ctx, store.UpsertContentItemParams{
			ID:            uuid.NewString(),
			BacklogIdeaID: idea.ID,
			ProjectID:     idea.ProjectID,
			HypothesisID:  idea.HypothesisID,
			Title:         result.Title,
			Outline:       result.Outline,
			Content:       result.Content,
			Category:      idea.Category,
			Format:        model.ParseFormat(string(result.Format)),
			QualityScore:  a.Nativeness.Score,
			HeadlineScore: a.Headline.Score,
			QualityReport: a.JSON(),
			Now:           now,
		})
		if err != nil {
			return fmt.Errorf("saving draft: %w", err)
		}
		if !item.Status.CanRegenerate() {
			return invalidTransition(op, item.Status, model.ContentStatusDraft)
		}

		returned, err := q.ReturnIdeaToPending(ctx, idea.ID, token, now)
		if err != nil {
			return fmt.Errorf("returning idea to pending: %w", err)
		}
		if !returned {
			current, err := q.GetIdea(ctx, idea.ID)
			if err != nil {
				return fmt.Errorf("reloading idea: %w", err)
			}
			if current.IsArchived() {
				return errorf(op, KindIdeaNotFound, "idea %s was archived while drafting", idea.ID)
			}
			if current.Status == model.IdeaStatusInProgress {
				// Recovered as stale and claimed again by another request.
				return errorf(op, KindStaleInProgress, "idea %s was reclaimed while drafting", idea.ID)
			}
			s.logger.Warn("idea left in_progress before its draft finished",
				"idea_id", idea.ID,
				"status", current.Status)
		}

		if s.opts.AutoReview && a.Meets(s.opts.MinNativeness, s.opts.MinHeadline) {
			next, _ := model.ContentStatusDraft.NextApproval()
			moved, err := q.UpdateContentStatus(ctx, store.UpdateContentStatusParams{
				ID:        item.ID,
				From:      model.ContentStatusDraft,
				To:        next,
				UpdatedAt: now,
			})
			if err != nil {
				return fmt.Errorf("auto-review: %w", err)
			}
			if moved {
				item.Status = next
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// release restores the pre-request status after a failed flight.
func (s *DraftService) release(ctx context.Context, ideaID, token string) {
	if _, err := s.queries.ReleaseIdeaDraft(ctx, ideaID, token, s.now()); err != nil {
		s.logger.Error("failed to release idea after draft failure",
			"idea_id", ideaID,
			"error", err)
	}
}

func (s *DraftService) clusterKeywords(ctx context.Context, idea *model.BacklogIdea) []string {
	if !idea.ClusterID.Valid {
		return nil
	}
	cluster, err := s.queries.GetSeoCluster(ctx, idea.ClusterID.String)
	if err != nil {
		s.logger.Warn("failed to load cluster keywords",
			"idea_id", idea.ID,
			"cluster_id", idea.ClusterID.String,
			"error", err)
		return nil
	}
	return cluster.Keywords
}

// recordUsage appends the call to the usage ledger. Failures are logged only.
func (s *DraftService) recordUsage(ctx context.Context, ideaID string, result *generator.Result, genErr error, elapsed time.Duration) {
	u := store.GenerationUsage{
		BacklogIdeaID: ideaID,
		DurationMs:    elapsed.Milliseconds(),
		Success:       genErr == nil,
		CreatedAt:     s.now(),
	}
	if d, ok := s.gen.(generator.Describer); ok {
		u.Provider, u.Model = d.Describe()
	}
	if result != nil {
		if result.Usage.Provider != "" {
			u.Provider = result.Usage.Provider
		}
		if result.Usage.Model != "" {
			u.Model = result.Usage.Model
		}
		u.PromptTokens = result.Usage.PromptTokens
		u.CompletionTokens = result.Usage.CompletionTokens
		u.TotalTokens = result.Usage.TotalTokens
		u.CostUSD = result.Usage.CostUSD
	}
	if genErr != nil {
		u.Error = truncate(genErr.Error(), maxUsageErrorLength)
	}

	if err := s.queries.CreateGenerationUsage(ctx, u); err != nil {
		s.logger.Error("failed to record generation usage", "idea_id", ideaID, "error", err)
	}
}

// ApproveDraft advances an item one step: draft to review, review to ready.
func (s *DraftService) ApproveDraft(ctx context.Context, itemID string) (*model.ContentItem, error) {
	const op = "ApproveDraft"

	item, err := loadContent(ctx, s.queries, op, itemID)
	if err != nil {
		return nil, err
	}
	next, ok := item.Status.NextApproval()
	if !ok {
		return nil, errorf(op, KindInvalidTransition, "content in status %s cannot be approved", item.Status)
	}

	moved, err := s.queries.UpdateContentStatus(ctx, store.UpdateContentStatusParams{
		ID:        item.ID,
		From:      item.Status,
		To:        next,
		UpdatedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("approving content: %w", err)
	}
	if !moved {
		current, err := loadContent(ctx, s.queries, op, itemID)
		if err != nil {
			return nil, err
		}
		return nil, invalidTransition(op, current.Status, next)
	}

	s.logger.Info("draft approved", "content_id", item.ID, "idea_id", item.BacklogIdeaID, "status", next)
	return loadContent(ctx, s.queries, op, itemID)
}

// GetContent returns a content item by id.
func (s *DraftService) GetContent(ctx context.Context, id string) (*model.ContentItem, error) {
	return loadContent(ctx, s.queries, "GetContent", id)
}

// GetContentByIdea returns the current item of an idea.
func (s *DraftService) GetContentByIdea(ctx context.Context, ideaID string) (*model.ContentItem, error) {
	item, err := s.queries.GetContentItemByIdea(ctx, ideaID)
	if store.IsNotFound(err) {
		return nil, errorf("GetContentByIdea", KindContentNotFound, "idea %s has no content", ideaID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading content: %w", err)
	}
	return &item, nil
}

// ListUsage returns the generation calls made for an idea, oldest first.
func (s *DraftService) ListUsage(ctx context.Context, ideaID string) ([]store.GenerationUsage, error) {
	if _, err := loadIdea(ctx, s.queries, "ListUsage", ideaID); err != nil {
		return nil, err
	}
	usage, err := s.queries.ListGenerationUsageByIdea(ctx, ideaID)
	if err != nil {
		return nil, fmt.Errorf("listing usage: %w", err)
	}
	return usage, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-pipeline/internal/model"
	"github.com/olegiv/ocms-pipeline/internal/service"
)

// ListIdeas handles GET /api/v1/ideas.
// Query params: project, hypothesis, status, page, per_page.
func (h *Handler) ListIdeas(w http.ResponseWriter, r *http.Request) {
	page, perPage, ok := pagination(r)
	if !ok {
		WriteBadRequest(w, "Invalid pagination parameters", nil)
		return
	}

	q := r.URL.Query()
	ideas, err := h.ideas.ListIdeas(r.Context(), service.ListIdeasFilter{
		ProjectID:    q.Get("project"),
		HypothesisID: q.Get("hypothesis"),
		Status:       model.IdeaStatus(q.Get("status")),
		Limit:        int64(perPage),
		Offset:       int64((page - 1) * perPage),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]IdeaResponse, 0, len(ideas))
	for i := range ideas {
		out = append(out, ideaToResponse(&ideas[i]))
	}
	WriteSuccess(w, out, &Meta{Page: page, PerPage: perPage})
}

// CreateIdea handles POST /api/v1/ideas.
func (h *Handler) CreateIdea(w http.ResponseWriter, r *http.Request) {
	var in service.CreateIdeaInput
	if !decodeJSON(w, r, &in) {
		return
	}

	idea, err := h.ideas.CreateIdea(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, ideaToResponse(idea))
}

// GetIdea handles GET /api/v1/ideas/{id}.
func (h *Handler) GetIdea(w http.ResponseWriter, r *http.Request) {
	idea, err := h.ideas.GetIdea(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, ideaToResponse(idea), nil)
}

// ArchiveIdea handles POST /api/v1/ideas/{id}/archive.
func (h *Handler) ArchiveIdea(w http.ResponseWriter, r *http.Request) {
	h.ideaTransition(w, r, h.ideas.ArchiveIdea)
}

// UnscheduleIdea handles POST /api/v1/ideas/{id}/unschedule.
func (h *Handler) UnscheduleIdea(w http.ResponseWriter, r *http.Request) {
	h.ideaTransition(w, r, h.ideas.UnscheduleIdea)
}

// ScheduleNextIdea handles POST /api/v1/ideas/{id}/schedule-next.
func (h *Handler) ScheduleNextIdea(w http.ResponseWriter, r *http.Request) {
	h.ideaTransition(w, r, h.ideas.ScheduleNext)
}

// ScheduleIdeaRequest is the body of POST /api/v1/ideas/{id}/schedule.
type ScheduleIdeaRequest struct {
	ScheduledDate time.Time `json:"scheduled_date"`
}

// ScheduleIdea handles POST /api/v1/ideas/{id}/schedule.
func (h *Handler) ScheduleIdea(w http.ResponseWriter, r *http.Request) {
	var req ScheduleIdeaRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ScheduledDate.IsZero() {
		WriteValidationError(w, map[string]string{"scheduled_date": "Scheduled date is required"})
		return
	}

	idea, err := h.ideas.ScheduleIdea(r.Context(), chi.URLParam(r, "id"), req.ScheduledDate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, ideaToResponse(idea), nil)
}

// RequestDraft handles POST /api/v1/ideas/{id}/draft. The request blocks
// until the generation finishes. When another process owns the generation
// the response is 202 with in_flight set.
func (h *Handler) RequestDraft(w http.ResponseWriter, r *http.Request) {
	res, err := h.drafts.RequestDraft(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if res.InFlight {
		WriteAccepted(w, draftToResponse(res))
		return
	}
	WriteSuccess(w, draftToResponse(res), nil)
}

// PublishIdea handles POST /api/v1/ideas/{id}/publish.
func (h *Handler) PublishIdea(w http.ResponseWriter, r *http.Request) {
	res, err := h.publisher.Publish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, res, nil)
}

// GetIdeaContent handles GET /api/v1/ideas/{id}/content.
func (h *Handler) GetIdeaContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.ideas.GetIdea(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	item, err := h.drafts.GetContentByIdea(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, contentToResponse(item), nil)
}

// ListIdeaUsage handles GET /api/v1/ideas/{id}/usage.
func (h *Handler) ListIdeaUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.drafts.ListUsage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]UsageResponse, 0, len(usage))
	var totalCost float64
	for _, u := range usage {
		out = append(out, usageToResponse(u))
		totalCost += u.CostUSD
	}
	WriteSuccess(w, map[string]any{
		"calls":          out,
		"total_cost_usd": totalCost,
	}, &Meta{Total: int64(len(out))})
}

// RecoverStaleRequest is the optional body of POST /api/v1/ideas/recover-stale.
type RecoverStaleRequest struct {
	// OlderThan is a Go duration such as "45m". Empty uses the configured window.
	OlderThan string `json:"older_than"`
}

// RecoverStale handles POST /api/v1/ideas/recover-stale.
func (h *Handler) RecoverStale(w http.ResponseWriter, r *http.Request) {
	var req RecoverStaleRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	var olderThan time.Duration
	if req.OlderThan != "" {
		d, err := time.ParseDuration(req.OlderThan)
		if err != nil || d <= 0 {
			WriteValidationError(w, map[string]string{"older_than": "Must be a positive duration such as 30m"})
			return
		}
		olderThan = d
	}

	recovered, err := h.ideas.RecoverStale(r.Context(), olderThan)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, map[string]any{"recovered": recovered}, &Meta{Total: int64(len(recovered))})
}

// ideaTransition runs a single-id lifecycle operation and renders the idea.
func (h *Handler) ideaTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) (*model.BacklogIdea, error)) {
	idea, err := op(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, ideaToResponse(idea), nil)
}

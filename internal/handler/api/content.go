// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GetContent handles GET /api/v1/content/{id}.
func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	item, err := h.drafts.GetContent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, contentToResponse(item), nil)
}

// ApproveContent handles POST /api/v1/content/{id}/approve. Each call moves
// the item one step: draft to review, review to ready.
func (h *Handler) ApproveContent(w http.ResponseWriter, r *http.Request) {
	item, err := h.drafts.ApproveDraft(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, contentToResponse(item), nil)
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-pipeline/internal/model"
	"github.com/olegiv/ocms-pipeline/internal/service"
)

// SaveSettingsRequest is the body of PUT /api/v1/settings/{project}/{hypothesis}.
// An empty api_key keeps the stored key.
type SaveSettingsRequest struct {
	EndpointURL string `json:"endpoint_url"`
	APIKey      string `json:"api_key"`
	Cadence     string `json:"cadence"`
	Enabled     bool   `json:"enabled"`
}

// GetSettings handles GET /api/v1/settings/{project}/{hypothesis}.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.GetSettings(r.Context(), chi.URLParam(r, "project"), chi.URLParam(r, "hypothesis"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, settingsToResponse(settings), nil)
}

// SaveSettings handles PUT /api/v1/settings/{project}/{hypothesis}.
func (h *Handler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var req SaveSettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	settings, err := h.settings.SaveSettings(r.Context(), service.SaveSettingsInput{
		ProjectID:    chi.URLParam(r, "project"),
		HypothesisID: chi.URLParam(r, "hypothesis"),
		EndpointURL:  req.EndpointURL,
		APIKey:       req.APIKey,
		Cadence:      req.Cadence,
		Enabled:      req.Enabled,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, settingsToResponse(settings), nil)
}

// SaveContextRequest is the body of PUT /api/v1/contexts/{project}/{hypothesis}.
type SaveContextRequest struct {
	ProductName      string   `json:"product_name"`
	ProductAliases   []string `json:"product_aliases"`
	Persona          string   `json:"persona"`
	ValueProposition string   `json:"value_proposition"`
	Tone             string   `json:"tone"`
	Language         string   `json:"language"`
}

// SaveContext handles PUT /api/v1/contexts/{project}/{hypothesis}.
func (h *Handler) SaveContext(w http.ResponseWriter, r *http.Request) {
	var req SaveContextRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pc, err := h.settings.SaveContext(r.Context(), model.ProjectContext{
		ProjectID:        chi.URLParam(r, "project"),
		HypothesisID:     chi.URLParam(r, "hypothesis"),
		ProductName:      req.ProductName,
		ProductAliases:   req.ProductAliases,
		Persona:          req.Persona,
		ValueProposition: req.ValueProposition,
		Tone:             req.Tone,
		Language:         req.Language,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, pc, nil)
}

// CreateCluster handles POST /api/v1/clusters.
func (h *Handler) CreateCluster(w http.ResponseWriter, r *http.Request) {
	var in service.CreateClusterInput
	if !decodeJSON(w, r, &in) {
		return
	}

	cluster, err := h.settings.CreateCluster(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, cluster)
}

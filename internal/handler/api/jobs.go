// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-pipeline/internal/scheduler"
)

// ListJobs handles GET /api/v1/jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := h.jobs.List()
	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobToResponse(j))
	}
	WriteSuccess(w, out, &Meta{Total: int64(len(out))})
}

// TriggerJob handles POST /api/v1/jobs/{name}/trigger. The job runs to
// completion before the response is written.
func (h *Handler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	run, err := h.jobs.TriggerNow(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, jobRunToResponse(run), nil)
}

// ListJobRuns handles GET /api/v1/jobs/{name}/runs?limit=N.
func (h *Handler) ListJobRuns(w http.ResponseWriter, r *http.Request) {
	var limit int64
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			WriteBadRequest(w, "Invalid limit", nil)
			return
		}
		limit = min(n, 500)
	}

	runs, err := h.jobs.Runs(r.Context(), chi.URLParam(r, "name"), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]JobRunResponse, 0, len(runs))
	for i := range runs {
		out = append(out, jobRunToResponse(&runs[i]))
	}
	WriteSuccess(w, out, &Meta{Total: int64(len(out))})
}

// UpdateJobScheduleRequest is the body of PUT /api/v1/jobs/{name}/schedule.
type UpdateJobScheduleRequest struct {
	Schedule string `json:"schedule"`
}

// UpdateJobSchedule handles PUT /api/v1/jobs/{name}/schedule.
func (h *Handler) UpdateJobSchedule(w http.ResponseWriter, r *http.Request) {
	var req UpdateJobScheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := scheduler.ValidateSchedule(req.Schedule); err != nil {
		WriteValidationError(w, map[string]string{"schedule": err.Error()})
		return
	}

	name := chi.URLParam(r, "name")
	if err := h.jobs.UpdateSchedule(name, req.Schedule); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJob(w, r, name)
}

// ResetJobSchedule handles DELETE /api/v1/jobs/{name}/schedule.
func (h *Handler) ResetJobSchedule(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.jobs.ResetSchedule(name); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJob(w, r, name)
}

func (h *Handler) writeJob(w http.ResponseWriter, r *http.Request, name string) {
	for _, j := range h.jobs.List() {
		if j.Name == name {
			WriteSuccess(w, jobToResponse(j), nil)
			return
		}
	}
	h.writeServiceError(w, r, scheduler.ErrJobNotFound)
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import "github.com/go-chi/chi/v5"

// Routes mounts the API on r. The caller decides the prefix (/api/v1) and
// the middleware stack.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/ideas", func(r chi.Router) {
		r.Get("/", h.ListIdeas)
		r.Post("/", h.CreateIdea)
		r.Post("/recover-stale", h.RecoverStale)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetIdea)
			r.Post("/archive", h.ArchiveIdea)
			r.Post("/schedule", h.ScheduleIdea)
			r.Post("/schedule-next", h.ScheduleNextIdea)
			r.Post("/unschedule", h.UnscheduleIdea)
			r.Post("/draft", h.RequestDraft)
			r.Post("/publish", h.PublishIdea)
			r.Get("/content", h.GetIdeaContent)
			r.Get("/usage", h.ListIdeaUsage)
		})
	})

	r.Get("/content/{id}", h.GetContent)
	r.Post("/content/{id}/approve", h.ApproveContent)

	r.Get("/settings/{project}/{hypothesis}", h.GetSettings)
	r.Put("/settings/{project}/{hypothesis}", h.SaveSettings)
	r.Put("/contexts/{project}/{hypothesis}", h.SaveContext)
	r.Post("/clusters", h.CreateCluster)

	if h.jobs != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", h.ListJobs)
			r.Post("/{name}/trigger", h.TriggerJob)
			r.Get("/{name}/runs", h.ListJobRuns)
			r.Put("/{name}/schedule", h.UpdateJobSchedule)
			r.Delete("/{name}/schedule", h.ResetJobSchedule)
		})
	}
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"time"

	"github.com/olegiv/ocms-pipeline/internal/model"
	"github.com/olegiv/ocms-pipeline/internal/quality"
	"github.com/olegiv/ocms-pipeline/internal/scheduler"
	"github.com/olegiv/ocms-pipeline/internal/service"
	"github.com/olegiv/ocms-pipeline/internal/store"
)

// IdeaResponse represents a backlog idea in API responses.
type IdeaResponse struct {
	ID                 string     `json:"id"`
	ProjectID          string     `json:"project_id"`
	HypothesisID       string     `json:"hypothesis_id"`
	ClusterID          string     `json:"cluster_id,omitempty"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Category           string     `json:"category"`
	Status             string     `json:"status"`
	ScheduledDate      *time.Time `json:"scheduled_date,omitempty"`
	InProgressSince    *time.Time `json:"in_progress_since,omitempty"`
	TemplateType       string     `json:"template_type"`
	TemplateConfidence float64    `json:"template_confidence"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func ideaToResponse(i *model.BacklogIdea) IdeaResponse {
	resp := IdeaResponse{
		ID:                 i.ID,
		ProjectID:          i.ProjectID,
		HypothesisID:       i.HypothesisID,
		Title:              i.Title,
		Description:        i.Description,
		Category:           string(i.Category),
		Status:             string(i.Status),
		TemplateType:       i.TemplateType,
		TemplateConfidence: i.TemplateConfidence,
		CreatedAt:          i.CreatedAt,
		UpdatedAt:          i.UpdatedAt,
	}
	if i.ClusterID.Valid {
		resp.ClusterID = i.ClusterID.String
	}
	if i.ScheduledDate.Valid {
		resp.ScheduledDate = &i.ScheduledDate.Time
	}
	if i.InProgressSince.Valid {
		resp.InProgressSince = &i.InProgressSince.Time
	}
	return resp
}

// ContentResponse represents a content item in API responses.
type ContentResponse struct {
	ID            string          `json:"id"`
	IdeaID        string          `json:"idea_id"`
	ProjectID     string          `json:"project_id"`
	HypothesisID  string          `json:"hypothesis_id"`
	Title         string          `json:"title"`
	Outline       string          `json:"outline"`
	Content       string          `json:"content"`
	Category      string          `json:"category"`
	Format        string          `json:"format"`
	Status        string          `json:"status"`
	QualityScore  int             `json:"quality_score"`
	HeadlineScore int             `json:"headline_score"`
	QualityReport json.RawMessage `json:"quality_report,omitempty"`
	PublishedRef  string          `json:"published_ref,omitempty"`
	PublishedURL  string          `json:"published_url,omitempty"`
	PublishedAt   *time.Time      `json:"published_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func contentToResponse(c *model.ContentItem) ContentResponse {
	resp := ContentResponse{
		ID:            c.ID,
		IdeaID:        c.BacklogIdeaID,
		ProjectID:     c.ProjectID,
		HypothesisID:  c.HypothesisID,
		Title:         c.Title,
		Outline:       c.Outline,
		Content:       c.Content,
		Category:      string(c.Category),
		Format:        string(c.Format),
		Status:        string(c.Status),
		QualityScore:  c.QualityScore,
		HeadlineScore: c.HeadlineScore,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if json.Valid([]byte(c.QualityReport)) {
		resp.QualityReport = json.RawMessage(c.QualityReport)
	}
	if c.PublishedRef.Valid {
		resp.PublishedRef = c.PublishedRef.String
	}
	if c.PublishedURL.Valid {
		resp.PublishedURL = c.PublishedURL.String
	}
	if c.PublishedAt.Valid {
		resp.PublishedAt = &c.PublishedAt.Time
	}
	return resp
}

// DraftResponse is returned by the draft endpoint.
type DraftResponse struct {
	IdeaID     string              `json:"idea_id"`
	StartedAt  time.Time           `json:"started_at"`
	InFlight   bool                `json:"in_flight"`
	Shared     bool                `json:"shared"`
	Content    *ContentResponse    `json:"content,omitempty"`
	Assessment *quality.Assessment `json:"assessment,omitempty"`
}

func draftToResponse(res *service.DraftResult) DraftResponse {
	resp := DraftResponse{
		IdeaID:     res.IdeaID,
		StartedAt:  res.StartedAt,
		InFlight:   res.InFlight,
		Shared:     res.Shared,
		Assessment: res.Assessment,
	}
	if res.Content != nil {
		c := contentToResponse(res.Content)
		resp.Content = &c
	}
	return resp
}

// UsageResponse is one generation call in the usage ledger.
type UsageResponse struct {
	ID               int64     `json:"id"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	TotalTokens      int64     `json:"total_tokens"`
	CostUSD          float64   `json:"cost_usd"`
	DurationMs       int64     `json:"duration_ms"`
	Success          bool      `json:"success"`
	Error            string    `json:"error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func usageToResponse(u store.GenerationUsage) UsageResponse {
	return UsageResponse{
		ID:               u.ID,
		Provider:         u.Provider,
		Model:            u.Model,
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
		CostUSD:          u.CostUSD,
		DurationMs:       u.DurationMs,
		Success:          u.Success,
		Error:            u.Error,
		CreatedAt:        u.CreatedAt,
	}
}

// SettingsResponse never carries the API key itself.
type SettingsResponse struct {
	ProjectID     string    `json:"project_id"`
	HypothesisID  string    `json:"hypothesis_id"`
	EndpointURL   string    `json:"endpoint_url"`
	HasAPIKey     bool      `json:"has_api_key"`
	Cadence       string    `json:"cadence"`
	Enabled       bool      `json:"enabled"`
	Complete      bool      `json:"complete"`
	MissingFields []string  `json:"missing_fields,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func settingsToResponse(s *model.ScheduleSettings) SettingsResponse {
	missing := s.MissingFields()
	return SettingsResponse{
		ProjectID:     s.ProjectID,
		HypothesisID:  s.HypothesisID,
		EndpointURL:   s.EndpointURL,
		HasAPIKey:     s.APIKey != "",
		Cadence:       s.Cadence,
		Enabled:       s.Enabled,
		Complete:      len(missing) == 0,
		MissingFields: missing,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// JobResponse describes a registered background job.
type JobResponse struct {
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	DefaultSchedule string     `json:"default_schedule"`
	Schedule        string     `json:"schedule"`
	IsOverridden    bool       `json:"is_overridden"`
	Running         bool       `json:"running"`
	LastRun         *time.Time `json:"last_run,omitempty"`
	NextRun         *time.Time `json:"next_run,omitempty"`
}

func jobToResponse(j scheduler.JobInfo) JobResponse {
	resp := JobResponse{
		Name:            j.Name,
		Description:     j.Description,
		DefaultSchedule: j.DefaultSchedule,
		Schedule:        j.Schedule,
		IsOverridden:    j.IsOverridden,
		Running:         j.Running,
	}
	if !j.LastRun.IsZero() {
		resp.LastRun = &j.LastRun
	}
	if !j.NextRun.IsZero() {
		resp.NextRun = &j.NextRun
	}
	return resp
}

// JobRunResponse is one recorded job execution.
type JobRunResponse struct {
	ID          int64      `json:"id"`
	Job         string     `json:"job"`
	Trigger     string     `json:"trigger"`
	Status      string     `json:"status"`
	Summary     string     `json:"summary,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMs  int64      `json:"duration_ms"`
}

func jobRunToResponse(run *model.JobRun) JobRunResponse {
	resp := JobRunResponse{
		ID:         run.ID,
		Job:        run.Job,
		Trigger:    run.Trigger,
		Status:     run.Status,
		Summary:    run.Summary,
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		DurationMs: run.DurationMs,
	}
	if run.CompletedAt.Valid {
		resp.CompletedAt = &run.CompletedAt.Time
	}
	return resp
}

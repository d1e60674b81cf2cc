// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/ocms-pipeline/internal/auth"
	"github.com/olegiv/ocms-pipeline/internal/model"
	"github.com/olegiv/ocms-pipeline/internal/publish"
	"github.com/olegiv/ocms-pipeline/internal/store"
)

// SettingsService manages per-scope publishing settings, project contexts
// and SEO clusters. API keys are sealed before they reach the database.
type SettingsService struct {
	queries      *store.Queries
	sealer       *auth.Sealer
	contexts     *StoreContextLoader
	logger       *slog.Logger
	allowPrivate bool
	now          func() time.Time
}

// SettingsOptions configures a SettingsService.
type SettingsOptions struct {
	// Contexts is invalidated whenever a project context is saved. Optional.
	Contexts *StoreContextLoader
	// AllowPrivateEndpoints accepts endpoint URLs on private networks.
	AllowPrivateEndpoints bool
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(db *sql.DB, sealer *auth.Sealer, logger *slog.Logger, opts SettingsOptions) *SettingsService {
	return &SettingsService{
		queries:      store.New(db),
		sealer:       sealer,
		contexts:     opts.Contexts,
		logger:       logger,
		allowPrivate: opts.AllowPrivateEndpoints,
		now:          utcNow,
	}
}

// SaveSettingsInput is the editable part of ScheduleSettings. An empty
// APIKey keeps the stored key.
type SaveSettingsInput struct {
	ProjectID    string `json:"project_id"`
	HypothesisID string `json:"hypothesis_id"`
	EndpointURL  string `json:"endpoint_url"`
	APIKey       string `json:"api_key"`
	Cadence      string `json:"cadence"`
	Enabled      bool   `json:"enabled"`
}

// SaveSettings validates and stores publishing settings for a scope.
func (s *SettingsService) SaveSettings(ctx context.Context, in SaveSettingsInput) (*model.ScheduleSettings, error) {
	const op = "SaveSettings"

	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.HypothesisID = strings.TrimSpace(in.HypothesisID)
	in.EndpointURL = strings.TrimSpace(in.EndpointURL)
	in.Cadence = strings.TrimSpace(in.Cadence)

	if in.ProjectID == "" || in.HypothesisID == "" {
		return nil, errorf(op, KindInvalidInput, "project_id and hypothesis_id are required")
	}
	if in.EndpointURL != "" {
		if err := publish.ValidateEndpointURL(in.EndpointURL, s.allowPrivate); err != nil {
			return nil, errorf(op, KindInvalidInput, "endpoint_url: %w", err)
		}
	}
	if in.Cadence != "" {
		candidate := model.ScheduleSettings{Cadence: in.Cadence}
		if _, err := candidate.Schedule(); err != nil {
			return nil, errorf(op, KindInvalidInput, "cadence: %w", err)
		}
	}

	sealed, err := s.sealer.Seal(strings.TrimSpace(in.APIKey))
	if err != nil {
		return nil, fmt.Errorf("sealing api key: %w", err)
	}

	err = s.queries.UpsertScheduleSettings(ctx, store.ScheduleSettingsRow{
		ProjectID:    in.ProjectID,
		HypothesisID: in.HypothesisID,
		EndpointURL:  in.EndpointURL,
		APIKeySealed: sealed,
		Cadence:      in.Cadence,
		Enabled:      in.Enabled,
		UpdatedAt:    s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("saving settings: %w", err)
	}

	s.logger.Info("schedule settings saved",
		"project_id", in.ProjectID,
		"hypothesis_id", in.HypothesisID,
		"enabled", in.Enabled)

	return s.GetSettings(ctx, in.ProjectID, in.HypothesisID)
}

// GetSettings returns the scope's settings with the API key opened.
// Absent settings yield SettingsMissing.
func (s *SettingsService) GetSettings(ctx context.Context, projectID, hypothesisID string) (*model.ScheduleSettings, error) {
	const op = "GetSettings"

	row, err := s.queries.GetScheduleSettings(ctx, projectID, hypothesisID)
	if store.IsNotFound(err) {
		return nil, errorf(op, KindSettingsMissing, "no settings for %s/%s", projectID, hypothesisID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	apiKey, err := s.sealer.Open(row.APIKeySealed)
	if err != nil {
		// A rotated secret leaves stored keys unreadable; publishing then
		// reports SettingsMissing.
		s.logger.Error("failed to open stored api key",
			"project_id", projectID,
			"hypothesis_id", hypothesisID,
			"error", err)
		apiKey = ""
	}

	return &model.ScheduleSettings{
		ProjectID:    row.ProjectID,
		HypothesisID: row.HypothesisID,
		EndpointURL:  row.EndpointURL,
		APIKey:       apiKey,
		Cadence:      row.Cadence,
		Enabled:      row.Enabled,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

// CompleteSettings returns settings only when they can be used to publish.
func (s *SettingsService) CompleteSettings(ctx context.Context, projectID, hypothesisID string) (*model.ScheduleSettings, error) {
	const op = "CompleteSettings"

	settings, err := s.GetSettings(ctx, projectID, hypothesisID)
	if err != nil {
		return nil, err
	}
	if missing := settings.MissingFields(); len(missing) > 0 {
		return nil, errorf(op, KindSettingsMissing, "incomplete settings for %s/%s: %s",
			projectID, hypothesisID, strings.Join(missing, ", "))
	}
	return settings, nil
}

// SaveContext stores the prompt context for a scope and drops any cached copy.
func (s *SettingsService) SaveContext(ctx context.Context, pc model.ProjectContext) (*model.ProjectContext, error) {
	const op = "SaveContext"

	pc.ProjectID = strings.TrimSpace(pc.ProjectID)
	pc.HypothesisID = strings.TrimSpace(pc.HypothesisID)
	pc.ProductName = strings.TrimSpace(pc.ProductName)
	if pc.ProjectID == "" || pc.HypothesisID == "" {
		return nil, errorf(op, KindInvalidInput, "project_id and hypothesis_id are required")
	}
	if pc.ProductName == "" {
		return nil, errorf(op, KindInvalidInput, "product_name is required")
	}

	if err := s.queries.UpsertProjectContext(ctx, pc, s.now()); err != nil {
		return nil, fmt.Errorf("saving project context: %w", err)
	}
	if s.contexts != nil {
		s.contexts.Invalidate(ctx, pc.ProjectID, pc.HypothesisID)
	}

	saved, err := s.queries.GetProjectContext(ctx, pc.ProjectID, pc.HypothesisID)
	if err != nil {
		return nil, fmt.Errorf("reloading project context: %w", err)
	}
	return &saved, nil
}

// CreateClusterInput describes a new SEO cluster.
type CreateClusterInput struct {
	ProjectID    string   `json:"project_id"`
	HypothesisID string   `json:"hypothesis_id"`
	Title        string   `json:"title"`
	Intent       string   `json:"intent"`
	Keywords     []string `json:"keywords"`
}

// CreateCluster stores a keyword cluster ideas can reference.
func (s *SettingsService) CreateCluster(ctx context.Context, in CreateClusterInput) (*model.SeoCluster, error) {
	const op = "CreateCluster"

	c := model.SeoCluster{
		ID:           uuid.NewString(),
		ProjectID:    strings.TrimSpace(in.ProjectID),
		HypothesisID: strings.TrimSpace(in.HypothesisID),
		Title:        strings.TrimSpace(in.Title),
		Intent:       strings.TrimSpace(in.Intent),
		CreatedAt:    s.now(),
	}
	if c.ProjectID == "" || c.HypothesisID == "" || c.Title == "" {
		return nil, errorf(op, KindInvalidInput, "project_id, hypothesis_id and title are required")
	}
	switch c.Intent {
	case model.IntentInformational, model.IntentCommercial, model.IntentTransactional, model.IntentNavigational:
	default:
		return nil, errorf(op, KindInvalidInput, "unknown intent %q", c.Intent)
	}
	for _, kw := range in.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			c.Keywords = append(c.Keywords, kw)
		}
	}

	if err := s.queries.CreateSeoCluster(ctx, c); err != nil {
		return nil, fmt.Errorf("creating cluster: %w", err)
	}
	return &c, nil
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/olegiv/ocms-pipeline/internal/model"
)

// ScheduleSettingsRow is a schedule_settings row with the API key still sealed.
type ScheduleSettingsRow struct {
	ProjectID    string
	HypothesisID string
	EndpointURL  string
	APIKeySealed string
	Cadence      string
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GetScheduleSettings returns sql.ErrNoRows when the scope has no settings.
func (q *Queries) GetScheduleSettings(ctx context.Context, projectID, hypothesisID string) (ScheduleSettingsRow, error) {
	var r ScheduleSettingsRow
	err := q.db.QueryRowContext(ctx, `
		SELECT project_id, hypothesis_id, endpoint_url, api_key_sealed, cadence, enabled,
		       created_at, updated_at
		FROM schedule_settings WHERE project_id = ? AND hypothesis_id = ?`,
		projectID, hypothesisID,
	).Scan(
		&r.ProjectID,
		&r.HypothesisID,
		&r.EndpointURL,
		&r.APIKeySealed,
		&r.Cadence,
		&r.Enabled,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

// UpsertScheduleSettings writes the scope's settings. An empty APIKeySealed
// keeps the stored key.
func (q *Queries) UpsertScheduleSettings(ctx context.Context, arg ScheduleSettingsRow) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO schedule_settings (
			project_id, hypothesis_id, endpoint_url, api_key_sealed, cadence, enabled,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project_id, hypothesis_id) DO UPDATE SET
			endpoint_url = excluded.endpoint_url,
			api_key_sealed = CASE WHEN excluded.api_key_sealed = ''
				THEN schedule_settings.api_key_sealed ELSE excluded.api_key_sealed END,
			cadence = excluded.cadence,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`,
		arg.ProjectID,
		arg.HypothesisID,
		arg.EndpointURL,
		arg.APIKeySealed,
		arg.Cadence,
		arg.Enabled,
		arg.UpdatedAt,
		arg.UpdatedAt,
	)
	return err
}

// GetProjectContext returns sql.ErrNoRows when the scope has no context.
func (q *Queries) GetProjectContext(ctx context.Context, projectID, hypothesisID string) (model.ProjectContext, error) {
	var (
		pc      model.ProjectContext
		aliases string
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT project_id, hypothesis_id, product_name, product_aliases, persona,
		       value_proposition, tone, language
		FROM project_contexts WHERE project_id = ? AND hypothesis_id = ?`,
		projectID, hypothesisID,
	).Scan(
		&pc.ProjectID,
		&pc.HypothesisID,
		&pc.ProductName,
		&aliases,
		&pc.Persona,
		&pc.ValueProposition,
		&pc.Tone,
		&pc.Language,
	)
	if err != nil {
		return model.ProjectContext{}, err
	}
	if err := json.Unmarshal([]byte(aliases), &pc.ProductAliases); err != nil {
		return model.ProjectContext{}, fmt.Errorf("decoding product aliases: %w", err)
	}
	return pc, nil
}

// UpsertProjectContext writes the prompt context of a scope.
func (q *Queries) UpsertProjectContext(ctx context.Context, pc model.ProjectContext, now time.Time) error {
	aliases, err := json.Marshal(nonNil(pc.ProductAliases))
	if err != nil {
		return fmt.Errorf("encoding product aliases: %w", err)
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO project_contexts (
			project_id, hypothesis_id, product_name, product_aliases, persona,
			value_proposition, tone, language, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project_id, hypothesis_id) DO UPDATE SET
			product_name = excluded.product_name,
			product_aliases = excluded.product_aliases,
			persona = excluded.persona,
			value_proposition = excluded.value_proposition,
			tone = excluded.tone,
			language = excluded.language,
			updated_at = excluded.updated_at`,
		pc.ProjectID,
		pc.HypothesisID,
		pc.ProductName,
		string(aliases),
		pc.Persona,
		pc.ValueProposition,
		pc.Tone,
		pc.Language,
		now,
	)
	return err
}

// CreateSeoCluster inserts a keyword cluster.
func (q *Queries) CreateSeoCluster(ctx context.Context, c model.SeoCluster) error {
	keywords, err := json.Marshal(nonNil(c.Keywords))
	if err != nil {
		return fmt.Errorf("encoding keywords: %w", err)
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO seo_clusters (id, project_id, hypothesis_id, title, intent, keywords, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ProjectID, c.HypothesisID, c.Title, c.Intent, string(keywords), c.CreatedAt,
	)
	return err
}

// GetSeoCluster returns sql.ErrNoRows when id is unknown.
func (q *Queries) GetSeoCluster(ctx context.Context, id string) (model.SeoCluster, error) {
	var (
		c        model.SeoCluster
		keywords string
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT id, project_id, hypothesis_id, title, intent, keywords, created_at
		FROM seo_clusters WHERE id = ?`, id,
	).Scan(&c.ID, &c.ProjectID, &c.HypothesisID, &c.Title, &c.Intent, &keywords, &c.CreatedAt)
	if err != nil {
		return model.SeoCluster{}, err
	}
	if err := json.Unmarshal([]byte(keywords), &c.Keywords); err != nil {
		return model.SeoCluster{}, fmt.Errorf("decoding keywords: %w", err)
	}
	return c, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"
)

// GenerationUsage is one external generation call.
type GenerationUsage struct {
	ID               int64
	BacklogIdeaID    string
	Provider         string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	CostUSD          float64
	DurationMs       int64
	Success          bool
	Error            string
	CreatedAt        time.Time
}

// CreateGenerationUsage appends to the usage ledger.
func (q *Queries) CreateGenerationUsage(ctx context.Context, u GenerationUsage) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO generation_usage (
			backlog_idea_id, provider, model, prompt_tokens, completion_tokens,
			total_tokens, cost_usd, duration_ms, success, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.BacklogIdeaID,
		u.Provider,
		u.Model,
		u.PromptTokens,
		u.CompletionTokens,
		u.TotalTokens,
		u.CostUSD,
		u.DurationMs,
		u.Success,
		u.Error,
		u.CreatedAt,
	)
	return err
}

// ListGenerationUsageByIdea returns an idea's calls, oldest first.
func (q *Queries) ListGenerationUsageByIdea(ctx context.Context, ideaID string) ([]GenerationUsage, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, backlog_idea_id, provider, model, prompt_tokens, completion_tokens,
		       total_tokens, cost_usd, duration_ms, success, error, created_at
		FROM generation_usage WHERE backlog_idea_id = ?
		ORDER BY id`, ideaID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []GenerationUsage
	for rows.Next() {
		var u GenerationUsage
		if err := rows.Scan(
			&u.ID,
			&u.BacklogIdeaID,
			&u.Provider,
			&u.Model,
			&u.PromptTokens,
			&u.CompletionTokens,
			&u.TotalTokens,
			&u.CostUSD,
			&u.DurationMs,
			&u.Success,
			&u.Error,
			&u.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

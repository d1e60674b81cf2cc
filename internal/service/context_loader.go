// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/olegiv/ocms-pipeline/internal/cache"
	"github.com/olegiv/ocms-pipeline/internal/model"
	"github.com/olegiv/ocms-pipeline/internal/store"
)

// ContextLoader returns the prompt context of a project hypothesis. The
// pipeline treats the result as opaque apart from the offer terms.
type ContextLoader interface {
	Load(ctx context.Context, projectID, hypothesisID string) (*model.ProjectContext, error)
}

// StoreContextLoader reads project_contexts through a cache.
type StoreContextLoader struct {
	queries *store.Queries
	cache   *cache.TypedCache[model.ProjectContext]
}

// NewStoreContextLoader creates a loader caching contexts in c for ttl.
func NewStoreContextLoader(db *sql.DB, c cache.Cache, ttl time.Duration) *StoreContextLoader {
	return &StoreContextLoader{
		queries: store.New(db),
		cache:   cache.NewTypedCache[model.ProjectContext](c, ttl),
	}
}

func contextKey(projectID, hypothesisID string) string {
	return "context:" + projectID + ":" + hypothesisID
}

// Load returns the stored context, or an empty one carrying only the scope
// when nothing was configured.
func (l *StoreContextLoader) Load(ctx context.Context, projectID, hypothesisID string) (*model.ProjectContext, error) {
	return l.cache.GetOrSet(ctx, contextKey(projectID, hypothesisID), func() (*model.ProjectContext, error) {
		pc, err := l.queries.GetProjectContext(ctx, projectID, hypothesisID)
		if store.IsNotFound(err) {
			return &model.ProjectContext{ProjectID: projectID, HypothesisID: hypothesisID}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("loading project context: %w", err)
		}
		return &pc, nil
	})
}

// Invalidate drops the cached context of a scope.
func (l *StoreContextLoader) Invalidate(ctx context.Context, projectID, hypothesisID string) {
	_ = l.cache.Delete(ctx, contextKey(projectID, hypothesisID))
}

var _ ContextLoader = (*StoreContextLoader)(nil)

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service implements the content pipeline: the idea lifecycle,
// draft generation and publishing. Every operation returns *Error for
// pipeline failures so callers can tell retryable errors from bad input.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/olegiv/ocms-pipeline/internal/model"
	"github.com/olegiv/ocms-pipeline/internal/store"
)

func utcNow() time.Time {
	return time.Now().UTC()
}

// loadIdea fetches an idea, mapping a missing row to IdeaNotFound.
func loadIdea(ctx context.Context, q *store.Queries, op, id string) (*model.BacklogIdea, error) {
	idea, err := q.GetIdea(ctx, id)
	if store.IsNotFound(err) {
		return nil, errorf(op, KindIdeaNotFound, "idea %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading idea: %w", err)
	}
	return &idea, nil
}

// loadContent fetches a content item, mapping a missing row to ContentNotFound.
func loadContent(ctx context.Context, q *store.Queries, op, id string) (*model.ContentItem, error) {
	item, err := q.GetContentItem(ctx, id)
	if store.IsNotFound(err) {
		return nil, errorf(op, KindContentNotFound, "content %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading content: %w", err)
	}
	return &item, nil
}

// invalidTransition reports a rejected state change.
func invalidTransition(op string, from, to any) *Error {
	return errorf(op, KindInvalidTransition, "cannot move from %v to %v", from, to)
}

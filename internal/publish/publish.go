// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package publish delivers ready content to a project's publishing endpoint.
package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/olegiv/ocms-pipeline/internal/model"
)

// Post is the payload sent to the publishing endpoint.
type Post struct {
	IdeaID       string              `json:"idea_id"`
	ContentID    string              `json:"content_id"`
	ProjectID    string              `json:"project_id"`
	HypothesisID string              `json:"hypothesis_id"`
	Title        string              `json:"title"`
	Slug         string              `json:"slug"`
	Format       model.ContentFormat `json:"format"`
	Category     model.Category      `json:"category"`
	Outline      string              `json:"outline,omitempty"`
	Markdown     string              `json:"markdown"`
	HTML         string              `json:"html"`
	ScheduledFor time.Time           `json:"scheduled_for"`
}

// Target is where a post goes and the credential used to get it there.
type Target struct {
	EndpointURL string
	APIKey      string
}

// Receipt identifies the remote post created by a successful publish.
type Receipt struct {
	Ref string
	URL string
}

// Client publishes posts. Implementations must treat Post.IdeaID as an
// idempotency key so a repeated call never creates a second remote post.
type Client interface {
	Publish(ctx context.Context, post Post, target Target) (*Receipt, error)
}

// Error describes a failed publish attempt.
type Error struct {
	StatusCode int
	Body       string
	Retryable  bool
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("publish: HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("publish: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a publish failure worth retrying.
// Unknown errors are treated as retryable.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return err != nil
}

// retryableStatus classifies a non-2xx response. Client errors are final
// except request timeout and rate limiting.
func retryableStatus(code int) bool {
	if code >= 400 && code < 500 {
		return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests
	}
	return true
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"errors"
	"fmt"

	"github.com/olegiv/ocms-pipeline/internal/publish"
)

// Kind classifies a pipeline error so callers can decide whether to retry
// or to fix their input.
type Kind string

// Error kinds
const (
	KindDuplicateIdea     Kind = "duplicate_idea"
	KindInvalidTransition Kind = "invalid_transition"
	KindIdeaNotFound      Kind = "idea_not_found"
	KindContentNotFound   Kind = "content_not_found"
	KindGenerationFailed  Kind = "generation_failed"
	KindSettingsMissing   Kind = "settings_missing"
	KindNotReady          Kind = "not_ready"
	KindNotDue            Kind = "not_due"
	KindPublishFailed     Kind = "publish_failed"
	KindStaleInProgress   Kind = "stale_in_progress"
	KindInvalidInput      Kind = "invalid_input"
)

// Error is returned by every service operation that fails for a pipeline
// reason. Err carries the underlying cause when there is one.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels, so errors.Is(err, ErrNotDue) works on any
// wrapped *Error of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrDuplicateIdea     = &Error{Kind: KindDuplicateIdea}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrIdeaNotFound      = &Error{Kind: KindIdeaNotFound}
	ErrContentNotFound   = &Error{Kind: KindContentNotFound}
	ErrGenerationFailed  = &Error{Kind: KindGenerationFailed}
	ErrSettingsMissing   = &Error{Kind: KindSettingsMissing}
	ErrNotReady          = &Error{Kind: KindNotReady}
	ErrNotDue            = &Error{Kind: KindNotDue}
	ErrPublishFailed     = &Error{Kind: KindPublishFailed}
	ErrStaleInProgress   = &Error{Kind: KindStaleInProgress}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
)

func newError(op string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func errorf(op string, kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether the failed operation may succeed if repeated
// unchanged. Only external-call failures qualify, and a publish rejected by
// the endpoint (a 4xx other than 408 or 429) does not.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindGenerationFailed:
		return true
	case KindPublishFailed:
		return e.Err == nil || publish.IsRetryable(e.Err)
	}
	return false
}

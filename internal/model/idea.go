// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the pipeline entities and their lifecycle tables.
package model

import (
	"database/sql"
	"time"
)

// IdeaStatus is the lifecycle state of a BacklogIdea.
type IdeaStatus string

// Idea statuses
const (
	IdeaStatusPending    IdeaStatus = "pending"
	IdeaStatusScheduled  IdeaStatus = "scheduled"
	IdeaStatusInProgress IdeaStatus = "in_progress"
	IdeaStatusPublished  IdeaStatus = "published"
	IdeaStatusArchived   IdeaStatus = "archived"
)

// ideaTransitions lists the allowed target states per source state.
// Archiving is allowed from every state and handled separately.
var ideaTransitions = map[IdeaStatus][]IdeaStatus{
	IdeaStatusPending:    {IdeaStatusScheduled, IdeaStatusInProgress},
	IdeaStatusScheduled:  {IdeaStatusScheduled, IdeaStatusPending, IdeaStatusInProgress, IdeaStatusPublished},
	IdeaStatusInProgress: {IdeaStatusPending, IdeaStatusScheduled},
	IdeaStatusPublished:  nil,
	IdeaStatusArchived:   nil,
}

// Valid reports whether s is a known idea status.
func (s IdeaStatus) Valid() bool {
	_, ok := ideaTransitions[s]
	return ok
}

// CanTransitionTo reports whether the idea may move from s to next.
func (s IdeaStatus) CanTransitionTo(next IdeaStatus) bool {
	if next == IdeaStatusArchived {
		return s.Valid()
	}
	for _, allowed := range ideaTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further non-archive transitions exist.
func (s IdeaStatus) IsTerminal() bool {
	return s == IdeaStatusArchived || s == IdeaStatusPublished
}

// Category classifies what an idea is about.
type Category string

// Idea categories
const (
	CategoryPain    Category = "pain"
	CategoryGoal    Category = "goal"
	CategoryTrigger Category = "trigger"
	CategoryFeature Category = "feature"
	CategoryBenefit Category = "benefit"
	CategoryFAQ     Category = "faq"
	CategoryInfo    Category = "info"
)

// Categories returns all known categories.
func Categories() []Category {
	return []Category{
		CategoryPain, CategoryGoal, CategoryTrigger, CategoryFeature,
		CategoryBenefit, CategoryFAQ, CategoryInfo,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// BacklogIdea is a candidate article.
type BacklogIdea struct {
	ID                 string         `json:"id"`
	ProjectID          string         `json:"project_id"`
	HypothesisID       string         `json:"hypothesis_id"`
	ClusterID          sql.NullString `json:"cluster_id"`
	Title              string         `json:"title"`
	NormalizedTitle    string         `json:"-"`
	Description        string         `json:"description"`
	Category           Category       `json:"category"`
	Status             IdeaStatus     `json:"status"`
	StatusBefore       sql.NullString `json:"-"`
	ScheduledDate      sql.NullTime   `json:"scheduled_date"`
	InProgressSince    sql.NullTime   `json:"-"`
	TemplateType       string         `json:"template_type"`
	TemplateConfidence float64        `json:"template_confidence"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	ClaimToken         sql.NullString `json:"-"`
	PublishingSince    sql.NullTime   `json:"-"`
}

// IsArchived returns true if the idea has been archived.
func (i *BacklogIdea) IsArchived() bool {
	return i.Status == IdeaStatusArchived
}

// IsPublishing reports whether a publish request holds the idea.
func (i *BacklogIdea) IsPublishing() bool {
	return i.PublishingSince.Valid
}

// IsDue reports whether a scheduled idea's date has been reached.
func (i *BacklogIdea) IsDue(now time.Time) bool {
	return i.ScheduledDate.Valid && !i.ScheduledDate.Time.After(now)
}

// IsStale reports whether an in-progress idea has been stuck longer than window.
func (i *BacklogIdea) IsStale(now time.Time, window time.Duration) bool {
	if i.Status != IdeaStatusInProgress || !i.InProgressSince.Valid {
		return false
	}
	return now.Sub(i.InProgressSince.Time) > window
}

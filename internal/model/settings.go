// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// SeoCluster intents
const (
	IntentInformational = "informational"
	IntentCommercial    = "commercial"
	IntentTransactional = "transactional"
	IntentNavigational  = "navigational"
)

// SeoCluster is a named keyword group an idea may reference.
type SeoCluster struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	HypothesisID string    `json:"hypothesis_id"`
	Title        string    `json:"title"`
	Intent       string    `json:"intent"`
	Keywords     []string  `json:"keywords"`
	CreatedAt    time.Time `json:"created_at"`
}

// ScheduleSettings holds the publishing target for a project hypothesis.
type ScheduleSettings struct {
	ProjectID    string    `json:"project_id"`
	HypothesisID string    `json:"hypothesis_id"`
	EndpointURL  string    `json:"endpoint_url"`
	APIKey       string    `json:"-"` // plaintext, sealed at rest
	Cadence      string    `json:"cadence"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MissingFields lists what prevents the settings from being used to publish.
func (s *ScheduleSettings) MissingFields() []string {
	if s == nil {
		return []string{"settings"}
	}
	var missing []string
	if !s.Enabled {
		missing = append(missing, "enabled")
	}
	if strings.TrimSpace(s.EndpointURL) == "" {
		missing = append(missing, "endpoint_url")
	}
	if strings.TrimSpace(s.APIKey) == "" {
		missing = append(missing, "api_key")
	}
	if _, err := s.Schedule(); err != nil {
		missing = append(missing, "cadence")
	}
	return missing
}

// IsComplete reports whether the settings can be used to publish.
func (s *ScheduleSettings) IsComplete() bool {
	return len(s.MissingFields()) == 0
}

// Schedule parses the cadence as a standard 5-field cron expression.
func (s *ScheduleSettings) Schedule() (cron.Schedule, error) {
	return cron.ParseStandard(strings.TrimSpace(s.Cadence))
}

// ProjectContext is the opaque prompt context for a project hypothesis.
type ProjectContext struct {
	ProjectID        string   `json:"project_id"`
	HypothesisID     string   `json:"hypothesis_id"`
	ProductName      string   `json:"product_name"`
	ProductAliases   []string `json:"product_aliases"`
	Persona          string   `json:"persona"`
	ValueProposition string   `json:"value_proposition"`
	Tone             string   `json:"tone"`
	Language         string   `json:"language"`
}

// OfferTerms returns the product name and its aliases, skipping blanks.
func (p *ProjectContext) OfferTerms() []string {
	if p == nil {
		return nil
	}
	terms := make([]string, 0, len(p.ProductAliases)+1)
	if name := strings.TrimSpace(p.ProductName); name != "" {
		terms = append(terms, name)
	}
	for _, alias := range p.ProductAliases {
		if alias = strings.TrimSpace(alias); alias != "" {
			terms = append(terms, alias)
		}
	}
	return terms
}

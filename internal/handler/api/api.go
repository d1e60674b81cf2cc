// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the REST API handlers of the content pipeline.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/olegiv/ocms-pipeline/internal/scheduler"
	"github.com/olegiv/ocms-pipeline/internal/service"
)

// maxBodyBytes bounds request bodies. Drafts are generated server side, so
// no request carries article text.
const maxBodyBytes = 1 << 20

// Services are the pipeline operations exposed over HTTP.
type Services struct {
	Ideas     *service.IdeaService
	Drafts    *service.DraftService
	Publisher *service.PublishService
	Settings  *service.SettingsService
	Jobs      *scheduler.Registry
}

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	ideas     *service.IdeaService
	drafts    *service.DraftService
	publisher *service.PublishService
	settings  *service.SettingsService
	jobs      *scheduler.Registry
	logger    *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(svc Services, logger *slog.Logger) *Handler {
	return &Handler{
		ideas:     svc.Ideas,
		drafts:    svc.Drafts,
		publisher: svc.Publisher,
		settings:  svc.Settings,
		jobs:      svc.Jobs,
		logger:    logger,
	}
}

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data,omitempty"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains pagination and other metadata.
type Meta struct {
	Total   int64 `json:"total,omitempty"`
	Page    int   `json:"page,omitempty"`
	PerPage int   `json:"per_page,omitempty"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteAccepted writes a 202 Accepted JSON response.
func WriteAccepted(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusAccepted, Response{Data: data})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// WriteValidationError writes a 422 Unprocessable Entity response with field errors.
func WriteValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	WriteError(w, http.StatusUnprocessableEntity, "validation_error", "Validation failed", fieldErrors)
}

// serviceStatus maps error kinds to HTTP status codes.
var serviceStatus = map[service.Kind]int{
	service.KindInvalidInput:      http.StatusUnprocessableEntity,
	service.KindSettingsMissing:   http.StatusUnprocessableEntity,
	service.KindDuplicateIdea:     http.StatusConflict,
	service.KindInvalidTransition: http.StatusConflict,
	service.KindNotReady:          http.StatusConflict,
	service.KindNotDue:            http.StatusConflict,
	service.KindStaleInProgress:   http.StatusConflict,
	service.KindIdeaNotFound:      http.StatusNotFound,
	service.KindContentNotFound:   http.StatusNotFound,
	service.KindGenerationFailed:  http.StatusBadGateway,
	service.KindPublishFailed:     http.StatusBadGateway,
}

// writeServiceError renders an error returned by a service or the job
// registry. Unclassified errors are logged and hidden behind a 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		status, ok := serviceStatus[svcErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		message := string(svcErr.Kind)
		if svcErr.Err != nil {
			message = svcErr.Err.Error()
		}
		if status >= http.StatusInternalServerError {
			h.logger.Warn("pipeline operation failed",
				"method", r.Method,
				"path", r.URL.Path,
				"kind", svcErr.Kind,
				"error", err)
		}
		WriteJSON(w, status, ErrorResponse{
			Error: ErrorDetail{
				Code:      string(svcErr.Kind),
				Message:   message,
				Retryable: service.IsRetryable(err),
			},
		})
		return
	}

	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		WriteNotFound(w, "Job not found")
	case errors.Is(err, scheduler.ErrRateLimited):
		WriteError(w, http.StatusTooManyRequests, "rate_limited", err.Error(), nil)
	case errors.Is(err, scheduler.ErrJobRunning):
		WriteError(w, http.StatusConflict, "job_running", err.Error(), nil)
	default:
		h.logger.Error("unexpected API error",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		WriteInternalError(w, "Internal server error")
	}
}

// decodeJSON reads a JSON body into dst. It writes a 400 and returns false
// on malformed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "Request body too large", nil)
		case errors.Is(err, io.EOF):
			WriteBadRequest(w, "Request body is empty", nil)
		default:
			WriteBadRequest(w, "Invalid JSON body", map[string]string{"body": err.Error()})
		}
		return false
	}
	return true
}

// pagination reads page and per_page, defaulting to 1 and 20 and capping
// per_page at 100.
func pagination(r *http.Request) (page, perPage int, ok bool) {
	page, perPage = 1, 20
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, false
		}
		page = n
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, false
		}
		perPage = min(n, 100)
	}
	return page, perPage, true
}

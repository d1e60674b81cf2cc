// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-pipeline/internal/auth"
	"github.com/olegiv/ocms-pipeline/internal/cache"
	"github.com/olegiv/ocms-pipeline/internal/generator"
	"github.com/olegiv/ocms-pipeline/internal/model"
	"github.com/olegiv/ocms-pipeline/internal/publish"
	"github.com/olegiv/ocms-pipeline/internal/scheduler"
	"github.com/olegiv/ocms-pipeline/internal/service"
	"github.com/olegiv/ocms-pipeline/internal/testutil"
)

const testArticle = "Weekly reporting takes time and attention from the whole team. " +
	"The real problem is that manual spreadsheets are slow and error prone. " +
	"One option is Acme, a reporting tool that can automate the weekly numbers."

type stubGenerator struct {
	mu  sync.Mutex
	err error
}

func (g *stubGenerator) Generate(_ context.Context, _ generator.Request) (*generator.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return &generator.Result{
		Title:   "How to Fix Your Onboarding Funnel in 2024",
		Outline: "- the problem\n- the fix",
		Content: testArticle,
		Format:  model.FormatArticle,
		Usage: generator.Usage{
			Provider:         "stub",
			Model:            "stub-1",
			PromptTokens:     10,
			CompletionTokens: 40,
			TotalTokens:      50,
			CostUSD:          0.01,
		},
	}, nil
}

type stubClient struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *stubClient) Publish(_ context.Context, post publish.Post, _ publish.Target) (*publish.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &publish.Receipt{Ref: "remote-" + post.IdeaID, URL: "https://blog.example.com/" + post.Slug}, nil
}

type testEnv struct {
	router chi.Router
	gen    *stubGenerator
	client *stubClient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.TestDB(t)
	logger := testutil.TestLogger()
	sealer, err := auth.NewSealer("test-secret-key-that-is-long-enough-123")
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}
	mem := cache.NewMemoryCache(time.Minute, time.Minute)
	t.Cleanup(func() { _ = mem.Close() })

	env := &testEnv{gen: &stubGenerator{}, client: &stubClient{}}

	contexts := service.NewStoreContextLoader(db, mem, time.Minute)
	settings := service.NewSettingsService(db, sealer, logger, service.SettingsOptions{
		Contexts:              contexts,
		AllowPrivateEndpoints: true,
	})
	ideas := service.NewIdeaService(db, settings, logger, 30*time.Minute)
	drafts := service.NewDraftService(db, env.gen, contexts, logger, service.DraftOptions{
		Timeout:    5 * time.Second,
		StaleAfter: 30 * time.Minute,
	})
	publisher := service.NewPublishService(db, env.client, settings, logger, time.Second)

	sched, err := scheduler.New(db, publisher, ideas, logger, scheduler.Config{})
	if err != nil {
		t.Fatalf("scheduler.New failed: %v", err)
	}

	h := NewHandler(Services{
		Ideas:     ideas,
		Drafts:    drafts,
		Publisher: publisher,
		Settings:  settings,
		Jobs:      sched.Registry(),
	}, logger)

	r := chi.NewRouter()
	r.Route("/api/v1", h.Routes)
	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  *Meta           `json:"meta"`
	Error *ErrorDetail    `json:"error"`
}

func expect(t *testing.T, w *httptest.ResponseRecorder, status int) envelope {
	t.Helper()

	if w.Code != status {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, status, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response: %v; body: %s", err, w.Body.String())
	}
	return env
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) *ErrorDetail {
	t.Helper()

	env := expect(t, w, status)
	if env.Error == nil {
		t.Fatalf("expected an error body, got %s", w.Body.String())
	}
	if env.Error.Code != code {
		t.Fatalf("error code = %q, want %q (%s)", env.Error.Code, code, env.Error.Message)
	}
	return env.Error
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("failed to decode data: %v; data: %s", err, env.Data)
	}
	return v
}

const ideaBody = `{"project_id":"proj","hypothesis_id":"hyp",` +
	`"title":"Why weekly reporting eats your team's time",` +
	`"description":"Teams lose hours every week.","category":"pain"}`

func (e *testEnv) configure(t *testing.T) {
	t.Helper()

	expect(t, e.do(t, http.MethodPut, "/api/v1/contexts/proj/hyp",
		`{"product_name":"Acme","persona":"operations lead"}`), http.StatusOK)
	expect(t, e.do(t, http.MethodPut, "/api/v1/settings/proj/hyp",
		`{"endpoint_url":"http://127.0.0.1:9/posts","api_key":"endpoint-key","cadence":"0 9 * * *","enabled":true}`),
		http.StatusOK)
}

func (e *testEnv) createIdea(t *testing.T) IdeaResponse {
	t.Helper()
	return decodeData[IdeaResponse](t, expect(t, e.do(t, http.MethodPost, "/api/v1/ideas", ideaBody), http.StatusCreated))
}

func TestIdeaToPublishedPost(t *testing.T) {
	env := newTestEnv(t)
	env.configure(t)

	idea := env.createIdea(t)
	if idea.Status != string(model.IdeaStatusPending) {
		t.Fatalf("new idea status = %q, want pending", idea.Status)
	}

	draft := decodeData[DraftResponse](t, expect(t, env.do(t, http.MethodPost, "/api/v1/ideas/"+idea.ID+"/draft", ""), http.StatusOK))
	if draft.Content == nil {
		t.Fatal("draft response has no content")
	}
	if draft.Content.Status != string(model.ContentStatusDraft) {
		t.Errorf("content status = %q, want draft", draft.Content.Status)
	}
	if draft.Assessment == nil {
		t.Error("draft response has no assessment")
	}

	got := decodeData[ContentResponse](t, expect(t, env.do(t, http.MethodGet, "/api/v1/ideas/"+idea.ID+"/content", ""), http.StatusOK))
	if got.ID != draft.Content.ID {
		t.Errorf("idea content id = %q, want %q", got.ID, draft.Content.ID)
	}

	contentPath := "/api/v1/content/" + draft.Content.ID + "/approve"
	expect(t, env.do(t, http.MethodPost, contentPath, ""), http.StatusOK)
	ready := decodeData[ContentResponse](t, expect(t, env.do(t, http.MethodPost, contentPath, ""), http.StatusOK))
	if ready.Status != string(model.ContentStatusReady) {
		t.Fatalf("content status = %q, want ready", ready.Status)
	}
	expectError(t, env.do(t, http.MethodPost, contentPath, ""), http.StatusConflict, "invalid_transition")

	scheduled := decodeData[IdeaResponse](t, expect(t, env.do(t, http.MethodPost, "/api/v1/ideas/"+idea.ID+"/schedule",
		`{"scheduled_date":"2020-01-01T09:00:00Z"}`), http.StatusOK))
	if scheduled.Status != string(model.IdeaStatusScheduled) || scheduled.ScheduledDate == nil {
		t.Fatalf("scheduled idea = %+v", scheduled)
	}

	first := decodeData[service.PublishResult](t, expect(t, env.do(t, http.MethodPost, "/api/v1/ideas/"+idea.ID+"/publish", ""), http.StatusOK))
	if first.Ref != "remote-"+idea.ID {
		t.Errorf("published_ref = %q", first.Ref)
	}
	if first.AlreadyPublished {
		t.Error("first publish reported already_published")
	}

	second := decodeData[service.PublishResult](t, expect(t, env.do(t, http.MethodPost, "/api/v1/ideas/"+idea.ID+"/publish", ""), http.StatusOK))
	if !second.AlreadyPublished || second.Ref != first.Ref {
		t.Errorf("second publish = %+v", second)
	}
	if env.client.calls != 1 {
		t.Errorf("client calls = %d, want 1", env.client.calls)
	}

	published := decodeData[IdeaResponse](t, expect(t, env.do(t, http.MethodGet, "/api/v1/ideas/"+idea.ID, ""), http.StatusOK))
	if published.Status != string(model.IdeaStatusPublished) {
		t.Errorf("idea status = %q, want published", published.Status)
	}

	usage := expect(t, env.do(t, http.MethodGet, "/api/v1/ideas/"+idea.ID+"/usage", ""), http.StatusOK)
	if usage.Meta == nil || usage.Meta.Total != 1 {
		t.Errorf("usage meta = %+v, want total 1", usage.Meta)
	}
}

func TestCreateIdea_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.createIdea(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"duplicate", ideaBody, http.StatusConflict, "duplicate_idea"},
		{"missing title", `{"project_id":"proj","hypothesis_id":"hyp","category":"pain"}`, http.StatusUnprocessableEntity, "invalid_input"},
		{"unknown category", `{"project_id":"proj","hypothesis_id":"hyp","title":"A perfectly fine title","category":"gossip"}`, http.StatusUnprocessableEntity, "invalid_input"},
		{"malformed", `{"title":`, http.StatusBadRequest, "bad_request"},
		{"unknown field", `{"headline":"x"}`, http.StatusBadRequest, "bad_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, env.do(t, http.MethodPost, "/api/v1/ideas", tt.body), tt.status, tt.code)
		})
	}
}

func TestCreateIdea_EmptyBody(t *testing.T) {
	env := newTestEnv(t)

	e := expectError(t, env.do(t, http.MethodPost, "/api/v1/ideas", ""), http.StatusBadRequest, "bad_request")
	if e.Message != "Request body is empty" {
		t.Errorf("message = %q", e.Message)
	}
}

func TestIdeaNotFound(t *testing.T) {
	env := newTestEnv(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/ideas/missing"},
		{http.MethodPost, "/api/v1/ideas/missing/archive"},
		{http.MethodPost, "/api/v1/ideas/missing/draft"},
		{http.MethodPost, "/api/v1/ideas/missing/publish"},
		{http.MethodGet, "/api/v1/ideas/missing/content"},
		{http.MethodGet, "/api/v1/ideas/missing/usage"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			expectError(t, env.do(t, p.method, p.path, ""), http.StatusNotFound, "idea_not_found")
		})
	}

	expectError(t, env.do(t, http.MethodGet, "/api/v1/content/missing", ""), http.StatusNotFound, "content_not_found")
}

func TestPublish_PendingIdeaIsNotReady(t *testing.T) {
	env := newTestEnv(t)
	env.configure(t)
	idea := env.createIdea(t)

	expectError(t, env.do(t, http.MethodPost, "/api/v1/ideas/"+idea.ID+"/publish", ""), http.StatusConflict, "not_ready")
	if env.client.calls != 0 {
		t.Errorf("client calls = %d, want 0", env.client.calls)
	}
}

// readyIdea drives a new idea to scheduled, due, with ready content.
func (e *testEnv) readyIdea(t *testing.T) IdeaResponse {
	t.Helper()

	idea := e.createIdea(t)
	draft := decodeData[DraftResponse](t, expect(t, e.do(t, http.MethodPost, "/api/v1/ideas/"+idea.ID+"/draft", ""), http.StatusOK))
	approve := "/api/v1/content/" + draft.Content.ID + "/approve"
	expect(t, e.do(t, http.MethodPost, approve, ""), http.StatusOK)
	expect(t, e.do(t, http.MethodPost, approve, ""), http.StatusOK)
	return decodeData[IdeaResponse](t, expect(t, e.do(t, http.MethodPost, "/api/v1/ideas/"+idea.ID+"/schedule",
		`{"scheduled_date":"2020-01-01T09:00:00Z"}`), http.StatusOK))
}

func TestPublish_RetryableFollowsEndpointStatus(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"unauthorized", &publish.Error{StatusCode: http.StatusUnauthorized, Retryable: false, Err: errors.New("Unauthorized")}, false},
		{"unprocessable", &publish.Error{StatusCode: http.StatusUnprocessableEntity, Retryable: false, Err: errors.New("Unprocessable Entity")}, false},
		{"unavailable", &publish.Error{StatusCode: http.StatusServiceUnavailable, Retryable: true, Err: errors.New("Service Unavailable")}, true},
		{"network", &publish.Error{Err: errors.New("connection refused"), Retryable: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.configure(t)
			idea := env.readyIdea(t)
			env.client.err = tt.err

			e := expectError(t, env.do(t, http.MethodPost, "/api/v1/ideas/"+idea.ID+"/publish", ""), http.StatusBadGateway, "publish_failed")
			if e.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", e.Retryable, tt.retryable)
			}

			after := decodeData[IdeaResponse](t, expect(t, env.do(t, http.MethodGet, "/api/v1/ideas/"+idea.ID, ""), http.StatusOK))
			if after.Status != string(model.IdeaStatusScheduled) {
				t.Errorf("idea status = %q, want scheduled", after.Status)
			}
		})
	}
}

func TestRequestDraft_GenerationFailureIsRetryable(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t)
	env.gen.err = errors.New("upstream overloaded")

	e := expectError(t, env.do(t, http.MethodPost, "/api/v1/ideas/"+idea.ID+"/draft", ""), http.StatusBadGateway, "generation_failed")
	if !e.Retryable {
		t.Error("generation failure should be retryable")
	}

	after := decodeData[IdeaResponse](t, expect(t, env.do(t, http.MethodGet, "/api/v1/ideas/"+idea.ID, ""), http.StatusOK))
	if after.Status != string(model.IdeaStatusPending) {
		t.Errorf("idea status = %q, want pending", after.Status)
	}
}

func TestIdeaSchedulingRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.configure(t)
	idea := env.createIdea(t)
	base := "/api/v1/ideas/" + idea.ID

	expectError(t, env.do(t, http.MethodPost, base+"/schedule", `{}`), http.StatusUnprocessableEntity, "validation_error")

	next := decodeData[IdeaResponse](t, expect(t, env.do(t, http.MethodPost, base+"/schedule-next", ""), http.StatusOK))
	if next.Status != string(model.IdeaStatusScheduled) || next.ScheduledDate == nil {
		t.Fatalf("schedule-next idea = %+v", next)
	}
	if next.ScheduledDate.Hour() != 9 || next.ScheduledDate.Minute() != 0 {
		t.Errorf("slot = %s, want 09:00 per cadence", next.ScheduledDate)
	}

	back := decodeData[IdeaResponse](t, expect(t, env.do(t, http.MethodPost, base+"/unschedule", ""), http.StatusOK))
	if back.Status != string(model.IdeaStatusPending) || back.ScheduledDate != nil {
		t.Errorf("unscheduled idea = %+v", back)
	}
	expectError(t, env.do(t, http.MethodPost, base+"/unschedule", ""), http.StatusConflict, "invalid_transition")

	archived := decodeData[IdeaResponse](t, expect(t, env.do(t, http.MethodPost, base+"/archive", ""), http.StatusOK))
	if archived.Status != string(model.IdeaStatusArchived) {
		t.Errorf("status = %q, want archived", archived.Status)
	}
	expectError(t, env.do(t, http.MethodPost, base+"/schedule", `{"scheduled_date":"2030-01-01T09:00:00Z"}`),
		http.StatusConflict, "invalid_transition")
}

func TestListIdeas(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t)

	env1 := expect(t, env.do(t, http.MethodGet, "/api/v1/ideas?project=proj&status=pending", ""), http.StatusOK)
	list := decodeData[[]IdeaResponse](t, env1)
	if len(list) != 1 || list[0].ID != idea.ID {
		t.Fatalf("list = %+v", list)
	}
	if env1.Meta == nil || env1.Meta.Page != 1 || env1.Meta.PerPage != 20 {
		t.Errorf("meta = %+v", env1.Meta)
	}

	empty := decodeData[[]IdeaResponse](t, expect(t, env.do(t, http.MethodGet, "/api/v1/ideas?project=other", ""), http.StatusOK))
	if len(empty) != 0 {
		t.Errorf("other project list = %+v", empty)
	}

	expectError(t, env.do(t, http.MethodGet, "/api/v1/ideas?page=0", ""), http.StatusBadRequest, "bad_request")
	expectError(t, env.do(t, http.MethodGet, "/api/v1/ideas?status=lost", ""), http.StatusUnprocessableEntity, "invalid_input")
}

func TestRecoverStaleRoute(t *testing.T) {
	env := newTestEnv(t)

	res := decodeData[map[string][]string](t, expect(t, env.do(t, http.MethodPost, "/api/v1/ideas/recover-stale", ""), http.StatusOK))
	if len(res["recovered"]) != 0 {
		t.Errorf("recovered = %v", res["recovered"])
	}

	expect(t, env.do(t, http.MethodPost, "/api/v1/ideas/recover-stale", `{"older_than":"45m"}`), http.StatusOK)
	expectError(t, env.do(t, http.MethodPost, "/api/v1/ideas/recover-stale", `{"older_than":"soon"}`),
		http.StatusUnprocessableEntity, "validation_error")
}

func TestSettingsRoutes(t *testing.T) {
	env := newTestEnv(t)

	expectError(t, env.do(t, http.MethodGet, "/api/v1/settings/proj/hyp", ""), http.StatusUnprocessableEntity, "settings_missing")

	w := env.do(t, http.MethodPut, "/api/v1/settings/proj/hyp",
		`{"endpoint_url":"http://127.0.0.1:9/posts","api_key":"endpoint-key","cadence":"0 9 * * *","enabled":true}`)
	saved := decodeData[SettingsResponse](t, expect(t, w, http.StatusOK))
	if !saved.HasAPIKey || !saved.Complete || len(saved.MissingFields) != 0 {
		t.Errorf("saved settings = %+v", saved)
	}
	if strings.Contains(w.Body.String(), "endpoint-key") {
		t.Error("response leaks the api key")
	}

	disabled := decodeData[SettingsResponse](t, expect(t, env.do(t, http.MethodPut, "/api/v1/settings/proj/hyp",
		`{"endpoint_url":"http://127.0.0.1:9/posts","cadence":"0 9 * * *","enabled":false}`), http.StatusOK))
	if !disabled.HasAPIKey {
		t.Error("blank api_key should keep the stored key")
	}
	if disabled.Complete || len(disabled.MissingFields) != 1 || disabled.MissingFields[0] != "enabled" {
		t.Errorf("disabled settings = %+v", disabled)
	}

	expectError(t, env.do(t, http.MethodPut, "/api/v1/settings/proj/hyp",
		`{"endpoint_url":"ftp://example.com","cadence":"0 9 * * *","enabled":true}`), http.StatusUnprocessableEntity, "invalid_input")
}

func TestContextAndClusterRoutes(t *testing.T) {
	env := newTestEnv(t)

	pc := decodeData[model.ProjectContext](t, expect(t, env.do(t, http.MethodPut, "/api/v1/contexts/proj/hyp",
		`{"product_name":" Acme ","product_aliases":["Acme Reports"]}`), http.StatusOK))
	if pc.ProductName != "Acme" || len(pc.ProductAliases) != 1 {
		t.Errorf("context = %+v", pc)
	}
	expectError(t, env.do(t, http.MethodPut, "/api/v1/contexts/proj/hyp", `{"persona":"cfo"}`),
		http.StatusUnprocessableEntity, "invalid_input")

	cluster := decodeData[model.SeoCluster](t, expect(t, env.do(t, http.MethodPost, "/api/v1/clusters",
		`{"project_id":"proj","hypothesis_id":"hyp","title":"Reporting","intent":"informational","keywords":[" weekly report ",""]}`),
		http.StatusCreated))
	if cluster.ID == "" || len(cluster.Keywords) != 1 || cluster.Keywords[0] != "weekly report" {
		t.Errorf("cluster = %+v", cluster)
	}

	body := `{"project_id":"proj","hypothesis_id":"hyp","cluster_id":"` + cluster.ID + `",` +
		`"title":"Why weekly reporting eats your team's time","description":"d","category":"pain"}`
	idea := decodeData[IdeaResponse](t, expect(t, env.do(t, http.MethodPost, "/api/v1/ideas", body), http.StatusCreated))
	if idea.ClusterID != cluster.ID {
		t.Errorf("cluster_id = %q, want %q", idea.ClusterID, cluster.ID)
	}
}

func TestJobRoutes(t *testing.T) {
	env := newTestEnv(t)

	jobsEnv := expect(t, env.do(t, http.MethodGet, "/api/v1/jobs", ""), http.StatusOK)
	jobs := decodeData[[]JobResponse](t, jobsEnv)
	if len(jobs) != 3 {
		t.Fatalf("jobs = %+v", jobs)
	}

	run := decodeData[JobRunResponse](t, expect(t, env.do(t, http.MethodPost, "/api/v1/jobs/"+scheduler.JobRecoverStale+"/trigger", ""), http.StatusOK))
	if run.Status != model.JobStatusSuccess || run.Trigger != model.JobTriggerManual {
		t.Errorf("run = %+v", run)
	}
	if run.Summary != "recovered=0" {
		t.Errorf("summary = %q", run.Summary)
	}

	runs := decodeData[[]JobRunResponse](t, expect(t, env.do(t, http.MethodGet, "/api/v1/jobs/"+scheduler.JobRecoverStale+"/runs", ""), http.StatusOK))
	if len(runs) != 1 || runs[0].ID != run.ID {
		t.Errorf("runs = %+v", runs)
	}

	updated := decodeData[JobResponse](t, expect(t, env.do(t, http.MethodPut, "/api/v1/jobs/"+scheduler.JobPruneHistory+"/schedule",
		`{"schedule":"0 4 * * *"}`), http.StatusOK))
	if updated.Schedule != "0 4 * * *" || !updated.IsOverridden {
		t.Errorf("updated job = %+v", updated)
	}

	reset := decodeData[JobResponse](t, expect(t, env.do(t, http.MethodDelete, "/api/v1/jobs/"+scheduler.JobPruneHistory+"/schedule", ""), http.StatusOK))
	if reset.IsOverridden || reset.Schedule != reset.DefaultSchedule {
		t.Errorf("reset job = %+v", reset)
	}

	expectError(t, env.do(t, http.MethodPut, "/api/v1/jobs/"+scheduler.JobPruneHistory+"/schedule", `{"schedule":"every day"}`),
		http.StatusUnprocessableEntity, "validation_error")
	expectError(t, env.do(t, http.MethodPost, "/api/v1/jobs/unknown/trigger", ""), http.StatusNotFound, "not_found")
	expectError(t, env.do(t, http.MethodGet, "/api/v1/jobs/unknown/runs", ""), http.StatusNotFound, "not_found")
	expectError(t, env.do(t, http.MethodGet, "/api/v1/jobs/"+scheduler.JobRecoverStale+"/runs?limit=x", ""), http.StatusBadRequest, "bad_request")
}

func TestTriggerJob_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	path := "/api/v1/jobs/" + scheduler.JobRecoverStale + "/trigger"

	expect(t, env.do(t, http.MethodPost, path, ""), http.StatusOK)
	expectError(t, env.do(t, http.MethodPost, path, ""), http.StatusTooManyRequests, "rate_limited")
}

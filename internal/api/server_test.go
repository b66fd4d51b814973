// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vidlens/internal/auth"
	"github.com/ManuGH/vidlens/internal/orchestrator"
	"github.com/ManuGH/vidlens/internal/runstore"
)

const testToken = "trigger-secret"

type fakeSubmitter struct {
	mu   sync.Mutex
	reqs []orchestrator.Request
	err  error
}

func (f *fakeSubmitter) Submit(_ context.Context, req orchestrator.Request) (orchestrator.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return orchestrator.Ack{}, f.err
	}
	f.reqs = append(f.reqs, req)
	return orchestrator.Ack{RunID: "run-1", Status: "accepted", Message: orchestrator.AcceptedMessage}, nil
}

type fakeRuns map[string]runstore.Run

func (f fakeRuns) Get(_ context.Context, id string) (runstore.Run, error) {
	if id == "broken" {
		return runstore.Run{}, errors.New("disk I/O error")
	}
	run, ok := f[id]
	if !ok {
		return runstore.Run{}, runstore.ErrNotFound
	}
	return run, nil
}

func newTestServer(sub Submitter, opts ...Option) http.Handler {
	return New(Config{VerifyToken: testToken}, sub, opts...).Handler()
}

func postAnalyze(t *testing.T, h http.Handler, token, body string) (*httptest.ResponseRecorder, AnalyzeResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/video/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(auth.HeaderTriggerToken, token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func TestAnalyze_Accepted(t *testing.T) {
	sub := &fakeSubmitter{}
	h := newTestServer(sub)

	rec, resp := postAnalyze(t, h, testToken, `{"videoName":" clip ","recordId":"rec1"}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, http.StatusOK, resp.StatusCode.Code)
	assert.Equal(t, orchestrator.AcceptedMessage, resp.StatusCode.Message)
	assert.Equal(t, "run-1", resp.RunID)
	require.Len(t, sub.reqs, 1)
	assert.Equal(t, orchestrator.Request{VideoName: "clip", RecordID: "rec1"}, sub.reqs[0])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAnalyze_RejectsBadToken(t *testing.T) {
	sub := &fakeSubmitter{}
	h := newTestServer(sub)

	for _, token := range []string{"", "wrong"} {
		rec, resp := postAnalyze(t, h, token, `{"videoName":"clip"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid token", resp.StatusCode.Message)
	}
	assert.Empty(t, sub.reqs)
}

func TestAnalyze_BadBody(t *testing.T) {
	sub := &fakeSubmitter{}
	rec, resp := postAnalyze(t, newTestServer(sub), testToken, `{"videoName":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode.Code)
	assert.Empty(t, sub.reqs)
}

func TestAnalyze_BlankNameStillAccepted(t *testing.T) {
	sub := &fakeSubmitter{}
	rec, _ := postAnalyze(t, newTestServer(sub), testToken, `{"videoName":"","recordId":"rec1"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, sub.reqs, 1)
}

func TestAnalyze_NotAdmitted(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"queue full", orchestrator.ErrQueueFull, http.StatusServiceUnavailable},
		{"shutting down", orchestrator.ErrClosed, http.StatusServiceUnavailable},
		{"ledger failure", errors.New("database is locked"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := postAnalyze(t, newTestServer(&fakeSubmitter{err: tt.err}), testToken, `{"videoName":"clip"}`)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.want, resp.StatusCode.Code)
			assert.Empty(t, resp.RunID)
		})
	}
}

func TestGetRun(t *testing.T) {
	finished := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	runs := fakeRuns{"run-1": {
		ID:         "run-1",
		VideoName:  "clip",
		Status:     runstore.StatusSucceeded,
		FinishedAt: &finished,
	}}
	h := newTestServer(&fakeSubmitter{}, WithRuns(runs))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/run-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got runstore.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, runstore.StatusSucceeded, got.Status)
	assert.Equal(t, "clip", got.VideoName)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/broken", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetRun_DisabledWithoutLedger(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeSubmitter{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/run-1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	healthy := newTestServer(&fakeSubmitter{}, WithHealthCheck("runstore", func(context.Context) error { return nil }))
	rec := httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"runstore":"ok"}}`, rec.Body.String())

	degraded := newTestServer(&fakeSubmitter{}, WithHealthCheck("redis", func(context.Context) error {
		return errors.New("connection refused")
	}))
	rec = httptest.NewRecorder()
	degraded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"redis":"connection refused"}}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(&fakeSubmitter{})
	postAnalyze(t, h, testToken, `{"videoName":"clip"}`)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vidlens_http_request_duration_seconds")
}

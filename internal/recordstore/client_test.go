// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recordstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ManuGH/vidlens/internal/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_IssueToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/open-apis/auth/v3/tenant_access_token/internal", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"app_id": "cli_a1", "app_secret": "s3cret"}, body)
		_, _ = io.WriteString(w, `{"code":0,"msg":"ok","tenant_access_token":"t-abc","expire":3600}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/open-apis/", srv.Client())
	tok, ttl, err := c.IssueToken(context.Background(), credentials.Identity{AppID: "cli_a1", Secret: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "t-abc", tok)
	assert.Equal(t, time.Hour, ttl)
}

func TestClient_IssueToken_DefaultLifetime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"code":0,"tenant_access_token":"t-abc"}`)
	}))
	defer srv.Close()

	_, ttl, err := NewClient(srv.URL, srv.Client()).IssueToken(context.Background(), credentials.Identity{AppID: "a", Secret: "b"})
	require.NoError(t, err)
	assert.Equal(t, 7200*time.Second, ttl)
}

func TestClient_IssueToken_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"code":10003,"msg":"invalid param"}`)
	}))
	defer srv.Close()

	_, _, err := NewClient(srv.URL, srv.Client()).IssueToken(context.Background(), credentials.Identity{AppID: "a", Secret: "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteAPI)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 10003, apiErr.Code)
	assert.Equal(t, "invalid param", apiErr.Msg)
	assert.Equal(t, http.StatusOK, apiErr.HTTPStatus)
}

func TestClient_UpdateRecord(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/bitable/v1/apps/app-tok/tables/tbl1/records/rec9", r.URL.Path)
		assert.Equal(t, "Bearer t-abc", r.Header.Get("Authorization"))
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		_, _ = io.WriteString(w, `{"code":0,"msg":"success","data":{}}`)
	}))
	defer srv.Close()

	fields := NewFieldUpdate().Set("report", Text("all good")).Set("elapsed", Number(42))
	err := NewClient(srv.URL, srv.Client()).UpdateRecord(context.Background(), "t-abc",
		RecordRef{AppToken: "app-tok", TableID: "tbl1", RecordID: "rec9"}, fields)
	require.NoError(t, err)
	assert.Equal(t, `{"fields":{"report":{"text":"all good"},"elapsed":{"number":42}}}`, gotBody)
}

func TestClient_UpdateRecord_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		code    int
	}{
		{name: "api error with 400", status: http.StatusBadRequest, body: `{"code":1254043,"msg":"RecordIdNotFound"}`, wantErr: ErrRemoteAPI, code: 1254043},
		{name: "api error with 200", status: http.StatusOK, body: `{"code":99991663,"msg":"invalid access token"}`, wantErr: ErrRemoteAPI, code: 99991663},
		{name: "bare 502", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, wantErr: ErrTransport},
		{name: "undecodable 200", status: http.StatusOK, body: `not json`, wantErr: ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			err := NewClient(srv.URL, srv.Client()).UpdateRecord(context.Background(), "t",
				RecordRef{AppToken: "a", TableID: "b", RecordID: "c"}, NewFieldUpdate().Set("x", Text("y")))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.code != 0 {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.code, apiErr.Code)
				assert.Equal(t, tt.status, apiErr.HTTPStatus)
			}
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewClient(url, nil).UpdateRecord(context.Background(), "t",
		RecordRef{AppToken: "a", TableID: "b", RecordID: "c"}, NewFieldUpdate())
	assert.ErrorIs(t, err, ErrTransport)
}

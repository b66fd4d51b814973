// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package recordstore writes analysis results into a remote table record.
package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/vidlens/internal/credentials"
	"github.com/ManuGH/vidlens/internal/log"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the open platform API root.
	DefaultBaseURL = "https://open.feishu.cn/open-apis"

	tokenPath = "/auth/v3/tenant_access_token/internal"
	// defaultTokenLifetime applies when the issuance response carries no expire value.
	defaultTokenLifetime = 7200 * time.Second
	maxResponseBytes     = 1 << 20
)

// RecordRef addresses one record.
type RecordRef struct {
	AppToken string
	TableID  string
	RecordID string
}

// Client talks to the record store HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient returns a Client. A nil httpClient uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  log.WithComponent("recordstore"),
	}
}

type envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type tokenResponse struct {
	envelope
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

// IssueToken exchanges an application identity for a tenant access token.
// It satisfies credentials.Issuer.
func (c *Client) IssueToken(ctx context.Context, id credentials.Identity) (string, time.Duration, error) {
	body := map[string]string{"app_id": id.AppID, "app_secret": id.Secret}

	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+tokenPath, "", body, "token issuance", &resp); err != nil {
		return "", 0, err
	}

	lifetime := defaultTokenLifetime
	if resp.Expire > 0 {
		lifetime = time.Duration(resp.Expire) * time.Second
	}
	return resp.TenantAccessToken, lifetime, nil
}

// UpdateRecord writes fields into the referenced record using bearer for authorization.
func (c *Client) UpdateRecord(ctx context.Context, bearer string, ref RecordRef, fields *FieldUpdate) error {
	u := fmt.Sprintf("%s/bitable/v1/apps/%s/tables/%s/records/%s", c.baseURL,
		url.PathEscape(ref.AppToken), url.PathEscape(ref.TableID), url.PathEscape(ref.RecordID))
	body := struct {
		Fields *FieldUpdate `json:"fields"`
	}{fields}

	var resp envelope
	return c.do(ctx, http.MethodPut, u, bearer, body, "record update", &resp)
}

type coded interface{ status() envelope }

func (e envelope) status() envelope { return e }

func (c *Client) do(ctx context.Context, method, target, bearer string, payload any, op string, out coded) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode %s body: %v", ErrTransport, op, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: build %s request: %v", ErrTransport, op, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %v", ErrTransport, op, err)
	}

	decodeErr := json.Unmarshal(raw, out)
	if decodeErr == nil {
		if env := out.status(); env.Code != 0 {
			return &APIError{Code: env.Code, Msg: env.Msg, HTTPStatus: res.StatusCode, Op: op}
		}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("%w: %s: unexpected http status %d", ErrTransport, op, res.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrTransport, op, decodeErr)
	}
	c.logger.Debug().Str("op", op).Int("http_status", res.StatusCode).Msg("record store call succeeded")
	return nil
}

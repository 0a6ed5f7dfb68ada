// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package client calls a running diagnostics server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/dcrm-diagnostics/internal/httputil"
	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

const defaultTimeout = 30 * time.Second

// StatusError is returned for a non-2xx response.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Detail)
}

// Client talks to one server.
type Client struct {
	baseURL string
	http    *http.Client
	cfg     types.HTTPConfig
	log     *slog.Logger
}

// New returns a client for baseURL (e.g. "http://localhost:8000").
func New(baseURL string, cfg types.HTTPConfig, log *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		cfg:     cfg,
		log:     log,
	}
}

// Status fetches GET /api/v1/new-models/status.
func (c *Client) Status(ctx context.Context) (types.ModelsStatus, error) {
	var out types.ModelsStatus
	err := c.do(ctx, http.MethodGet, "/api/v1/new-models/status", nil, &out)
	return out, err
}

// FeatureSpace fetches GET /api/v1/new-models/features.
func (c *Client) FeatureSpace(ctx context.Context) (types.FeatureSpace, error) {
	var out types.FeatureSpace
	err := c.do(ctx, http.MethodGet, "/api/v1/new-models/features", nil, &out)
	return out, err
}

// PredictBatch posts rows to /api/v1/new-models/batch.
func (c *Client) PredictBatch(ctx context.Context, rows []types.RawRow) (types.BatchResult, error) {
	var out types.BatchResult
	err := c.do(ctx, http.MethodPost, "/api/v1/new-models/batch", map[string]any{"rows": rows}, &out)
	return out, err
}

// PredictFeatures posts one feature dictionary to /api/v1/diagnostics/predict.
func (c *Client) PredictFeatures(ctx context.Context, features types.RawRow) (types.Diagnosis, error) {
	var out types.Diagnosis
	err := c.do(ctx, http.MethodPost, "/api/v1/diagnostics/predict", features, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.cfg.MaxRetries, c.log)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return &StatusError{StatusCode: resp.StatusCode, Detail: detail(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// detail extracts {"detail": "..."} from an error body, or returns it raw.
func detail(body []byte) string {
	var e struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &e) == nil && e.Detail != "" {
		return e.Detail
	}
	return strings.TrimSpace(string(body))
}

// Package data is the generic tabular access layer over the hosted
// PostgREST-compatible endpoint. It is deliberately thin: one engine, many
// tables, parameterized by resource path rather than typed per-entity
// methods. Field-list enforcement lives in the CRUD layer.
package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fitsutra/internal/domain/record"
	"fitsutra/internal/observability"
)

// AccessError is the single error type every data-endpoint failure is
// normalized into. Constraint, uniqueness and row-level-security violations
// all surface here with the service's message, not decoded further.
type AccessError struct {
	Status int
	Body   string
}

func (e *AccessError) Error() string {
	if strings.TrimSpace(e.Body) != "" {
		return e.Body
	}
	return fmt.Sprintf("data request failed with status %d", e.Status)
}

// Client issues filtered reads and writes against rest/v1 resources.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewClient creates a Client for the given backend base URL and anon key.
func NewClient(baseURL, anonKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		anonKey:    anonKey,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// WithMetrics attaches an outbound-call recorder.
func (c *Client) WithMetrics(m *observability.Metrics) *Client {
	c.metrics = m
	return c
}

func (c *Client) do(ctx context.Context, method, resource, accessToken string, payload any, extraHeaders map[string]string) (*http.Response, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode data request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/rest/v1/"+resource, body)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordAPICall("data", method, 0, c.now().Sub(start))
		return nil, nil, fmt.Errorf("data request failed: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.RecordAPICall("data", method, resp.StatusCode, c.now().Sub(start))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read data response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &AccessError{Status: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// Fetch issues a filtered read and decodes the rows as generic records.
// Callers must always include the tenant equality filter in the resource.
func (c *Client) Fetch(ctx context.Context, resource, accessToken string) ([]record.Record, error) {
	var rows []record.Record
	if err := c.FetchInto(ctx, resource, accessToken, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// FetchInto issues a filtered read and decodes the rows into v, for call
// sites with a typed row shape (e.g. the profile/tenant join).
func (c *Client) FetchInto(ctx context.Context, resource, accessToken string, v any) error {
	_, raw, err := c.do(ctx, http.MethodGet, resource, accessToken, nil, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode rows: %w", err)
	}
	return nil
}

// Insert POSTs rows with return=representation semantics and returns the
// inserted rows. Constraint violations surface as AccessError.
func (c *Client) Insert(ctx context.Context, table, accessToken string, rows []record.Record) ([]record.Record, error) {
	_, raw, err := c.do(ctx, http.MethodPost, table, accessToken, rows,
		map[string]string{"Prefer": "return=representation"})
	if err != nil {
		return nil, err
	}
	var inserted []record.Record
	if err := json.Unmarshal(raw, &inserted); err != nil {
		return nil, fmt.Errorf("failed to decode inserted rows: %w", err)
	}
	return inserted, nil
}

// Update PATCHes the rows selected by the resource's filter with a partial
// payload. It is not a full replace.
func (c *Client) Update(ctx context.Context, resource, accessToken string, patch record.Record) error {
	_, _, err := c.do(ctx, http.MethodPatch, resource, accessToken, patch, nil)
	return err
}

// Delete removes the rows selected by the resource's filter. Deleting an
// id that no longer exists surfaces the service's error, never a silent
// success.
func (c *Client) Delete(ctx context.Context, resource, accessToken string) error {
	_, _, err := c.do(ctx, http.MethodDelete, resource, accessToken, nil, nil)
	return err
}

// Count returns the exact row count for the resource from the Content-Range
// header. A missing or malformed header yields 0 rather than an error, so
// dashboards stay up when the backend only partially cooperates.
func (c *Client) Count(ctx context.Context, resource, accessToken string) (int, error) {
	resp, _, err := c.do(ctx, http.MethodHead, resource, accessToken, nil,
		map[string]string{"Prefer": "count=exact"})
	if err != nil {
		return 0, err
	}
	return parseContentRange(resp.Header.Get("Content-Range")), nil
}

// parseContentRange extracts the total from a "0-24/57" style header value.
func parseContentRange(header string) int {
	_, total, ok := strings.Cut(header, "/")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(total))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

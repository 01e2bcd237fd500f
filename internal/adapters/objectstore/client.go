// Package objectstore talks to the hosted object storage endpoint. One
// bucket holds every gym's brand assets, namespaced by gym id.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fitsutra/internal/observability"
)

// Bucket is the single bucket used for brand assets.
const Bucket = "fitsutra-assets"

const listLimit = 50

// StorageError carries the storage endpoint's failure body.
type StorageError struct {
	Status int
	Body   string
}

func (e *StorageError) Error() string {
	if strings.TrimSpace(e.Body) != "" {
		return e.Body
	}
	return fmt.Sprintf("storage request failed with status %d", e.Status)
}

// Object is one stored asset as the list endpoint reports it.
type Object struct {
	Name      string `json:"name"`
	ID        string `json:"id"`
	UpdatedAt string `json:"updated_at"`
	CreatedAt string `json:"created_at"`
}

// Client issues list and upload calls against storage/v1.
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

func (c *Client) do(req *http.Request, accessToken string) ([]byte, error) {
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordAPICall("storage", req.Method, 0, c.now().Sub(start))
		return nil, fmt.Errorf("storage request failed: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.RecordAPICall("storage", req.Method, resp.StatusCode, c.now().Sub(start))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StorageError{Status: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

// List returns the gym's assets, newest first.
func (c *Client) List(ctx context.Context, accessToken, gymID string) ([]Object, error) {
	body, err := json.Marshal(map[string]any{
		"prefix": gymID,
		"limit":  listLimit,
		"sortBy": map[string]string{"column": "updated_at", "order": "desc"},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/storage/v1/object/list/"+Bucket, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.do(req, accessToken)
	if err != nil {
		return nil, err
	}
	var objects []Object
	if err := json.Unmarshal(raw, &objects); err != nil {
		return nil, fmt.Errorf("failed to decode object list: %w", err)
	}
	return objects, nil
}

// Upload stores an asset under the gym's prefix. The timestamped name keeps
// repeated uploads of the same file from colliding.
func (c *Client) Upload(ctx context.Context, accessToken, gymID, filename, contentType string, content io.Reader) (string, error) {
	path := fmt.Sprintf("%s/%d-%s", gymID, c.now().UnixMilli(), sanitizeName(filename))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/storage/v1/object/"+Bucket+"/"+path, content)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	if _, err := c.do(req, accessToken); err != nil {
		return "", err
	}
	return path, nil
}

// PublicURL renders the public URL for a stored object path.
func (c *Client) PublicURL(path string) string {
	return c.baseURL + "/storage/v1/object/public/" + Bucket + "/" + path
}

// sanitizeName strips path separators and spaces from an uploaded filename.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, "\\", "-")
	name = strings.ReplaceAll(name, " ", "-")
	if name == "" {
		return "upload"
	}
	return name
}

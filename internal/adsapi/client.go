// Package adsapi talks to the segment database backend: a cheap lookup by
// fingerprint and an expensive compute call on the raw transcript.
package adsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/codebuildervaibhav/sponsorskip/internal/types"
)

// maxResponseBytes bounds backend response bodies.
const maxResponseBytes = 4 << 20

var (
	// ErrStatus is returned for a non-success HTTP status without an error tag.
	ErrStatus = errors.New("unexpected http status")
	// ErrMalformed is returned when a response is neither tag.
	ErrMalformed = errors.New("malformed backend response")
)

// BackendError is an explicit {"error": ...} answer from the backend.
type BackendError struct {
	Op     string
	Reason string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: backend error: %s", e.Op, e.Reason)
}

// Result is the tagged backend response.
type Result struct {
	Error  string          `json:"error,omitempty"`
	Ads    []types.Segment `json:"ads"`
	SHA256 string          `json:"sha256,omitempty"`
}

// Client is an HTTP client for the ads backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the backend rooted at baseURL.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("adsapi: invalid base url %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}, nil
}

// Lookup queries the cache endpoint for a fingerprint. A miss comes back as
// a *BackendError.
func (c *Client) Lookup(ctx context.Context, fp string) ([]types.Segment, error) {
	endpoint, err := url.JoinPath(c.baseURL, "ads", "sha256", fp)
	if err != nil {
		return nil, fmt.Errorf("lookup: build url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("lookup: new request: %w", err)
	}
	return c.do(req, "lookup")
}

// Compute submits the raw transcript to the compute endpoint.
func (c *Client) Compute(ctx context.Context, transcript string) ([]types.Segment, error) {
	endpoint, err := url.JoinPath(c.baseURL, "ads", "text")
	if err != nil {
		return nil, fmt.Errorf("compute: build url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(transcript))
	if err != nil {
		return nil, fmt.Errorf("compute: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, "compute")
}

func (c *Client) do(req *http.Request, op string) ([]types.Segment, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}

	var res Result
	decodeErr := json.Unmarshal(data, &res)
	if decodeErr == nil && res.Error != "" {
		return nil, &BackendError{Op: op, Reason: res.Error}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: %w %s", op, ErrStatus, resp.Status)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformed, decodeErr)
	}

	if err := types.ValidateSegments(res.Ads); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformed, err)
	}
	if res.Ads == nil {
		res.Ads = []types.Segment{}
	}
	return res.Ads, nil
}

// Package runclient talks to the remote runner service that executes
// row-count and value-diff computations against the warehouse.
package runclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"driftscope/internal/domain"
)

var _ domain.RunClient = (*Client)(nil)

// Client submits runs to the runner over HTTP and polls them to
// completion. Authentication is a static bearer-style token header.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
}

// New creates a runner client for the given base URL.
func New(baseURL, authToken string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
	}
}

type submitRequest struct {
	Type   domain.RunType   `json:"type"`
	Params domain.RunParams `json:"params"`
	NoWait bool             `json:"nowait"`
}

type submitResponse struct {
	RunID string `json:"run_id"`
	Error string `json:"error,omitempty"`
}

type waitResponse struct {
	Run   *domain.Run `json:"run"`
	Error string      `json:"error,omitempty"`
}

// SubmitRun submits a run and returns its id. With nowait the runner
// acknowledges immediately; otherwise it responds once the run is
// terminal, and the id can still be polled for the recorded result.
func (c *Client) SubmitRun(ctx context.Context, params domain.RunParams, nowait bool) (string, error) {
	var resp submitResponse
	err := c.do(ctx, http.MethodPost, "/api/runs", submitRequest{
		Type:   params.RunType(),
		Params: params,
		NoWait: nowait,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("submit run rejected: %s", resp.Error)
	}
	if resp.RunID == "" {
		return "", fmt.Errorf("submit run: missing run id")
	}
	return resp.RunID, nil
}

// WaitRun performs one polling attempt against the runner. The runner
// holds the request open up to timeout and responds with the run's
// state, terminal or not. Callers decide whether to poll again.
func (c *Client) WaitRun(ctx context.Context, runID string, timeout time.Duration) (*domain.Run, error) {
	path := fmt.Sprintf("/api/runs/%s/wait?timeout=%d", runID, int(timeout.Seconds()))
	var resp waitResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("wait run: %s", resp.Error)
	}
	if resp.Run == nil {
		return nil, fmt.Errorf("wait run: empty response")
	}
	if resp.Run.ID == "" {
		resp.Run.ID = runID
	}
	return resp.Run, nil
}

// CancelRun asks the runner to cancel an in-flight run. Cancelling a
// run that already finished is not an error.
func (c *Client) CancelRun(ctx context.Context, runID string) error {
	var resp waitResponse
	if err := c.do(ctx, http.MethodPost, "/api/runs/"+runID+"/cancel", nil, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("cancel run: %s", resp.Error)
	}
	return nil
}

// Ping performs a health check against the runner.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("runner unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("runner request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read runner response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("runner returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode runner response: %w", err)
		}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("X-Runner-Token", c.authToken)
	}
	req.Header.Set("X-Request-ID", uuid.New().String())
}

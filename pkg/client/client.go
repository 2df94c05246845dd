package client

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

	"github.com/cuemby/failwatch/pkg/api"
	"github.com/cuemby/failwatch/pkg/types"
)

// DefaultAddr is the API address used when none is given
const DefaultAddr = "http://127.0.0.1:9098"

// Client wraps the failwatch HTTP API for CLI usage
type Client struct {
	baseURL string
	http    *http.Client
}

// APIError is returned for non-2xx responses. RetryAfter carries the
// server's Retry-After hint when one was sent.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// NewClient creates a client for the server at addr. A bare host:port is
// treated as http.
func NewClient(addr string) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{
		baseURL: strings.TrimRight(addr, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// ListHosts returns the ledger, most recent first
func (c *Client) ListHosts(ctx context.Context) ([]types.FailureRecord, error) {
	var records []types.FailureRecord
	if err := c.do(ctx, http.MethodGet, "/api/v1/hosts", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ClearHosts empties the ledger
func (c *Client) ClearHosts(ctx context.Context) (int, error) {
	var res types.ClearResult
	if err := c.do(ctx, http.MethodDelete, "/api/v1/hosts", nil, &res); err != nil {
		return 0, err
	}
	return res.CountCleared, nil
}

// PruneHosts removes the named hosts and returns how many were removed
func (c *Client) PruneHosts(ctx context.Context, hosts []string) (int, error) {
	var res types.PruneResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/hosts/prune", map[string][]string{"hosts": hosts}, &res); err != nil {
		return 0, err
	}
	return res.Pruned, nil
}

// AddToProxy submits domains to the allow-list service without pruning
func (c *Client) AddToProxy(ctx context.Context, domains []string) ([]types.SubmitResult, error) {
	var results []types.SubmitResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/proxy/domains", map[string][]string{"domains": domains}, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Promote submits domains and prunes the accepted ones
func (c *Client) Promote(ctx context.Context, domains []string) (types.PromoteResult, error) {
	var res types.PromoteResult
	err := c.do(ctx, http.MethodPost, "/api/v1/hosts/promote", map[string][]string{"domains": domains}, &res)
	return res, err
}

// Execute sends a raw command envelope and decodes the reply into out
func (c *Client) Execute(ctx context.Context, cmd types.Command, out interface{}) error {
	return c.do(ctx, http.MethodPost, "/api/v1/commands", cmd, out)
}

// Ingest posts request events for capture
func (c *Client) Ingest(ctx context.Context, events []types.RequestEvent) (api.IngestResult, error) {
	var res api.IngestResult
	err := c.do(ctx, http.MethodPost, "/api/v1/events", events, &res)
	return res, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach failwatch at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr types.ErrorResult
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    apiErr.Error,
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

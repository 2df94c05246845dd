package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cuemby/failwatch/pkg/log"
	"github.com/cuemby/failwatch/pkg/metrics"
	"github.com/cuemby/failwatch/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultEndpoint is the allow-list service address used when none is configured
const DefaultEndpoint = "http://127.0.0.1:9099/add-domain"

// Mode selects the request shape sent to the allow-list service
type Mode string

const (
	// ModeSingle sends one POST {"domain": ...} per domain, concurrently
	ModeSingle Mode = "single"

	// ModeBatch sends one POST {"domains": [...]} for the whole selection
	ModeBatch Mode = "batch"
)

// Coordinator submits domains to the external allow-list service. It never
// mutates the ledger and never retries; callers decide what to prune.
type Coordinator struct {
	// Endpoint is the full URL of the add-domain RPC
	Endpoint string

	// Mode is ModeSingle (default) or ModeBatch
	Mode Mode

	// MaxConcurrency bounds in-flight requests in single mode; 0 means unbounded
	MaxConcurrency int

	// Client is the HTTP client to use
	Client *http.Client

	logger zerolog.Logger
}

// NewCoordinator creates a coordinator for endpoint
func NewCoordinator(endpoint string) *Coordinator {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Coordinator{
		Endpoint: endpoint,
		Mode:     ModeSingle,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: log.WithComponent("reconcile"),
	}
}

// WithMode sets the request mode
func (c *Coordinator) WithMode(mode Mode) *Coordinator {
	if mode == "" {
		mode = ModeSingle
	}
	c.Mode = mode
	return c
}

// WithTimeout sets the HTTP client timeout
func (c *Coordinator) WithTimeout(timeout time.Duration) *Coordinator {
	c.Client.Timeout = timeout
	return c
}

// WithMaxConcurrency bounds concurrent requests in single mode
func (c *Coordinator) WithMaxConcurrency(n int) *Coordinator {
	c.MaxConcurrency = n
	return c
}

// Submit sends every domain to the allow-list service and returns one result
// per input domain, in input order
func (c *Coordinator) Submit(ctx context.Context, domains []string) []types.SubmitResult {
	if len(domains) == 0 {
		return []types.SubmitResult{}
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SubmitDuration)

	c.logger.Info().
		Str("endpoint", c.Endpoint).
		Str("mode", string(c.Mode)).
		Int("domains", len(domains)).
		Msg("submitting domains")

	var results []types.SubmitResult
	if c.Mode == ModeBatch {
		results = c.submitBatch(ctx, domains)
	} else {
		results = c.submitEach(ctx, domains)
	}

	succeeded := 0
	for _, r := range results {
		switch {
		case r.OK:
			succeeded++
			metrics.SubmitResults.WithLabelValues("ok").Inc()
		case r.Rejected():
			metrics.SubmitResults.WithLabelValues("rejected").Inc()
		default:
			metrics.SubmitResults.WithLabelValues("unreachable").Inc()
		}
	}
	c.logger.Info().
		Int("succeeded", succeeded).
		Int("failed", len(results)-succeeded).
		Msg("submission finished")

	return results
}

func (c *Coordinator) submitEach(ctx context.Context, domains []string) []types.SubmitResult {
	results := make([]types.SubmitResult, len(domains))

	var g errgroup.Group
	if c.MaxConcurrency > 0 {
		g.SetLimit(c.MaxConcurrency)
	}
	for i, domain := range domains {
		i, domain := i, domain
		g.Go(func() error {
			// Each slot is written by exactly one goroutine
			results[i] = c.submitOne(ctx, domain)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (c *Coordinator) submitOne(ctx context.Context, domain string) types.SubmitResult {
	resp, err := c.post(ctx, map[string]string{"domain": domain})
	if err != nil {
		c.logger.Warn().Err(err).Str("domain", domain).Msg("POST error")
		return types.SubmitResult{Domain: domain, OK: false, Error: err.Error()}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return types.SubmitResult{
		Domain: domain,
		OK:     isSuccess(resp.StatusCode),
		Status: resp.StatusCode,
	}
}

// batchResponse is the optional body of a batched add-domain reply
type batchResponse struct {
	Added  []string `json:"added"`
	Failed []string `json:"failed"`
}

func (c *Coordinator) submitBatch(ctx context.Context, domains []string) []types.SubmitResult {
	results := make([]types.SubmitResult, len(domains))

	resp, err := c.post(ctx, map[string][]string{"domains": domains})
	if err != nil {
		c.logger.Warn().Err(err).Int("domains", len(domains)).Msg("POST error")
		for i, d := range domains {
			results[i] = types.SubmitResult{Domain: d, OK: false, Error: err.Error()}
		}
		return results
	}
	defer resp.Body.Close()

	ok := isSuccess(resp.StatusCode)
	var body batchResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	// Lists missing from the reply default from the HTTP status
	added, failed := body.Added, body.Failed
	if added == nil && ok {
		added = domains
	}
	if failed == nil && !ok {
		failed = domains
	}
	addedSet, failedSet := toSet(added), toSet(failed)

	for i, d := range domains {
		results[i] = types.SubmitResult{
			Domain: d,
			OK:     addedSet[d] && !failedSet[d],
			Status: resp.StatusCode,
		}
	}
	return results
}

func (c *Coordinator) post(ctx context.Context, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// Succeeded returns the domains whose submission was accepted
func Succeeded(results []types.SubmitResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.OK {
			out = append(out, r.Domain)
		}
	}
	return out
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tanishra/smartinfo/core"
)

// Status values carried by every tool payload.
const (
	StatusSuccess = "success"
	StatusInvalid = "invalid"
	StatusError   = "error"
)

const maxResponseBytes = 4 << 20

// ClientOptions configure the HTTP transport shared by a tool.
type ClientOptions struct {
	HTTPClient *http.Client
	// RatePerSecond limits outbound requests; zero disables limiting.
	RatePerSecond float64
	Burst         int
}

// httpClient issues rate-limited JSON requests to one upstream.
type httpClient struct {
	name    string
	http    *http.Client
	limiter *rate.Limiter
}

func newHTTPClient(name string, opts ClientOptions) *httpClient {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &httpClient{
		name:    name,
		http:    hc,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (c *httpClient) getJSON(ctx context.Context, endpoint string, params url.Values, header http.Header, out any) error {
	u := endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.name, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req, out)
}

func (c *httpClient) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	return c.do(req, out)
}

// do waits on the limiter, sends req and decodes a 2xx JSON body into out.
// Non-2xx statuses are returned as *statusError so callers can react to
// specific codes.
func (c *httpClient) do(req *http.Request, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("%s: rate limit wait: %w", c.name, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", c.name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{upstream: c.name, code: resp.StatusCode, body: truncate(string(body), 200)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return core.NewToolError(c.name, core.CodeUpstreamResponse, "malformed upstream response", err)
	}

	return nil
}

type statusError struct {
	upstream string
	code     int
	body     string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("%s: upstream returned HTTP %d", e.upstream, e.code)
	}
	return fmt.Sprintf("%s: upstream returned HTTP %d: %s", e.upstream, e.code, e.body)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

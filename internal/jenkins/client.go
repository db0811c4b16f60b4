// Package jenkins talks to a Jenkins-style job API and classifies what it
// finds. The upstream is loosely specified and historically unreliable:
// build references may point at alternate hosts, paths may arrive
// unescaped, and transient 5xx responses are routine. The client absorbs
// all of that so evaluation stays correct.
package jenkins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"cronwatch/pkg/logx"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultRetryDelay  = 500 * time.Millisecond
)

// Options configures a Client.
type Options struct {
	// BaseURL is the configured upstream endpoint, e.g. "https://ci.example.com/".
	BaseURL  string
	Username string
	APIToken string

	Timeout time.Duration
	// MaxAttempts bounds the retry loop, first attempt included. Minimum 1.
	MaxAttempts int
	// RetryBaseDelay is the initial backoff delay; it doubles after each
	// retried attempt.
	RetryBaseDelay time.Duration
}

// JobSummary is the job-level metadata record.
type JobSummary struct {
	Name      string    `json:"name"`
	LastBuild *BuildRef `json:"lastBuild"`
}

// BuildRef points at a specific build. URL may reference a different host
// than the configured base; see BuildAPIURL.
type BuildRef struct {
	Number int64  `json:"number"`
	URL    string `json:"url"`
}

type buildDetails struct {
	Number      int64   `json:"number"`
	Timestamp   int64   `json:"timestamp"` // epoch millis
	Result      *string `json:"result"`
	DisplayName string  `json:"displayName"`
}

// BuildSnapshot is one observed build, produced fresh each tick and never
// mutated.
type BuildSnapshot struct {
	Number      int64
	Timestamp   time.Time
	DisplayName string
	Outcome     Outcome
	// Result keeps the raw upstream string for alert bodies; nil while the
	// build is still running.
	Result *string
}

// Client fetches job and build metadata with bounded retry and build-URL
// reconciliation.
type Client struct {
	base        string
	username    string
	token       string
	httpc       *http.Client
	maxAttempts int
	baseDelay   time.Duration
	log         logx.Logger
}

func NewClient(opts Options, log logx.Logger) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = defaultRetryDelay
	}
	return &Client{
		base:        opts.BaseURL,
		username:    opts.Username,
		token:       opts.APIToken,
		httpc:       &http.Client{Timeout: opts.Timeout},
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.RetryBaseDelay,
		log:         log,
	}, nil
}

// BaseURL returns the configured upstream endpoint.
func (c *Client) BaseURL() string { return c.base }

// Ping probes the upstream root metadata endpoint once. Used as a startup
// connectivity check; failure is advisory, not fatal.
func (c *Client) Ping(ctx context.Context) error {
	return c.getJSON(ctx, RootAPIURL(c.base), &struct{}{})
}

// JobSummary fetches the job-level record naming the most recent build, if any.
func (c *Client) JobSummary(ctx context.Context, jobName string) (*JobSummary, error) {
	var js JobSummary
	if err := c.getJSON(ctx, JobAPIURL(c.base, jobName), &js); err != nil {
		return nil, err
	}
	return &js, nil
}

// LastBuild fetches and classifies the build behind ref.
func (c *Client) LastBuild(ctx context.Context, ref BuildRef) (*BuildSnapshot, error) {
	buildURL, err := BuildAPIURL(ref.URL, c.base)
	if err != nil {
		return nil, err
	}
	var bd buildDetails
	if err := c.getJSON(ctx, buildURL, &bd); err != nil {
		return nil, err
	}
	return &BuildSnapshot{
		Number:      bd.Number,
		Timestamp:   time.UnixMilli(bd.Timestamp).UTC(),
		DisplayName: bd.DisplayName,
		Outcome:     ClassifyResult(bd.Result),
		Result:      bd.Result,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	resp, err := c.do(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &UpstreamStatusError{Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", rawURL, err)
	}
	return nil
}

// do performs a GET with bounded retry and exponential backoff.
//
// Retry triggers on transport failure or a 5xx status; any other status stops
// immediately. When attempts run out after a transport failure the result is
// a RetrievalError; when they run out on 5xx the last response is returned
// as-is for the caller to inspect.
func (c *Client) do(ctx context.Context, rawURL string) (*http.Response, error) {
	delay := c.baseDelay
	var lastErr error

	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request for %s: %w", rawURL, err)
		}
		if c.username != "" {
			req.SetBasicAuth(c.username, c.token)
		}

		resp, err := c.httpc.Do(req)
		if err == nil {
			if resp.StatusCode < 500 || resp.StatusCode > 599 {
				return resp, nil
			}
			if attempt >= c.maxAttempts {
				return resp, nil
			}
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			_ = resp.Body.Close()
			c.log.Debug("server error, retrying",
				logx.String("url", rawURL),
				logx.Int("status", resp.StatusCode),
				logx.Int("attempt", attempt),
				logx.Int("max", c.maxAttempts))
		} else {
			lastErr = err
			if attempt >= c.maxAttempts {
				return nil, &RetrievalError{Attempts: attempt, Err: lastErr}
			}
			c.log.Debug("request failed, retrying",
				logx.String("url", rawURL),
				logx.Err(err),
				logx.Int("attempt", attempt),
				logx.Int("max", c.maxAttempts))
		}

		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return nil, &RetrievalError{Attempts: attempt, Err: ctx.Err()}
		}
		delay *= 2
	}
}

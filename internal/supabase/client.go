// Package supabase is a small Supabase client: PostgREST tables, the auth
// admin API, storage buckets and realtime postgres_changes subscriptions.
//
// Every request carries the configured key as both apikey and bearer token,
// so the client acts with whatever role that key grants.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/neboloop/agencycheck/internal/logging"
)

const defaultTimeout = 15 * time.Second

// Options configures a Client.
type Options struct {
	URL     string // project URL, e.g. https://xyz.supabase.co
	Key     string // service role or anon key
	Schema  string // PostgREST schema, default "public"
	Timeout time.Duration

	HTTPClient *http.Client
	Log        *slog.Logger
}

// Client talks to one Supabase project.
type Client struct {
	baseURL string
	key     string
	schema  string
	http    *http.Client
	log     *slog.Logger

	// HeartbeatInterval is used by realtime subscriptions.
	HeartbeatInterval time.Duration
	// JoinGrace is how long Subscribe waits after the join reply for the
	// postgres_changes system confirmation before going ahead without it.
	JoinGrace time.Duration
}

// New creates a client. URL and Key are required.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("supabase url not configured")
	}
	if opts.Key == "" {
		return nil, fmt.Errorf("supabase key not configured")
	}
	u, err := url.Parse(opts.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid supabase url %q", opts.URL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	schema := opts.Schema
	if schema == "" {
		schema = "public"
	}
	log := opts.Log
	if log == nil {
		log = logging.Component("supabase")
	}
	return &Client{
		baseURL:           strings.TrimRight(opts.URL, "/"),
		key:               opts.Key,
		schema:            schema,
		http:              hc,
		log:               log,
		HeartbeatInterval: 25 * time.Second,
		JoinGrace:         2 * time.Second,
	}, nil
}

// URL returns the project URL.
func (c *Client) URL() string { return c.baseURL }

// newRequest builds an authenticated request for path (relative to the
// project URL).
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends req and returns the response body, or an *APIError for a non-2xx
// status.
func (c *Client) do(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.log.Debug("request", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp.StatusCode, data)
	}
	return data, nil
}

// doJSON marshals reqBody, sends the request and decodes the response into
// dest. headers are added to the request.
func (c *Client) doJSON(ctx context.Context, method, path string, headers map[string]string, reqBody, dest any) error {
	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	data, err := c.do(req)
	if err != nil {
		return err
	}
	if dest != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, dest); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

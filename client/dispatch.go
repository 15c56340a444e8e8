package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jmcleod/headless/cache"
)

const (
	sessionTokenHeader = "X-Session-Token"
	csrfTokenHeader    = "X-CSRFToken"
)

// do performs one exchange against the client-type-scoped API path.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	return c.doURL(ctx, method, c.clientPath+path, body, out)
}

// doBrowser performs one exchange against the fixed browser-scoped path,
// for the endpoints that only exist in browser scope on the wire.
func (c *Client) doBrowser(ctx context.Context, method, path string, body, out any) error {
	return c.doURL(ctx, method, c.browserPath+path, body, out)
}

// doURL is the single dispatch path every endpoint operation funnels
// through: credential header injection, CSRF pre-fetch, token rotation,
// session expiry detection, and success/error classification.
func (c *Client) doURL(ctx context.Context, method, rawURL string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	// A fresh CSRF token is fetched for every mutating request. Failure
	// is non-fatal: the request proceeds without the header and any
	// resulting rejection surfaces as a normal API error.
	if c.csrfURL != "" && method != http.MethodGet {
		if token := c.fetchCSRFToken(ctx); token != "" {
			req.Header.Set(csrfTokenHeader, token)
			c.store.SetCSRFToken(token)
		}
	}

	if token := c.store.SessionToken(); token != "" {
		req.Header.Set(sessionTokenHeader, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	success := resp.StatusCode >= 200 && resp.StatusCode < 300

	// Opportunistic token peek. A rotated token arrives on success; a
	// pending-flow 401 (e.g. awaiting MFA) also carries the session token
	// the rest of the flow must present. A non-JSON body just means no
	// token is present.
	var peek struct {
		Meta struct {
			SessionToken string `json:"session_token"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(data, &peek); err == nil && peek.Meta.SessionToken != "" {
		c.store.SetSessionToken(peek.Meta.SessionToken)
	}

	// 410 Gone is the authoritative session-expiry signal. The stored
	// token is cleared regardless of what the body says; the response
	// itself still flows to the caller.
	if resp.StatusCode == http.StatusGone {
		c.store.SetSessionToken("")
	}

	if !success {
		var errEnv struct {
			Status int          `json:"status"`
			Errors []FieldError `json:"errors"`
		}
		if err := json.Unmarshal(data, &errEnv); err == nil && len(errEnv.Errors) > 0 {
			status := errEnv.Status
			if status == 0 {
				status = resp.StatusCode
			}
			return &APIError{Status: status, Errors: errEnv.Errors}
		}
		// Non-success without an errors list (pending-flow 401, session
		// 410) is part of the wire contract and decodes as data below.
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

// fetchCSRFToken retrieves a fresh CSRF token from the configured
// endpoint. Any failure is logged and reported as "no token"; it never
// fails the primary request.
func (c *Client) fetchCSRFToken(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.csrfURL, nil)
	if err != nil {
		c.logger.Warn("building CSRF token request", "error", err)
		return ""
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("fetching CSRF token", "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// A failed pre-fetch means the request goes out without the
		// header; a previously stored token may be stale and must not
		// be replayed.
		c.logger.Warn("fetching CSRF token", "status", resp.StatusCode)
		return ""
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("reading CSRF token response", "error", err)
		return ""
	}

	// The endpoint may answer {"token": "..."} or a bare JSON string.
	var wrapped struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Token != "" {
		return wrapped.Token
	}
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil && bare != "" {
		return bare
	}

	// Some deployments only set the CSRF cookie; fall back to it.
	return c.store.CSRFToken()
}

// fetchCached satisfies reads from the cache when the entry is fresh,
// re-fetching on stale or absent entries. A cached value of an unexpected
// type (key collision across response shapes) triggers a re-fetch rather
// than an error.
func fetchCached[T any](ctx context.Context, c *Client, key string, fetch func(context.Context) (T, error)) (T, error) {
	if e := c.coord.Lookup(key); e.Freshness == cache.Fresh {
		if v, ok := e.Value.(T); ok {
			return v, nil
		}
	}
	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.coord.Store(key, v)
	return v, nil
}

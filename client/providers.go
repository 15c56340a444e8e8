package client

import (
	"context"
	"net/http"

	"github.com/jmcleod/headless/cache"
)

// ListProviderAccounts returns the connected third-party accounts, served
// from cache when fresh.
func (c *Client) ListProviderAccounts(ctx context.Context) (*ProviderAccountsResponse, error) {
	return fetchCached(ctx, c, cache.KeyProviders, func(ctx context.Context) (*ProviderAccountsResponse, error) {
		var resp ProviderAccountsResponse
		if err := c.do(ctx, http.MethodGet, "/account/providers", nil, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}

// DisconnectProviderAccount disconnects a third-party account. The
// returned list replaces the cached one.
func (c *Client) DisconnectProviderAccount(ctx context.Context, req ProviderDisconnectRequest) (*ProviderAccountsResponse, error) {
	var resp ProviderAccountsResponse
	if err := c.do(ctx, http.MethodDelete, "/account/providers", req, &resp); err != nil {
		return nil, err
	}
	c.coord.ProvidersUpdated(&resp)
	return &resp, nil
}

// ProviderRedirectForm describes the form-POST that starts a provider
// redirect flow. The redirect endpoint only exists in browser scope and
// must be submitted by a real browser, so the SDK returns the target and
// fields instead of performing a request.
func (c *Client) ProviderRedirectForm(provider, callbackURL, process string) RedirectForm {
	if process == "" {
		process = "login"
	}
	return RedirectForm{
		URL:    c.browserPath + "/auth/provider/redirect",
		Method: http.MethodPost,
		Fields: map[string]string{
			"provider":     provider,
			"callback_url": callbackURL,
			"process":      process,
		},
	}
}

// ProviderToken authenticates with a token obtained directly from a
// provider's native SDK. A 200 result establishes the session.
func (c *Client) ProviderToken(ctx context.Context, req ProviderTokenRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/provider/token", req, &resp); err != nil {
		return nil, err
	}
	c.recordAuthState(&resp)
	return &resp, nil
}

// GetProviderSignup describes the pending provider signup, if any.
func (c *Client) GetProviderSignup(ctx context.Context) (*ProviderSignupResponse, error) {
	return fetchCached(ctx, c, cache.KeyProviderSignup, func(ctx context.Context) (*ProviderSignupResponse, error) {
		var resp ProviderSignupResponse
		if err := c.do(ctx, http.MethodGet, "/auth/provider/signup", nil, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}

// ProviderSignup completes a pending provider signup with the missing
// account data.
func (c *Client) ProviderSignup(ctx context.Context, req ProviderSignupRequest) (*AuthResponse, error) {
	req.Email = normalizeIdentifier(req.Email)
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/provider/signup", req, &resp); err != nil {
		return nil, err
	}
	c.recordAuthState(&resp)
	return &resp, nil
}

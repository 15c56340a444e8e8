package client

import (
	"context"
	"net/http"

	"github.com/jmcleod/headless/cache"
)

// GetAuthenticationStatus returns the current session state. The result
// is served from cache when fresh; a stale or absent entry triggers a
// network fetch. A 410 status in the result means the session expired and
// the stored token has already been cleared.
func (c *Client) GetAuthenticationStatus(ctx context.Context) (*AuthResponse, error) {
	return fetchCached(ctx, c, cache.KeyAuthStatus, func(ctx context.Context) (*AuthResponse, error) {
		var resp AuthResponse
		if err := c.do(ctx, http.MethodGet, "/auth/session", nil, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}

// Login authenticates with a username/email/phone and password. A 200
// result establishes the session; a 401 result carries the pending flows
// (e.g. MFA) and is returned as data, not as an error.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	req.Username = normalizeIdentifier(req.Username)
	req.Email = normalizeIdentifier(req.Email)
	req.Phone = normalizeIdentifier(req.Phone)

	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	c.recordAuthState(&resp)
	return &resp, nil
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	req.Username = normalizeIdentifier(req.Username)
	req.Email = normalizeIdentifier(req.Email)
	req.Phone = normalizeIdentifier(req.Phone)

	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/signup", req, &resp); err != nil {
		return nil, err
	}
	c.recordAuthState(&resp)
	return &resp, nil
}

// Reauthenticate re-confirms the current user's password, unlocking
// sensitive operations for a short window.
func (c *Client) Reauthenticate(ctx context.Context, req ReauthenticateRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/reauthenticate", req, &resp); err != nil {
		return nil, err
	}
	c.recordAuthState(&resp)
	return &resp, nil
}

// Logout ends the current session. The stored credentials are cleared and
// the auth-status cache entry is replaced with the not-authenticated
// placeholder before any other entry can be observed against it.
func (c *Client) Logout(ctx context.Context) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.do(ctx, http.MethodDelete, "/auth/session", nil, &resp)
	if err != nil {
		if _, ok := AsAPIError(err); !ok {
			return nil, err
		}
		// A domain error still means the session is gone server-side.
	}

	// Clear token and transition the cached state back-to-back, with no
	// I/O in between, so no reader sees a valid token next to a
	// not-authenticated state or vice versa.
	c.store.SetSessionToken("")
	c.store.SetCSRFToken("")
	c.coord.SignedOut(NotAuthenticatedPlaceholder())
	return &resp, nil
}

// RequestLoginCode requests a one-time login code by email or phone.
func (c *Client) RequestLoginCode(ctx context.Context, req LoginCodeRequest) (*AuthResponse, error) {
	req.Email = normalizeIdentifier(req.Email)
	req.Phone = normalizeIdentifier(req.Phone)

	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/code/request", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConfirmLoginCode exchanges a one-time code for a session.
func (c *Client) ConfirmLoginCode(ctx context.Context, req ConfirmLoginCodeRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/code/confirm", req, &resp); err != nil {
		return nil, err
	}
	c.recordAuthState(&resp)
	return &resp, nil
}

// recordAuthState applies the signed-in cache effect when a mutating auth
// call returned a fresh, established session state.
func (c *Client) recordAuthState(resp *AuthResponse) {
	if resp.Status == http.StatusOK && resp.Authenticated() {
		c.coord.SignedIn(resp)
	}
}

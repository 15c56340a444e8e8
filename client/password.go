package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jmcleod/headless/cache"
)

// RequestPassword starts a password reset by email.
func (c *Client) RequestPassword(ctx context.Context, req PasswordResetRequest) (*AuthResponse, error) {
	req.Email = normalizeIdentifier(req.Email)
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/password/request", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPasswordResetInfo describes the reset behind an emailed key without
// consuming it.
func (c *Client) GetPasswordResetInfo(ctx context.Context, key string) (*PasswordResetInfoResponse, error) {
	return fetchCached(ctx, c, cache.KeyPasswordResetInfo(key), func(ctx context.Context) (*PasswordResetInfoResponse, error) {
		var resp PasswordResetInfoResponse
		path := "/auth/password/reset?key=" + url.QueryEscape(key)
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}

// ResetPassword consumes a reset key and sets a new password. Depending
// on server configuration the returned 200 state may establish a session
// directly.
func (c *Client) ResetPassword(ctx context.Context, req PasswordResetConfirmRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/password/reset", req, &resp); err != nil {
		return nil, err
	}
	c.recordAuthState(&resp)
	return &resp, nil
}

// ChangePassword changes the current user's password.
func (c *Client) ChangePassword(ctx context.Context, req PasswordChangeRequest) (*OKResponse, error) {
	var resp OKResponse
	if err := c.do(ctx, http.MethodPost, "/account/password/change", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

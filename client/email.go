package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jmcleod/headless/cache"
)

// ListEmailAddresses returns the account's email addresses, served from
// cache when fresh.
func (c *Client) ListEmailAddresses(ctx context.Context) (*EmailAddressesResponse, error) {
	return fetchCached(ctx, c, cache.KeyEmails, func(ctx context.Context) (*EmailAddressesResponse, error) {
		var resp EmailAddressesResponse
		if err := c.do(ctx, http.MethodGet, "/account/email", nil, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}

// AddEmailAddress registers a new (unverified) email address. The
// returned list replaces the cached one.
func (c *Client) AddEmailAddress(ctx context.Context, req EmailAddressRequest) (*EmailAddressesResponse, error) {
	req.Email = normalizeIdentifier(req.Email)
	var resp EmailAddressesResponse
	if err := c.do(ctx, http.MethodPost, "/account/email", req, &resp); err != nil {
		return nil, err
	}
	c.coord.EmailsUpdated(&resp)
	return &resp, nil
}

// RemoveEmailAddress removes an email address.
func (c *Client) RemoveEmailAddress(ctx context.Context, req EmailAddressRequest) (*EmailAddressesResponse, error) {
	req.Email = normalizeIdentifier(req.Email)
	var resp EmailAddressesResponse
	if err := c.do(ctx, http.MethodDelete, "/account/email", req, &resp); err != nil {
		return nil, err
	}
	c.coord.EmailsUpdated(&resp)
	return &resp, nil
}

// ChangePrimaryEmailAddress marks a verified address as primary.
func (c *Client) ChangePrimaryEmailAddress(ctx context.Context, req EmailPrimaryRequest) (*EmailAddressesResponse, error) {
	req.Email = normalizeIdentifier(req.Email)
	req.Primary = true
	var resp EmailAddressesResponse
	if err := c.do(ctx, http.MethodPatch, "/account/email", req, &resp); err != nil {
		return nil, err
	}
	c.coord.EmailsUpdated(&resp)
	return &resp, nil
}

// RequestEmailVerification re-sends the verification mail for an address.
func (c *Client) RequestEmailVerification(ctx context.Context, req EmailAddressRequest) (*OKResponse, error) {
	req.Email = normalizeIdentifier(req.Email)
	var resp OKResponse
	if err := c.do(ctx, http.MethodPut, "/account/email", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetEmailVerificationInfo describes the verification behind an emailed
// key without consuming it.
func (c *Client) GetEmailVerificationInfo(ctx context.Context, key string) (*EmailVerificationInfoResponse, error) {
	return fetchCached(ctx, c, cache.KeyEmailVerification(key), func(ctx context.Context) (*EmailVerificationInfoResponse, error) {
		var resp EmailVerificationInfoResponse
		path := "/auth/email/verify?key=" + url.QueryEscape(key)
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}

// VerifyEmail consumes a verification key. When verification completes a
// pending login, the returned 200 state establishes the session.
func (c *Client) VerifyEmail(ctx context.Context, req EmailVerificationRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/email/verify", req, &resp); err != nil {
		return nil, err
	}
	c.recordAuthState(&resp)
	return &resp, nil
}

// ResendEmailVerification re-sends the verification mail during a pending
// authentication flow.
func (c *Client) ResendEmailVerification(ctx context.Context) (*OKResponse, error) {
	var resp OKResponse
	if err := c.do(ctx, http.MethodPost, "/auth/email/verify/resend", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

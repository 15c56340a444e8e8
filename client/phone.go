package client

import (
	"context"
	"net/http"

	"github.com/jmcleod/headless/cache"
)

// GetPhoneNumber returns the account's phone number, served from cache
// when fresh.
func (c *Client) GetPhoneNumber(ctx context.Context) (*PhoneNumberResponse, error) {
	return fetchCached(ctx, c, cache.KeyPhone, func(ctx context.Context) (*PhoneNumberResponse, error) {
		var resp PhoneNumberResponse
		if err := c.do(ctx, http.MethodGet, "/account/phone", nil, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}

// UpdatePhoneNumber sets or replaces the account's phone number. The
// returned value replaces the cached one.
func (c *Client) UpdatePhoneNumber(ctx context.Context, phone string) (*PhoneNumberResponse, error) {
	req := PhoneNumberRequest{Phone: normalizeIdentifier(phone)}
	var resp PhoneNumberResponse
	if err := c.do(ctx, http.MethodPut, "/account/phone", req, &resp); err != nil {
		return nil, err
	}
	c.coord.PhoneUpdated(&resp)
	return &resp, nil
}

// RemovePhoneNumber removes the account's phone number; the cached entry
// becomes an explicit nil.
func (c *Client) RemovePhoneNumber(ctx context.Context) (*OKResponse, error) {
	var resp OKResponse
	if err := c.do(ctx, http.MethodDelete, "/account/phone", nil, &resp); err != nil {
		return nil, err
	}
	c.coord.PhoneUpdated(nil)
	return &resp, nil
}

// VerifyPhone confirms a phone verification code. When verification
// completes a pending login, the returned 200 state establishes the
// session.
func (c *Client) VerifyPhone(ctx context.Context, req PhoneVerificationRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/phone/verify", req, &resp); err != nil {
		return nil, err
	}
	c.recordAuthState(&resp)
	return &resp, nil
}

// ResendPhoneVerification re-sends the phone verification code.
func (c *Client) ResendPhoneVerification(ctx context.Context) (*OKResponse, error) {
	var resp OKResponse
	if err := c.do(ctx, http.MethodPost, "/auth/phone/verify/resend", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

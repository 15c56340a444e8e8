package client

import (
	"context"
	"net/http"

	"github.com/jmcleod/headless/cache"
)

// ListAuthenticators returns the registered second-factor credentials,
// served from cache when fresh.
func (c *Client) ListAuthenticators(ctx context.Context) (*AuthenticatorsResponse, error) {
	return fetchCached(ctx, c, cache.KeyAuthenticators, func(ctx context.Context) (*AuthenticatorsResponse, error) {
		var resp AuthenticatorsResponse
		if err := c.do(ctx, http.MethodGet, "/account/authenticators", nil, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}

// GetTOTPAuthenticator returns the TOTP authenticator. A 404 result with
// Meta.Secret set means none exists yet; the secret is the one to
// provision into an authenticator app.
func (c *Client) GetTOTPAuthenticator(ctx context.Context) (*TOTPAuthenticatorResponse, error) {
	return fetchCached(ctx, c, cache.KeyTOTP, func(ctx context.Context) (*TOTPAuthenticatorResponse, error) {
		var resp TOTPAuthenticatorResponse
		if err := c.do(ctx, http.MethodGet, "/account/authenticators/totp", nil, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}

// ActivateTOTP activates TOTP with a code from the provisioned secret.
// The authenticator family is marked stale for re-fetch.
func (c *Client) ActivateTOTP(ctx context.Context, req TOTPActivateRequest) (*TOTPAuthenticatorResponse, error) {
	var resp TOTPAuthenticatorResponse
	if err := c.do(ctx, http.MethodPost, "/account/authenticators/totp", req, &resp); err != nil {
		return nil, err
	}
	c.coord.AuthenticatorsChanged()
	return &resp, nil
}

// DeactivateTOTP removes the TOTP authenticator.
func (c *Client) DeactivateTOTP(ctx context.Context) (*OKResponse, error) {
	var resp OKResponse
	if err := c.do(ctx, http.MethodDelete, "/account/authenticators/totp", nil, &resp); err != nil {
		return nil, err
	}
	c.coord.AuthenticatorsChanged()
	return &resp, nil
}

// ListRecoveryCodes returns the recovery codes authenticator including
// the unused codes. Sensitive: the server requires a recent
// reauthentication.
func (c *Client) ListRecoveryCodes(ctx context.Context) (*RecoveryCodesResponse, error) {
	return fetchCached(ctx, c, cache.KeyRecoveryCodes, func(ctx context.Context) (*RecoveryCodesResponse, error) {
		var resp RecoveryCodesResponse
		if err := c.do(ctx, http.MethodGet, "/account/authenticators/recovery-codes", nil, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}

// RegenerateRecoveryCodes replaces all recovery codes. The authenticator
// family is marked stale for re-fetch.
func (c *Client) RegenerateRecoveryCodes(ctx context.Context) (*RecoveryCodesResponse, error) {
	var resp RecoveryCodesResponse
	if err := c.do(ctx, http.MethodPost, "/account/authenticators/recovery-codes", nil, &resp); err != nil {
		return nil, err
	}
	c.coord.AuthenticatorsChanged()
	return &resp, nil
}

// MFAAuthenticate completes a pending login with a second-factor code
// (TOTP or recovery code). A 200 result establishes the session.
func (c *Client) MFAAuthenticate(ctx context.Context, req MFAAuthenticateRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/2fa/authenticate", req, &resp); err != nil {
		return nil, err
	}
	c.recordAuthState(&resp)
	return &resp, nil
}

// MFAReauthenticate re-confirms the session with a second-factor code.
func (c *Client) MFAReauthenticate(ctx context.Context, req MFAAuthenticateRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/2fa/reauthenticate", req, &resp); err != nil {
		return nil, err
	}
	c.recordAuthState(&resp)
	return &resp, nil
}

// MFATrust marks the current browser as trusted, skipping the second
// factor on future logins. Browser scope only on the wire.
func (c *Client) MFATrust(ctx context.Context, req MFATrustRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.doBrowser(ctx, http.MethodPost, "/auth/2fa/trust", req, &resp); err != nil {
		return nil, err
	}
	c.recordAuthState(&resp)
	return &resp, nil
}

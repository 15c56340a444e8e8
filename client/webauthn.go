package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jmcleod/headless/cache"
)

// GetWebAuthnSignupOptions returns the credential creation options for a
// passkey signup ceremony. Options carry a one-time challenge and are
// never cached.
func (c *Client) GetWebAuthnSignupOptions(ctx context.Context) (*WebAuthnCreationOptionsResponse, error) {
	var resp WebAuthnCreationOptionsResponse
	if err := c.do(ctx, http.MethodGet, "/auth/webauthn/signup", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WebAuthnSignup completes a passkey signup with the platform
// authenticator's attestation response.
func (c *Client) WebAuthnSignup(ctx context.Context, req WebAuthnSignupRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/webauthn/signup", req, &resp); err != nil {
		return nil, err
	}
	c.recordAuthState(&resp)
	return &resp, nil
}

// GetWebAuthnLoginOptions returns the credential request options for a
// passkey login ceremony.
func (c *Client) GetWebAuthnLoginOptions(ctx context.Context) (*WebAuthnRequestOptionsResponse, error) {
	var resp WebAuthnRequestOptionsResponse
	if err := c.do(ctx, http.MethodGet, "/auth/webauthn/login", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WebAuthnLogin completes a passkey login with the platform
// authenticator's assertion response.
func (c *Client) WebAuthnLogin(ctx context.Context, req WebAuthnLoginRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/webauthn/login", req, &resp); err != nil {
		return nil, err
	}
	c.recordAuthState(&resp)
	return &resp, nil
}

// GetWebAuthnAuthenticateOptions returns the options for completing a
// pending login's second factor with a security key.
func (c *Client) GetWebAuthnAuthenticateOptions(ctx context.Context) (*WebAuthnRequestOptionsResponse, error) {
	var resp WebAuthnRequestOptionsResponse
	if err := c.do(ctx, http.MethodGet, "/auth/webauthn/authenticate", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WebAuthnAuthenticate completes a pending login's second factor.
func (c *Client) WebAuthnAuthenticate(ctx context.Context, credential json.RawMessage) (*AuthResponse, error) {
	var resp AuthResponse
	req := WebAuthnLoginRequest{Credential: credential}
	if err := c.do(ctx, http.MethodPost, "/auth/webauthn/authenticate", req, &resp); err != nil {
		return nil, err
	}
	c.recordAuthState(&resp)
	return &resp, nil
}

// GetWebAuthnReauthenticateOptions returns the options for
// reauthenticating with a security key.
func (c *Client) GetWebAuthnReauthenticateOptions(ctx context.Context) (*WebAuthnRequestOptionsResponse, error) {
	var resp WebAuthnRequestOptionsResponse
	if err := c.do(ctx, http.MethodGet, "/auth/webauthn/reauthenticate", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WebAuthnReauthenticate re-confirms the session with a security key.
func (c *Client) WebAuthnReauthenticate(ctx context.Context, credential json.RawMessage) (*AuthResponse, error) {
	var resp AuthResponse
	req := WebAuthnLoginRequest{Credential: credential}
	if err := c.do(ctx, http.MethodPost, "/auth/webauthn/reauthenticate", req, &resp); err != nil {
		return nil, err
	}
	c.recordAuthState(&resp)
	return &resp, nil
}

// ListWebAuthnCredentials returns the registered WebAuthn credentials,
// served from cache when fresh.
func (c *Client) ListWebAuthnCredentials(ctx context.Context) (*AuthenticatorsResponse, error) {
	return fetchCached(ctx, c, cache.KeyWebAuthn, func(ctx context.Context) (*AuthenticatorsResponse, error) {
		var resp AuthenticatorsResponse
		if err := c.do(ctx, http.MethodGet, "/account/authenticators/webauthn", nil, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}

// DeleteWebAuthnCredential removes a WebAuthn credential. The webauthn
// entry and the aggregate authenticator list are marked stale.
func (c *Client) DeleteWebAuthnCredential(ctx context.Context, id any) (*AuthenticatorsResponse, error) {
	var resp AuthenticatorsResponse
	req := WebAuthnCredentialDeleteRequest{ID: id}
	if err := c.do(ctx, http.MethodDelete, "/account/authenticators/webauthn", req, &resp); err != nil {
		return nil, err
	}
	c.coord.WebAuthnCredentialDeleted()
	return &resp, nil
}

package client

import (
	"encoding/json"

	"github.com/go-webauthn/webauthn/protocol"
)

// ClientType selects the API path scope and the default credential
// storage strategy.
type ClientType string

const (
	// Browser is for web clients: cookie-session transport with a
	// hybrid credential store.
	Browser ClientType = "browser"
	// App is for mobile/native clients: pure token transport with an
	// in-memory credential store.
	App ClientType = "app"
)

// Meta is the response metadata envelope. A non-empty SessionToken means
// the server rotated the token and the client must start sending the new
// value.
type Meta struct {
	IsAuthenticated bool   `json:"is_authenticated,omitempty"`
	SessionToken    string `json:"session_token,omitempty"`
	AccessToken     string `json:"access_token,omitempty"`
	Secret          string `json:"secret,omitempty"`
	RecoveryCodes   int    `json:"recovery_codes_generated,omitempty"`
}

// Flow is a server-declared next step in a multi-step authentication
// (e.g. "verify_email", "mfa_authenticate", "provider_signup").
type Flow struct {
	ID        string   `json:"id"`
	Providers []string `json:"providers,omitempty"`
	Types     []string `json:"types,omitempty"`
	IsPending bool     `json:"is_pending,omitempty"`
}

// User mirrors the server's user resource. ID is left untyped because the
// server may issue numeric or string identifiers depending on
// configuration.
type User struct {
	ID                any    `json:"id,omitempty"`
	Display           string `json:"display,omitempty"`
	Email             string `json:"email,omitempty"`
	Username          string `json:"username,omitempty"`
	HasUsablePassword bool   `json:"has_usable_password,omitempty"`
}

// AuthenticationMethod records one completed step of the current session's
// authentication (password, code, mfa, ...). The shape varies per method,
// so it stays a loose map.
type AuthenticationMethod map[string]any

// AuthData is the data section of an authentication state envelope.
// Authenticated states carry User and Methods; pending states carry Flows.
type AuthData struct {
	User    *User                  `json:"user,omitempty"`
	Methods []AuthenticationMethod `json:"methods,omitempty"`
	Flows   []Flow                 `json:"flows,omitempty"`
}

// AuthResponse is the authentication session state as reported by the
// server: a tagged union of exactly two shapes, discriminated by
// Meta.IsAuthenticated. It is always reconstructed wholesale from the
// latest server response, never mutated piecemeal.
type AuthResponse struct {
	Status int      `json:"status"`
	Data   AuthData `json:"data"`
	Meta   Meta     `json:"meta"`
}

// Authenticated reports whether the state is the authenticated shape.
func (r *AuthResponse) Authenticated() bool {
	return r != nil && r.Meta.IsAuthenticated
}

// NotAuthenticatedPlaceholder is the explicit "not authenticated, no
// flows" state written to the cache after a logout, before any status
// re-fetch has happened.
func NotAuthenticatedPlaceholder() *AuthResponse {
	return &AuthResponse{
		Status: 401,
		Data:   AuthData{Flows: []Flow{}},
		Meta:   Meta{IsAuthenticated: false},
	}
}

// EmailAddress is one registered email address. At most one verified
// address is primary; the server enforces this and the client treats it
// as given.
type EmailAddress struct {
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
	Primary  bool   `json:"primary"`
}

// EmailAddressesResponse carries the full email address list.
type EmailAddressesResponse struct {
	Status int            `json:"status"`
	Data   []EmailAddress `json:"data"`
}

// EmailVerificationInfo describes the pending verification behind an
// emailed key.
type EmailVerificationInfo struct {
	Email string `json:"email"`
	User  User   `json:"user"`
}

// EmailVerificationInfoResponse is returned from GET /auth/email/verify.
type EmailVerificationInfoResponse struct {
	Status int                   `json:"status"`
	Data   EmailVerificationInfo `json:"data"`
	Meta   Meta                  `json:"meta"`
}

// PhoneNumber is the account's phone number resource.
type PhoneNumber struct {
	Phone    string `json:"phone"`
	Verified bool   `json:"verified"`
}

// PhoneNumberResponse carries the phone number, or an empty Data list
// when none is set.
type PhoneNumberResponse struct {
	Status int           `json:"status"`
	Data   []PhoneNumber `json:"data"`
}

// PasswordResetInfoResponse is returned from GET /auth/password/reset.
type PasswordResetInfoResponse struct {
	Status int `json:"status"`
	Data   struct {
		User User `json:"user"`
	} `json:"data"`
}

// Provider describes a configured social login provider.
type Provider struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ClientID string   `json:"client_id,omitempty"`
	Flows    []string `json:"flows,omitempty"`
}

// ProviderAccount is a third-party account connected to the user.
type ProviderAccount struct {
	UUID     string   `json:"uuid"`
	Display  string   `json:"display,omitempty"`
	Provider Provider `json:"provider"`
}

// ProviderAccountsResponse carries the full provider account list.
type ProviderAccountsResponse struct {
	Status int               `json:"status"`
	Data   []ProviderAccount `json:"data"`
}

// ProviderSignupResponse is returned from GET /auth/provider/signup while
// a provider signup is pending.
type ProviderSignupResponse struct {
	Status int `json:"status"`
	Data   struct {
		Email   []EmailAddress   `json:"email,omitempty"`
		Account *ProviderAccount `json:"account,omitempty"`
		User    *User            `json:"user,omitempty"`
	} `json:"data"`
}

// Authenticator is a registered second-factor credential. Type is one of
// "totp", "recovery_codes" or "webauthn"; the remaining fields apply per
// type.
type Authenticator struct {
	Type       string `json:"type"`
	CreatedAt  int64  `json:"created_at,omitempty"`
	LastUsedAt *int64 `json:"last_used_at,omitempty"`

	// recovery_codes
	TotalCodeCount  int `json:"total_code_count,omitempty"`
	UnusedCodeCount int `json:"unused_code_count,omitempty"`

	// webauthn
	ID             any    `json:"id,omitempty"`
	Name           string `json:"name,omitempty"`
	IsPasswordless bool   `json:"is_passwordless,omitempty"`
}

// AuthenticatorsResponse carries a list of authenticators.
type AuthenticatorsResponse struct {
	Status int             `json:"status"`
	Data   []Authenticator `json:"data"`
}

// TOTPAuthenticatorResponse is returned from the TOTP endpoints. A 404
// status with Meta.Secret set means no TOTP authenticator exists yet and
// the secret is the one to provision.
type TOTPAuthenticatorResponse struct {
	Status int            `json:"status"`
	Data   *Authenticator `json:"data,omitempty"`
	Meta   Meta           `json:"meta"`
}

// RecoveryCodes is the sensitive recovery codes authenticator, including
// the unused codes themselves.
type RecoveryCodes struct {
	Authenticator
	UnusedCodes []string `json:"unused_codes,omitempty"`
}

// RecoveryCodesResponse is returned from the recovery codes endpoints.
type RecoveryCodesResponse struct {
	Status int            `json:"status"`
	Data   *RecoveryCodes `json:"data,omitempty"`
}

// WebAuthnCreationOptionsResponse carries the credential creation options
// for a WebAuthn registration ceremony. The cryptographic ceremony itself
// is performed by the platform authenticator, not this SDK.
type WebAuthnCreationOptionsResponse struct {
	Status int `json:"status"`
	Data   struct {
		CreationOptions protocol.CredentialCreation `json:"creation_options"`
	} `json:"data"`
}

// WebAuthnRequestOptionsResponse carries the credential request options
// for a WebAuthn authentication ceremony.
type WebAuthnRequestOptionsResponse struct {
	Status int `json:"status"`
	Data   struct {
		RequestOptions protocol.CredentialAssertion `json:"request_options"`
	} `json:"data"`
}

// Session is one of the account's sessions as listed by the server.
type Session struct {
	ID         int64   `json:"id,omitempty"`
	UserAgent  string  `json:"user_agent,omitempty"`
	IP         string  `json:"ip,omitempty"`
	CreatedAt  float64 `json:"created_at,omitempty"`
	LastSeenAt float64 `json:"last_seen_at,omitempty"`
	IsCurrent  bool    `json:"is_current"`
}

// SessionsResponse carries the full session list.
type SessionsResponse struct {
	Status int       `json:"status"`
	Data   []Session `json:"data"`
}

// Configuration is the server's feature configuration.
type Configuration struct {
	Account struct {
		AuthenticationMethod           string `json:"authentication_method,omitempty"`
		IsOpenForSignup                bool   `json:"is_open_for_signup"`
		LoginByCodeEnabled             bool   `json:"login_by_code_enabled,omitempty"`
		EmailVerificationByCodeEnabled bool   `json:"email_verification_by_code_enabled,omitempty"`
	} `json:"account"`
	SocialAccount *struct {
		Providers []Provider `json:"providers"`
	} `json:"socialaccount,omitempty"`
	MFA *struct {
		SupportedTypes      []string `json:"supported_types"`
		PasskeyLoginEnabled bool     `json:"passkey_login_enabled,omitempty"`
	} `json:"mfa,omitempty"`
	UserSessions *struct {
		TrackActivity bool `json:"track_activity"`
	} `json:"usersessions,omitempty"`
}

// ConfigurationResponse is returned from GET /config.
type ConfigurationResponse struct {
	Status int           `json:"status"`
	Data   Configuration `json:"data"`
}

// OKResponse is the bare acknowledgement envelope for operations that
// return no resource.
type OKResponse struct {
	Status int `json:"status"`
}

// LoginRequest is the body for POST /auth/login. Exactly one of Username,
// Email or Phone identifies the account.
type LoginRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

// SignupRequest is the body for POST /auth/signup.
type SignupRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password,omitempty"`
}

// ReauthenticateRequest is the body for POST /auth/reauthenticate.
type ReauthenticateRequest struct {
	Password string `json:"password"`
}

// LoginCodeRequest is the body for POST /auth/code/request.
type LoginCodeRequest struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// ConfirmLoginCodeRequest is the body for POST /auth/code/confirm.
type ConfirmLoginCodeRequest struct {
	Code string `json:"code"`
}

// EmailAddressRequest addresses one email address.
type EmailAddressRequest struct {
	Email string `json:"email"`
}

// EmailPrimaryRequest marks an address primary.
type EmailPrimaryRequest struct {
	Email   string `json:"email"`
	Primary bool   `json:"primary"`
}

// EmailVerificationRequest is the body for POST /auth/email/verify.
type EmailVerificationRequest struct {
	Key string `json:"key"`
}

// PhoneNumberRequest is the body for PUT /account/phone.
type PhoneNumberRequest struct {
	Phone string `json:"phone"`
}

// PhoneVerificationRequest is the body for POST /auth/phone/verify.
type PhoneVerificationRequest struct {
	Code string `json:"code"`
}

// PasswordResetRequest is the body for POST /auth/password/request.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetConfirmRequest is the body for POST /auth/password/reset.
type PasswordResetConfirmRequest struct {
	Key      string `json:"key"`
	Password string `json:"password"`
}

// PasswordChangeRequest is the body for POST /account/password/change.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password,omitempty"`
	NewPassword     string `json:"new_password"`
}

// ProviderToken carries third-party tokens for POST /auth/provider/token.
type ProviderToken struct {
	ClientID    string `json:"client_id"`
	IDToken     string `json:"id_token,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
}

// ProviderTokenRequest is the body for POST /auth/provider/token.
type ProviderTokenRequest struct {
	Provider string        `json:"provider"`
	Process  string        `json:"process,omitempty"`
	Token    ProviderToken `json:"token"`
}

// ProviderSignupRequest is the body for POST /auth/provider/signup.
type ProviderSignupRequest struct {
	Email string `json:"email"`
}

// ProviderDisconnectRequest is the body for DELETE /account/providers.
type ProviderDisconnectRequest struct {
	Provider string `json:"provider"`
	Account  string `json:"account"`
}

// MFAAuthenticateRequest is the body for POST /auth/2fa/authenticate.
type MFAAuthenticateRequest struct {
	Code string `json:"code"`
}

// MFATrustRequest is the body for POST /auth/2fa/trust.
type MFATrustRequest struct {
	Trust bool `json:"trust"`
}

// TOTPActivateRequest is the body for POST /account/authenticators/totp.
type TOTPActivateRequest struct {
	Code string `json:"code"`
}

// WebAuthnSignupRequest is the body for POST /auth/webauthn/signup. The
// credential is the platform authenticator's attestation response,
// passed through verbatim.
type WebAuthnSignupRequest struct {
	Name       string          `json:"name,omitempty"`
	Credential json.RawMessage `json:"credential"`
}

// WebAuthnLoginRequest is the body for the WebAuthn login, authenticate
// and reauthenticate endpoints.
type WebAuthnLoginRequest struct {
	Credential json.RawMessage `json:"credential"`
}

// WebAuthnCredentialDeleteRequest is the body for
// DELETE /account/authenticators/webauthn.
type WebAuthnCredentialDeleteRequest struct {
	ID any `json:"id"`
}

// SessionDeleteRequest is the body for DELETE /auth/sessions.
type SessionDeleteRequest struct {
	Sessions []int64 `json:"sessions"`
}

// RedirectForm describes the form-POST a browser must submit to start a
// provider redirect flow. The SDK cannot submit it (no DOM); callers
// render it into their UI layer.
type RedirectForm struct {
	URL    string
	Method string
	Fields map[string]string
}

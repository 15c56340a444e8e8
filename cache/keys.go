package cache

import "net/url"

// Cache keys form a slash-separated hierarchy rooted at KeyRoot so that
// whole entity families can be invalidated by prefix (e.g. every
// authenticator sub-entry after a TOTP deactivation).
const (
	KeyRoot   = "allauth"
	KeyConfig = KeyRoot + "/config"

	KeyAuth       = KeyRoot + "/auth"
	KeyAuthStatus = KeyAuth + "/status"

	KeyEmails = KeyRoot + "/emails"
	KeyPhone  = KeyRoot + "/phone"

	KeyPasswordReset = KeyRoot + "/password-reset"

	KeyProviders      = KeyRoot + "/providers"
	KeyProviderSignup = KeyProviders + "/signup"

	KeyAuthenticators = KeyRoot + "/authenticators"
	KeyTOTP           = KeyAuthenticators + "/totp"
	KeyRecoveryCodes  = KeyAuthenticators + "/recovery-codes"
	KeyWebAuthn       = KeyAuthenticators + "/webauthn"

	KeySessions = KeyRoot + "/sessions"
)

// KeyEmailVerification returns the key for a single email verification
// lookup. The verification key is server-issued and opaque; it is escaped
// so it cannot collide with sibling entries.
func KeyEmailVerification(key string) string {
	return KeyEmails + "/verify/" + url.PathEscape(key)
}

// KeyPasswordResetInfo returns the key for a password reset key lookup.
func KeyPasswordResetInfo(key string) string {
	return KeyPasswordReset + "/" + url.PathEscape(key)
}

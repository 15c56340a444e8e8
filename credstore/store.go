// Package credstore owns the two client credentials — the session token
// and the CSRF token — for the lifetime of a client instance. Three
// strategies are provided: an in-memory store with optional persistence of
// the session token, a cookie-jar-backed store, and a hybrid that prefers
// memory and falls back to cookies.
//
// All implementations tolerate being queried before any token was ever
// set: reads return the empty string, never an error.
package credstore

// Store is the capability set the request dispatcher needs: read and write
// access to the session token and the CSRF token. The empty string means
// "no token"; setting the empty string clears.
type Store interface {
	SessionToken() string
	SetSessionToken(token string)
	CSRFToken() string
	SetCSRFToken(token string)
}

// Persistence persists the session token across process restarts. The CSRF
// token is deliberately not part of this interface: it is always
// re-fetched or re-derived per session and never written to disk.
type Persistence interface {
	// LoadSessionToken returns the persisted token, or "" when none is
	// stored (or the stored token cannot be unsealed).
	LoadSessionToken() (string, error)
	// SaveSessionToken stores the token; "" removes it.
	SaveSessionToken(token string) error
}

package cache

// Coordinator applies the fixed mutation → cache-effect table on top of a
// Cache. An entry is overwritten only when the mutation's response already
// contains the complete replacement value; entries the mutation affects
// indirectly are marked Stale and re-fetched lazily on next read.
//
// Values are stored as `any`: the Coordinator does not interpret response
// payloads, it only routes them to keys.
type Coordinator struct {
	cache *Cache
}

// NewCoordinator returns a Coordinator over a fresh Cache.
func NewCoordinator() *Coordinator {
	return &Coordinator{cache: New()}
}

// Cache exposes the underlying cache for direct reads.
func (co *Coordinator) Cache() *Cache {
	return co.cache
}

// Lookup returns the entry for key.
func (co *Coordinator) Lookup(key string) Entry {
	return co.cache.Get(key)
}

// Store records a freshly fetched read result.
func (co *Coordinator) Store(key string, value any) {
	co.cache.Set(key, value)
}

// SignedIn records a mutation that established (or re-established) an
// authenticated session: login, signup, code confirm, provider token,
// WebAuthn login/signup, password reset confirm, MFA authenticate. The
// returned session state becomes the auth-status entry; every
// account-scoped collection is marked stale for re-fetch.
func (co *Coordinator) SignedIn(state any) {
	c := co.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[KeyAuthStatus] = Entry{Value: state, Freshness: Fresh}
	c.invalidatePrefixLocked(KeyEmails)
	c.invalidatePrefixLocked(KeyProviders)
	c.invalidatePrefixLocked(KeyAuthenticators)
	c.invalidatePrefixLocked(KeySessions)
}

// SignedOut records a logout or current-session delete. The placeholder is
// the explicit "not authenticated, no flows" state; everything under the
// root namespace is marked stale in the same critical section so no reader
// observes the old auth status next to fresh collections.
func (co *Coordinator) SignedOut(placeholder any) {
	c := co.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidatePrefixLocked(KeyRoot)
	c.entries[KeyAuthStatus] = Entry{Value: placeholder, Freshness: Fresh}
}

// EmailsUpdated records an email add/remove/set-primary that returned the
// full replacement list. Auth status is marked stale because the primary
// email can affect the displayed identity.
func (co *Coordinator) EmailsUpdated(list any) {
	c := co.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[KeyEmails] = Entry{Value: list, Freshness: Fresh}
	c.invalidateLocked(KeyAuthStatus)
}

// PhoneUpdated records a phone update or removal with the returned value
// (nil after removal).
func (co *Coordinator) PhoneUpdated(value any) {
	co.cache.Set(KeyPhone, value)
}

// AuthenticatorsChanged records a TOTP activate/deactivate or recovery
// codes regeneration. No replacement value is returned by these calls, so
// the whole authenticator family is marked stale.
func (co *Coordinator) AuthenticatorsChanged() {
	co.cache.InvalidatePrefix(KeyAuthenticators)
}

// WebAuthnCredentialDeleted records a WebAuthn credential delete: the
// webauthn sub-entry and the aggregate authenticator list are both stale.
func (co *Coordinator) WebAuthnCredentialDeleted() {
	c := co.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked(KeyWebAuthn)
	c.invalidatePrefixLocked(KeyAuthenticators)
}

// ProvidersUpdated records a provider disconnect that returned the full
// replacement account list.
func (co *Coordinator) ProvidersUpdated(list any) {
	co.cache.Set(KeyProviders, list)
}

// SessionsUpdated records a delete of a non-current session that returned
// the full replacement session list.
func (co *Coordinator) SessionsUpdated(list any) {
	co.cache.Set(KeySessions, list)
}

package credstore

import (
	"sync"

	"github.com/awnumar/memguard"
)

// Memory is an in-memory credential store. The session token is held in a
// memguard Enclave so it stays encrypted at rest in process memory; the
// CSRF token is short-lived and kept as a plain string.
//
// With a Persistence backend the session token survives process restarts.
// Hydration happens in the constructor, so reads are synchronous from the
// first call. The zero value is usable without persistence.
type Memory struct {
	mu      sync.RWMutex
	session *memguard.Enclave
	csrf    string
	persist Persistence
}

var _ Store = (*Memory)(nil)

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithPersistence persists the session token through p. A load failure at
// construction time is treated as "no token": the store starts empty
// rather than failing, matching the posture that an unreadable persisted
// credential is equivalent to a signed-out client.
func WithPersistence(p Persistence) MemoryOption {
	return func(m *Memory) {
		m.persist = p
	}
}

// NewMemory creates a Memory store and hydrates the session token from
// persistence when configured.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{}
	for _, opt := range opts {
		opt(m)
	}
	if m.persist != nil {
		if token, err := m.persist.LoadSessionToken(); err == nil && token != "" {
			m.session = memguard.NewEnclave([]byte(token))
		}
	}
	return m
}

func (m *Memory) SessionToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return ""
	}
	buf, err := m.session.Open()
	if err != nil {
		return ""
	}
	defer buf.Destroy()
	return string(buf.Bytes())
}

func (m *Memory) SetSessionToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token == "" {
		m.session = nil
	} else {
		m.session = memguard.NewEnclave([]byte(token))
	}
	if m.persist != nil {
		// Best-effort: a persistence failure must not break the
		// in-memory contract.
		_ = m.persist.SaveSessionToken(token)
	}
}

func (m *Memory) CSRFToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.csrf
}

func (m *Memory) SetCSRFToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.csrf = token
}

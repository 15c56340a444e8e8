// Package allauthtest provides an in-process fake of the headless
// authentication API for tests. It implements the wire contract — session
// issuance, token rotation, CSRF pre-fetch, session expiry, and the
// account resources — against in-memory state, with knobs to provoke the
// failure paths (CSRF endpoint outages, CSRF enforcement, forced
// expiry).
//
// The fake verifies shapes, not cryptography: any well-formed TOTP code
// or WebAuthn credential is accepted.
package allauthtest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmcleod/headless/client"
)

// CSRFPath is where the fake serves CSRF tokens for pre-fetching.
const CSRFPath = "/csrf"

// Server is a fake identity server. All fields and methods are safe for
// concurrent use; the exported knobs must be set before the behavior they
// control is exercised.
type Server struct {
	mu sync.Mutex

	srv *httptest.Server

	users    map[string]*user    // by email
	sessions map[string]*session // by token
	nextID   int64

	loginCodes map[string]string // email -> code
	verifyKeys map[string]string // key -> email
	resetKeys  map[string]string // key -> email

	// RotateTokens makes every authenticated response carry a fresh
	// meta.session_token, invalidating the previous one.
	rotateTokens bool
	// csrfOutage makes the CSRF endpoint answer 500.
	csrfOutage bool
	// requireCSRF rejects mutating requests without a previously issued
	// CSRF token, the way a cookie-session deployment would.
	requireCSRF bool

	issuedCSRF map[string]bool
}

type user struct {
	id       int64
	username string
	password string

	emails []client.EmailAddress
	phone  *client.PhoneNumber

	totpSecret    string // pending provisioning secret
	totpActive    bool
	totpCreatedAt int64

	recoveryCodes []string

	webauthn []client.Authenticator

	providers []client.ProviderAccount
}

func (u *user) primaryEmail() string {
	for _, e := range u.emails {
		if e.Primary {
			return e.Email
		}
	}
	if len(u.emails) > 0 {
		return u.emails[0].Email
	}
	return ""
}

type session struct {
	id        int64
	token     string
	user      *user
	createdAt time.Time
	expired   bool
	// pendingMFA is set between a correct password and the second
	// factor; the session authenticates nothing until it clears.
	pendingMFA bool
}

// NewServer starts a fake identity server. Close it when done.
func NewServer() *Server {
	s := &Server{
		users:      make(map[string]*user),
		sessions:   make(map[string]*session),
		loginCodes: make(map[string]string),
		verifyKeys: make(map[string]string),
		resetKeys:  make(map[string]string),
		issuedCSRF: make(map[string]bool),
	}
	s.srv = httptest.NewServer(s.router())
	return s
}

// URL returns the server's base URL.
func (s *Server) URL() string {
	return s.srv.URL
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.Close()
}

// SetRotateTokens toggles per-response session token rotation.
func (s *Server) SetRotateTokens(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotateTokens = on
}

// SetCSRFOutage toggles a 500 answer from the CSRF endpoint.
func (s *Server) SetCSRFOutage(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.csrfOutage = on
}

// SetRequireCSRF toggles rejection of mutating requests that do not
// present an issued CSRF token.
func (s *Server) SetRequireCSRF(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requireCSRF = on
}

// AddUser seeds an account with a verified primary email and password.
// It returns the user id.
func (s *Server) AddUser(email, password string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.addUserLocked(email, password)
	return u.id
}

func (s *Server) addUserLocked(email, password string) *user {
	s.nextID++
	u := &user{
		id:       s.nextID,
		password: password,
		emails: []client.EmailAddress{
			{Email: email, Verified: true, Primary: true},
		},
	}
	s.users[email] = u
	return u
}

// EnableTOTP seeds an active TOTP authenticator for the user, so the next
// login answers with a pending MFA flow.
func (s *Server) EnableTOTP(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[email]; ok {
		u.totpActive = true
		u.totpCreatedAt = time.Now().Unix()
	}
}

// ExpireSession marks the session behind token expired: the next request
// presenting it is answered with 410 Gone.
func (s *Server) ExpireSession(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[token]; ok {
		sess.expired = true
	}
}

// LastLoginCode returns the code issued for email by a code login
// request.
func (s *Server) LastLoginCode(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginCodes[email]
}

// IssueVerificationKey creates an email verification key for email, as if
// a verification mail had been sent.
func (s *Server) IssueVerificationKey(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := uuid.NewString()
	s.verifyKeys[key] = email
	return key
}

// LastResetKey returns the password reset key issued for email.
func (s *Server) LastResetKey(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.resetKeys {
		if e == email {
			return key
		}
	}
	return ""
}

// SessionCount reports the number of live (non-expired) sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if !sess.expired {
			n++
		}
	}
	return n
}

// newSessionLocked issues a session for u.
func (s *Server) newSessionLocked(u *user, pendingMFA bool) *session {
	s.nextID++
	sess := &session{
		id:         s.nextID,
		token:      uuid.NewString(),
		user:       u,
		createdAt:  time.Now(),
		pendingMFA: pendingMFA,
	}
	s.sessions[sess.token] = sess
	return sess
}

// rotateLocked rotates the session token when rotation is on, returning
// the token the client must use from now on.
func (s *Server) rotateLocked(sess *session) string {
	if !s.rotateTokens {
		return ""
	}
	delete(s.sessions, sess.token)
	sess.token = uuid.NewString()
	s.sessions[sess.token] = sess
	return sess.token
}

// requestToken extracts the presented session token from header or
// cookie.
func requestToken(r *http.Request) string {
	if t := r.Header.Get("X-Session-Token"); t != "" {
		return t
	}
	if ck, err := r.Cookie("sessiontoken"); err == nil {
		return ck.Value
	}
	return ""
}

// currentSession resolves the request's session. The bool reports whether
// a token was presented but is expired or unknown (the 410 case).
func (s *Server) currentSessionLocked(r *http.Request) (*session, bool) {
	token := requestToken(r)
	if token == "" {
		return nil, false
	}
	sess, ok := s.sessions[token]
	if !ok || sess.expired {
		return nil, true
	}
	return sess, false
}

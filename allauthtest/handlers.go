package allauthtest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jmcleod/headless/client"
)

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Get(CSRFPath, s.handleCSRFToken)
	s.mountDocs(r)

	// Browser and app scopes serve the same fake behavior.
	r.Route("/_allauth/{clientType}/v1", func(r chi.Router) {
		r.Use(s.csrfMiddleware)

		r.Get("/config", s.handleConfig)

		r.Get("/auth/session", s.handleAuthStatus)
		r.Delete("/auth/session", s.handleLogout)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/reauthenticate", s.handleReauthenticate)

		r.Post("/auth/code/request", s.handleCodeRequest)
		r.Post("/auth/code/confirm", s.handleCodeConfirm)

		r.Get("/auth/email/verify", s.handleEmailVerifyInfo)
		r.Post("/auth/email/verify", s.handleEmailVerify)
		r.Post("/auth/email/verify/resend", s.handleOK)
		r.Post("/auth/phone/verify", s.handlePhoneVerify)
		r.Post("/auth/phone/verify/resend", s.handleOK)

		r.Post("/auth/password/request", s.handlePasswordRequest)
		r.Get("/auth/password/reset", s.handlePasswordResetInfo)
		r.Post("/auth/password/reset", s.handlePasswordReset)

		r.Post("/auth/provider/token", s.handleProviderToken)
		r.Get("/auth/provider/signup", s.handleProviderSignup)
		r.Post("/auth/provider/signup", s.handleProviderSignup)
		r.Post("/auth/provider/redirect", s.handleProviderRedirect)

		r.Post("/auth/2fa/authenticate", s.handleMFAAuthenticate)
		r.Post("/auth/2fa/reauthenticate", s.handleMFAAuthenticate)
		r.Post("/auth/2fa/trust", s.handleMFATrust)

		r.Get("/auth/webauthn/signup", s.handleWebAuthnCreationOptions)
		r.Post("/auth/webauthn/signup", s.handleWebAuthnAssert)
		r.Get("/auth/webauthn/login", s.handleWebAuthnRequestOptions)
		r.Post("/auth/webauthn/login", s.handleWebAuthnAssert)
		r.Get("/auth/webauthn/authenticate", s.handleWebAuthnRequestOptions)
		r.Post("/auth/webauthn/authenticate", s.handleWebAuthnAssert)
		r.Get("/auth/webauthn/reauthenticate", s.handleWebAuthnRequestOptions)
		r.Post("/auth/webauthn/reauthenticate", s.handleWebAuthnAssert)

		r.Get("/auth/sessions", s.handleListSessions)
		r.Delete("/auth/sessions", s.handleDeleteSessions)

		r.Get("/account/email", s.handleListEmails)
		r.Post("/account/email", s.handleAddEmail)
		r.Delete("/account/email", s.handleRemoveEmail)
		r.Patch("/account/email", s.handleSetPrimaryEmail)
		r.Put("/account/email", s.handleRequestEmailVerification)

		r.Get("/account/phone", s.handleGetPhone)
		r.Put("/account/phone", s.handleUpdatePhone)
		r.Delete("/account/phone", s.handleRemovePhone)

		r.Post("/account/password/change", s.handleChangePassword)

		r.Get("/account/providers", s.handleListProviders)
		r.Delete("/account/providers", s.handleDisconnectProvider)

		r.Get("/account/authenticators", s.handleListAuthenticators)
		r.Get("/account/authenticators/totp", s.handleGetTOTP)
		r.Post("/account/authenticators/totp", s.handleActivateTOTP)
		r.Delete("/account/authenticators/totp", s.handleDeactivateTOTP)
		r.Get("/account/authenticators/recovery-codes", s.handleGetRecoveryCodes)
		r.Post("/account/authenticators/recovery-codes", s.handleRegenerateRecoveryCodes)
		r.Get("/account/authenticators/webauthn", s.handleListWebAuthn)
		r.Delete("/account/authenticators/webauthn", s.handleDeleteWebAuthn)
	})

	return r
}

// ---- envelope helpers ----

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorEnvelope struct {
	Status int                 `json:"status"`
	Errors []client.FieldError `json:"errors"`
}

func writeErrors(w http.ResponseWriter, status int, errs ...client.FieldError) {
	writeJSON(w, status, errorEnvelope{Status: status, Errors: errs})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErrors(w, http.StatusBadRequest, client.FieldError{
			Message: "invalid request body", Code: "invalid_body",
		})
		return false
	}
	return true
}

func userPayload(u *user) *client.User {
	return &client.User{
		ID:       u.id,
		Display:  u.primaryEmail(),
		Email:    u.primaryEmail(),
		Username: u.username,
	}
}

// authedEnvelope is the authenticated session state, carrying a rotated
// token when rotation produced one.
func authedEnvelope(sess *session, rotated string) client.AuthResponse {
	return client.AuthResponse{
		Status: http.StatusOK,
		Data: client.AuthData{
			User: userPayload(sess.user),
			Methods: []client.AuthenticationMethod{
				{"method": "password", "at": sess.createdAt.Unix()},
			},
		},
		Meta: client.Meta{IsAuthenticated: true, SessionToken: rotated},
	}
}

func pendingEnvelope(flows ...client.Flow) client.AuthResponse {
	return client.AuthResponse{
		Status: http.StatusUnauthorized,
		Data:   client.AuthData{Flows: flows},
		Meta:   client.Meta{IsAuthenticated: false},
	}
}

func goneEnvelope() client.AuthResponse {
	return client.AuthResponse{
		Status: http.StatusGone,
		Meta:   client.Meta{IsAuthenticated: false},
	}
}

var anonymousFlows = []client.Flow{
	{ID: "login"},
	{ID: "signup"},
}

// setSessionCookie mirrors the cookie transport used by browser clients.
func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "sessiontoken",
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
}

// requireAuth resolves the request's authenticated session, answering 410
// for expired tokens and a pending-flows 401 otherwise. Returns nil when
// the request was already answered.
func (s *Server) requireAuthLocked(w http.ResponseWriter, r *http.Request) *session {
	sess, gone := s.currentSessionLocked(r)
	if gone {
		writeJSON(w, http.StatusGone, goneEnvelope())
		return nil
	}
	if sess == nil || sess.pendingMFA {
		writeJSON(w, http.StatusUnauthorized, pendingEnvelope(anonymousFlows...))
		return nil
	}
	return sess
}

// ---- CSRF ----

func (s *Server) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.csrfOutage {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	token := uuid.NewString()
	s.issuedCSRF[token] = true
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		s.mu.Lock()
		enforce := s.requireCSRF
		ok := s.issuedCSRF[r.Header.Get("X-CSRFToken")]
		s.mu.Unlock()
		if enforce && !ok {
			writeErrors(w, http.StatusForbidden, client.FieldError{
				Message: "CSRF token missing or invalid", Code: "csrf_failed",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ---- configuration ----

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	var cfg client.Configuration
	cfg.Account.IsOpenForSignup = true
	cfg.Account.AuthenticationMethod = "email"
	cfg.Account.LoginByCodeEnabled = true
	cfg.MFA = &struct {
		SupportedTypes      []string `json:"supported_types"`
		PasskeyLoginEnabled bool     `json:"passkey_login_enabled,omitempty"`
	}{
		SupportedTypes:      []string{"totp", "recovery_codes", "webauthn"},
		PasskeyLoginEnabled: true,
	}
	cfg.UserSessions = &struct {
		TrackActivity bool `json:"track_activity"`
	}{TrackActivity: true}
	writeJSON(w, http.StatusOK, client.ConfigurationResponse{
		Status: http.StatusOK,
		Data:   cfg,
	})
}

// ---- core auth ----

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, gone := s.currentSessionLocked(r)
	if gone {
		writeJSON(w, http.StatusGone, goneEnvelope())
		return
	}
	if sess == nil {
		writeJSON(w, http.StatusUnauthorized, pendingEnvelope(anonymousFlows...))
		return
	}
	if sess.pendingMFA {
		writeJSON(w, http.StatusUnauthorized, pendingEnvelope(client.Flow{
			ID: "mfa_authenticate", Types: []string{"totp"}, IsPending: true,
		}))
		return
	}
	writeJSON(w, http.StatusOK, authedEnvelope(sess, s.rotateLocked(sess)))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req client.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[req.Email]
	if !ok && req.Username != "" {
		for _, cand := range s.users {
			if cand.username == req.Username {
				u, ok = cand, true
				break
			}
		}
	}
	if !ok || u.password != req.Password {
		writeErrors(w, http.StatusBadRequest, client.FieldError{
			Message: "The email address and/or password you specified are not correct.",
			Code:    "invalid_credentials",
			Param:   "password",
		})
		return
	}

	if u.totpActive {
		sess := s.newSessionLocked(u, true)
		setSessionCookie(w, sess.token)
		resp := pendingEnvelope(client.Flow{
			ID: "mfa_authenticate", Types: []string{"totp"}, IsPending: true,
		})
		resp.Meta.SessionToken = sess.token
		writeJSON(w, http.StatusUnauthorized, resp)
		return
	}

	sess := s.newSessionLocked(u, false)
	setSessionCookie(w, sess.token)
	resp := authedEnvelope(sess, "")
	resp.Meta.SessionToken = sess.token
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req client.SignupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[req.Email]; exists {
		writeErrors(w, http.StatusBadRequest, client.FieldError{
			Message: "A user is already registered with this email address.",
			Code:    "email_taken",
			Param:   "email",
		})
		return
	}
	u := s.addUserLocked(req.Email, req.Password)
	u.username = req.Username
	// Fresh signups start unverified.
	u.emails[0].Verified = false

	sess := s.newSessionLocked(u, false)
	setSessionCookie(w, sess.token)
	resp := authedEnvelope(sess, "")
	resp.Meta.SessionToken = sess.token
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token := requestToken(r); token != "" {
		delete(s.sessions, token)
	}
	setSessionCookie(w, "")
	writeJSON(w, http.StatusUnauthorized, pendingEnvelope(anonymousFlows...))
}

func (s *Server) handleReauthenticate(w http.ResponseWriter, r *http.Request) {
	var req client.ReauthenticateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.requireAuthLocked(w, r)
	if sess == nil {
		return
	}
	if sess.user.password != req.Password {
		writeErrors(w, http.StatusBadRequest, client.FieldError{
			Message: "Incorrect password.", Code: "incorrect_password", Param: "password",
		})
		return
	}
	writeJSON(w, http.StatusOK, authedEnvelope(sess, s.rotateLocked(sess)))
}

// ---- login by code ----

func (s *Server) handleCodeRequest(w http.ResponseWriter, r *http.Request) {
	var req client.LoginCodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// A code is issued whether or not the account exists, so the
	// endpoint does not leak registration status.
	code := uuid.NewString()[:8]
	s.loginCodes[req.Email] = code
	writeJSON(w, http.StatusUnauthorized, pendingEnvelope(client.Flow{
		ID: "login_by_code", IsPending: true,
	}))
}

func (s *Server) handleCodeConfirm(w http.ResponseWriter, r *http.Request) {
	var req client.ConfirmLoginCodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for email, code := range s.loginCodes {
		if code != req.Code {
			continue
		}
		u, ok := s.users[email]
		if !ok {
			break
		}
		delete(s.loginCodes, email)
		sess := s.newSessionLocked(u, false)
		setSessionCookie(w, sess.token)
		resp := authedEnvelope(sess, "")
		resp.Meta.SessionToken = sess.token
		writeJSON(w, http.StatusOK, resp)
		return
	}
	writeErrors(w, http.StatusBadRequest, client.FieldError{
		Message: "Incorrect code.", Code: "incorrect_code", Param: "code",
	})
}

// ---- MFA ----

func (s *Server) handleMFAAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req client.MFAAuthenticateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, gone := s.currentSessionLocked(r)
	if gone {
		writeJSON(w, http.StatusGone, goneEnvelope())
		return
	}
	if sess == nil {
		writeJSON(w, http.StatusUnauthorized, pendingEnvelope(anonymousFlows...))
		return
	}
	if len(req.Code) != 6 && len(req.Code) != 8 {
		writeErrors(w, http.StatusBadRequest, client.FieldError{
			Message: "Incorrect code.", Code: "incorrect_code", Param: "code",
		})
		return
	}
	sess.pendingMFA = false
	writeJSON(w, http.StatusOK, authedEnvelope(sess, s.rotateLocked(sess)))
}

func (s *Server) handleMFATrust(w http.ResponseWriter, r *http.Request) {
	var req client.MFATrustRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.requireAuthLocked(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, authedEnvelope(sess, s.rotateLocked(sess)))
}

// handleOK acknowledges operations the fake does not model further
// (verification resends).
func (s *Server) handleOK(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, client.OKResponse{Status: http.StatusOK})
}

func (s *Server) handleProviderRedirect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeErrors(w, http.StatusBadRequest, client.FieldError{
			Message: "invalid form", Code: "invalid_form",
		})
		return
	}
	callback := r.PostFormValue("callback_url")
	if callback == "" {
		callback = "/"
	}
	http.Redirect(w, r, callback, http.StatusFound)
}

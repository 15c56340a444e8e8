package allauthtest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmcleod/headless/client"
)

func postJSON(t *testing.T, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func login(t *testing.T, s *Server, email, password string) client.AuthResponse {
	t.Helper()
	resp, body := postJSON(t, s.URL()+"/_allauth/app/v1/auth/login",
		client.LoginRequest{Email: email, Password: password}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "login: %s", body)
	var auth client.AuthResponse
	require.NoError(t, json.Unmarshal(body, &auth))
	return auth
}

func TestLoginIssuesSession(t *testing.T) {
	s := NewServer()
	defer s.Close()
	s.AddUser("alice@example.org", "s3cret")

	auth := login(t, s, "alice@example.org", "s3cret")
	require.True(t, auth.Meta.IsAuthenticated)
	require.NotEmpty(t, auth.Meta.SessionToken)
	require.NotNil(t, auth.Data.User)
	require.Equal(t, 1, s.SessionCount())
}

func TestLoginWrongPassword(t *testing.T) {
	s := NewServer()
	defer s.Close()
	s.AddUser("alice@example.org", "s3cret")

	resp, body := postJSON(t, s.URL()+"/_allauth/app/v1/auth/login",
		client.LoginRequest{Email: "alice@example.org", Password: "nope"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var env struct {
		Status int                 `json:"status"`
		Errors []client.FieldError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(body, &env))
	require.Len(t, env.Errors, 1)
	require.Equal(t, "invalid_credentials", env.Errors[0].Code)
}

func TestExpiredSessionAnswers410(t *testing.T) {
	s := NewServer()
	defer s.Close()
	s.AddUser("alice@example.org", "s3cret")
	auth := login(t, s, "alice@example.org", "s3cret")

	s.ExpireSession(auth.Meta.SessionToken)

	req, err := http.NewRequest(http.MethodGet, s.URL()+"/_allauth/app/v1/auth/session", nil)
	require.NoError(t, err)
	req.Header.Set("X-Session-Token", auth.Meta.SessionToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusGone, resp.StatusCode)
}

func TestTokenRotation(t *testing.T) {
	s := NewServer()
	defer s.Close()
	s.AddUser("alice@example.org", "s3cret")
	auth := login(t, s, "alice@example.org", "s3cret")
	s.SetRotateTokens(true)

	req, err := http.NewRequest(http.MethodGet, s.URL()+"/_allauth/app/v1/auth/session", nil)
	require.NoError(t, err)
	req.Header.Set("X-Session-Token", auth.Meta.SessionToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var rotated client.AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rotated))
	require.NotEmpty(t, rotated.Meta.SessionToken)
	require.NotEqual(t, auth.Meta.SessionToken, rotated.Meta.SessionToken)

	// The old token is dead now.
	req2, err := http.NewRequest(http.MethodGet, s.URL()+"/_allauth/app/v1/auth/session", nil)
	require.NoError(t, err)
	req2.Header.Set("X-Session-Token", auth.Meta.SessionToken)
	resp2, err := http.DefaultClient.Do(req2)
	require.NoError(t, err)
	resp2.Body.Close()
	require.Equal(t, http.StatusGone, resp2.StatusCode)
}

func TestCSRFOutage(t *testing.T) {
	s := NewServer()
	defer s.Close()
	s.SetCSRFOutage(true)

	resp, err := http.Get(s.URL() + CSRFPath)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestRequireCSRFRejectsUnadorned(t *testing.T) {
	s := NewServer()
	defer s.Close()
	s.AddUser("alice@example.org", "s3cret")
	s.SetRequireCSRF(true)

	resp, body := postJSON(t, s.URL()+"/_allauth/browser/v1/auth/login",
		client.LoginRequest{Email: "alice@example.org", Password: "s3cret"}, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	var env struct {
		Errors []client.FieldError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(body, &env))
	require.Len(t, env.Errors, 1)
	require.Equal(t, "csrf_failed", env.Errors[0].Code)

	// With an issued token the same request goes through.
	tokResp, err := http.Get(s.URL() + CSRFPath)
	require.NoError(t, err)
	var tok struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(tokResp.Body).Decode(&tok))
	tokResp.Body.Close()

	resp2, _ := postJSON(t, s.URL()+"/_allauth/browser/v1/auth/login",
		client.LoginRequest{Email: "alice@example.org", Password: "s3cret"},
		map[string]string{"X-CSRFToken": tok.Token})
	require.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestPendingMFAGatesAccount(t *testing.T) {
	s := NewServer()
	defer s.Close()
	s.AddUser("alice@example.org", "s3cret")
	s.EnableTOTP("alice@example.org")

	resp, body := postJSON(t, s.URL()+"/_allauth/app/v1/auth/login",
		client.LoginRequest{Email: "alice@example.org", Password: "s3cret"}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var auth client.AuthResponse
	require.NoError(t, json.Unmarshal(body, &auth))
	require.False(t, auth.Meta.IsAuthenticated)
	require.NotEmpty(t, auth.Meta.SessionToken)
	require.Len(t, auth.Data.Flows, 1)
	require.Equal(t, "mfa_authenticate", auth.Data.Flows[0].ID)

	// The pending session cannot read account resources.
	req, err := http.NewRequest(http.MethodGet, s.URL()+"/_allauth/app/v1/account/email", nil)
	require.NoError(t, err)
	req.Header.Set("X-Session-Token", auth.Meta.SessionToken)
	gated, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	gated.Body.Close()
	require.Equal(t, http.StatusUnauthorized, gated.StatusCode)

	// Completing the second factor unlocks it.
	resp2, _ := postJSON(t, s.URL()+"/_allauth/app/v1/auth/2fa/authenticate",
		client.MFAAuthenticateRequest{Code: "123456"},
		map[string]string{"X-Session-Token": auth.Meta.SessionToken})
	require.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestOpenAPIServed(t *testing.T) {
	s := NewServer()
	defer s.Close()

	resp, err := http.Get(s.URL() + "/openapi.yaml")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(data), "/auth/session")
}

package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/headless/allauthtest"
	"github.com/jmcleod/headless/cache"
	"github.com/jmcleod/headless/client"
)

func TestEmailAddressLifecycle(t *testing.T) {
	s := allauthtest.NewServer()
	defer s.Close()
	s.AddUser("alice@example.org", "s3cret")

	c := newAppClient(t, s)
	mustLogin(t, c, "alice@example.org", "s3cret")
	ctx := context.Background()

	added, err := c.AddEmailAddress(ctx, client.EmailAddressRequest{Email: "alt@example.org"})
	require.NoError(t, err)
	require.Len(t, added.Data, 2)

	// The mutation replaced the cached list wholesale; the read is
	// served without touching the network (the server state could not
	// have diverged in between).
	store := c.Cache().Cache()
	require.Equal(t, cache.Fresh, store.Get(cache.KeyEmails).Freshness)
	require.Equal(t, cache.Stale, store.Get(cache.KeyAuthStatus).Freshness,
		"auth state embeds email-derived data")

	listed, err := c.ListEmailAddresses(ctx)
	require.NoError(t, err)
	require.Equal(t, added.Data, listed.Data)

	// An unverified address cannot become primary.
	_, err = c.ChangePrimaryEmailAddress(ctx, client.EmailPrimaryRequest{Email: "alt@example.org"})
	apiErr, ok := client.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "unverified_primary_email", apiErr.Errors[0].Code)

	// Verify it through the emailed key, then promote it.
	key := s.IssueVerificationKey("alt@example.org")
	info, err := c.GetEmailVerificationInfo(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "alt@example.org", info.Data.Email)

	_, err = c.VerifyEmail(ctx, client.EmailVerificationRequest{Key: key})
	require.NoError(t, err)

	promoted, err := c.ChangePrimaryEmailAddress(ctx, client.EmailPrimaryRequest{Email: "alt@example.org"})
	require.NoError(t, err)
	for _, e := range promoted.Data {
		assert.Equal(t, e.Email == "alt@example.org", e.Primary)
	}

	// The old primary is removable now.
	removed, err := c.RemoveEmailAddress(ctx, client.EmailAddressRequest{Email: "alice@example.org"})
	require.NoError(t, err)
	require.Len(t, removed.Data, 1)
}

func TestRemovePrimaryEmailRejected(t *testing.T) {
	s := allauthtest.NewServer()
	defer s.Close()
	s.AddUser("alice@example.org", "s3cret")

	c := newAppClient(t, s)
	mustLogin(t, c, "alice@example.org", "s3cret")

	_, err := c.RemoveEmailAddress(context.Background(), client.EmailAddressRequest{Email: "alice@example.org"})
	apiErr, ok := client.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "primary_email", apiErr.Errors[0].Code)
}

func TestPhoneNumberLifecycle(t *testing.T) {
	s := allauthtest.NewServer()
	defer s.Close()
	s.AddUser("alice@example.org", "s3cret")

	c := newAppClient(t, s)
	mustLogin(t, c, "alice@example.org", "s3cret")
	ctx := context.Background()

	empty, err := c.GetPhoneNumber(ctx)
	require.NoError(t, err)
	require.Empty(t, empty.Data)

	updated, err := c.UpdatePhoneNumber(ctx, "+31612345678")
	require.NoError(t, err)
	require.Len(t, updated.Data, 1)
	assert.Equal(t, "+31612345678", updated.Data[0].Phone)
	assert.False(t, updated.Data[0].Verified)

	_, err = c.VerifyPhone(ctx, client.PhoneVerificationRequest{Code: "424242"})
	require.NoError(t, err)

	store := c.Cache().Cache()
	require.Equal(t, cache.Fresh, store.Get(cache.KeyPhone).Freshness)

	_, err = c.RemovePhoneNumber(ctx)
	require.NoError(t, err)

	// The cached entry is an explicit "no phone number", not a gap.
	e := store.Get(cache.KeyPhone)
	require.Equal(t, cache.Fresh, e.Freshness)
	require.Nil(t, e.Value)
}

func TestPasswordResetFlow(t *testing.T) {
	s := allauthtest.NewServer()
	defer s.Close()
	s.AddUser("alice@example.org", "s3cret")

	c := newAppClient(t, s)
	ctx := context.Background()

	_, err := c.RequestPassword(ctx, client.PasswordResetRequest{Email: "alice@example.org"})
	require.NoError(t, err)

	key := s.LastResetKey("alice@example.org")
	require.NotEmpty(t, key)

	info, err := c.GetPasswordResetInfo(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.org", info.Data.User.Email)

	resp, err := c.ResetPassword(ctx, client.PasswordResetConfirmRequest{Key: key, Password: "n3wpass"})
	require.NoError(t, err)
	require.True(t, resp.Authenticated(), "reset establishes a session directly")

	// A consumed key is dead.
	_, err = c.ResetPassword(ctx, client.PasswordResetConfirmRequest{Key: key, Password: "again"})
	apiErr, ok := client.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "invalid_or_expired_key", apiErr.Errors[0].Code)

	// The old password no longer logs in; the new one does.
	c2 := newAppClient(t, s)
	_, err = c2.Login(ctx, client.LoginRequest{Email: "alice@example.org", Password: "s3cret"})
	require.Error(t, err)
	mustLogin(t, c2, "alice@example.org", "n3wpass")
}

func TestChangePassword(t *testing.T) {
	s := allauthtest.NewServer()
	defer s.Close()
	s.AddUser("alice@example.org", "s3cret")

	c := newAppClient(t, s)
	mustLogin(t, c, "alice@example.org", "s3cret")
	ctx := context.Background()

	_, err := c.ChangePassword(ctx, client.PasswordChangeRequest{
		CurrentPassword: "wrong",
		NewPassword:     "n3wpass",
	})
	apiErr, ok := client.AsAPIError(err)
	require.True(t, ok)
	assert.NotEmpty(t, apiErr.FieldErrors("current_password"))

	_, err = c.ChangePassword(ctx, client.PasswordChangeRequest{
		CurrentPassword: "s3cret",
		NewPassword:     "n3wpass",
	})
	require.NoError(t, err)
}

func TestReauthenticate(t *testing.T) {
	s := allauthtest.NewServer()
	defer s.Close()
	s.AddUser("alice@example.org", "s3cret")

	c := newAppClient(t, s)
	mustLogin(t, c, "alice@example.org", "s3cret")

	resp, err := c.Reauthenticate(context.Background(), client.ReauthenticateRequest{Password: "s3cret"})
	require.NoError(t, err)
	require.True(t, resp.Authenticated())
}

func TestLoginByCode(t *testing.T) {
	s := allauthtest.NewServer()
	defer s.Close()
	s.AddUser("alice@example.org", "s3cret")

	c := newAppClient(t, s)
	ctx := context.Background()

	pending, err := c.RequestLoginCode(ctx, client.LoginCodeRequest{Email: "alice@example.org"})
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, pending.Status)

	code := s.LastLoginCode("alice@example.org")
	require.NotEmpty(t, code)

	resp, err := c.ConfirmLoginCode(ctx, client.ConfirmLoginCodeRequest{Code: code})
	require.NoError(t, err)
	require.True(t, resp.Authenticated())
	require.NotEmpty(t, c.Store().SessionToken())
}

func TestSignup(t *testing.T) {
	s := allauthtest.NewServer()
	defer s.Close()

	c := newAppClient(t, s)
	resp, err := c.Signup(context.Background(), client.SignupRequest{
		Email:    "new@example.org",
		Password: "s3cret",
	})
	require.NoError(t, err)
	require.True(t, resp.Authenticated())

	emails, err := c.ListEmailAddresses(context.Background())
	require.NoError(t, err)
	require.Len(t, emails.Data, 1)
	assert.False(t, emails.Data[0].Verified, "fresh signups start unverified")
}

func TestProviderAccounts(t *testing.T) {
	s := allauthtest.NewServer()
	defer s.Close()

	c := newAppClient(t, s)
	ctx := context.Background()

	resp, err := c.ProviderToken(ctx, client.ProviderTokenRequest{
		Provider: "google",
		Token:    client.ProviderToken{ClientID: "cid", IDToken: "tok"},
	})
	require.NoError(t, err)
	require.True(t, resp.Authenticated())

	accounts, err := c.ListProviderAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts.Data, 1)
	assert.Equal(t, "google", accounts.Data[0].Provider.ID)

	remaining, err := c.DisconnectProviderAccount(ctx, client.ProviderDisconnectRequest{
		Provider: "google",
		Account:  accounts.Data[0].UUID,
	})
	require.NoError(t, err)
	require.Empty(t, remaining.Data)

	store := c.Cache().Cache()
	require.Equal(t, cache.Fresh, store.Get(cache.KeyProviders).Freshness)
}

func TestProviderRedirectForm(t *testing.T) {
	s := allauthtest.NewServer()
	defer s.Close()

	// Redirect flows are browser-scoped on the wire even for app
	// clients.
	c := newAppClient(t, s)
	form := c.ProviderRedirectForm("github", "https://app.example.org/callback", "")
	assert.Equal(t, s.URL()+"/_allauth/browser/v1/auth/provider/redirect", form.URL)
	assert.Equal(t, http.MethodPost, form.Method)
	assert.Equal(t, "github", form.Fields["provider"])
	assert.Equal(t, "login", form.Fields["process"])
}

func TestTOTPLifecycle(t *testing.T) {
	s := allauthtest.NewServer()
	defer s.Close()
	s.AddUser("alice@example.org", "s3cret")

	c := newAppClient(t, s)
	mustLogin(t, c, "alice@example.org", "s3cret")
	ctx := context.Background()

	// Not provisioned yet: a 404 carrying the secret, as data.
	resp, err := c.GetTOTPAuthenticator(ctx)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.Status)
	require.NotEmpty(t, resp.Meta.Secret)

	activated, err := c.ActivateTOTP(ctx, client.TOTPActivateRequest{Code: "123456"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, activated.Status)
	require.NotNil(t, activated.Data)

	// The activation staled the TOTP entry, so this re-fetches.
	resp, err = c.GetTOTPAuthenticator(ctx)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)

	list, err := c.ListAuthenticators(ctx)
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "totp", list.Data[0].Type)

	_, err = c.DeactivateTOTP(ctx)
	require.NoError(t, err)

	list, err = c.ListAuthenticators(ctx)
	require.NoError(t, err)
	require.Empty(t, list.Data)
}

func TestRecoveryCodes(t *testing.T) {
	s := allauthtest.NewServer()
	defer s.Close()
	s.AddUser("alice@example.org", "s3cret")

	c := newAppClient(t, s)
	mustLogin(t, c, "alice@example.org", "s3cret")
	ctx := context.Background()

	first, err := c.RegenerateRecoveryCodes(ctx)
	require.NoError(t, err)
	require.NotNil(t, first.Data)
	require.Len(t, first.Data.UnusedCodes, 10)

	listed, err := c.ListRecoveryCodes(ctx)
	require.NoError(t, err)
	require.Equal(t, first.Data.UnusedCodes, listed.Data.UnusedCodes)

	second, err := c.RegenerateRecoveryCodes(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first.Data.UnusedCodes, second.Data.UnusedCodes)
}

func TestWebAuthnCredentials(t *testing.T) {
	s := allauthtest.NewServer()
	defer s.Close()
	s.AddUser("alice@example.org", "s3cret")

	c := newAppClient(t, s)
	mustLogin(t, c, "alice@example.org", "s3cret")
	ctx := context.Background()

	opts, err := c.GetWebAuthnSignupOptions(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, opts.Data.CreationOptions.Response.Challenge)

	cred := json.RawMessage(`{"id":"abc","type":"public-key"}`)
	resp, err := c.WebAuthnSignup(ctx, client.WebAuthnSignupRequest{Name: "laptop", Credential: cred})
	require.NoError(t, err)
	require.True(t, resp.Authenticated())

	list, err := c.ListWebAuthnCredentials(ctx)
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "laptop", list.Data[0].Name)

	remaining, err := c.DeleteWebAuthnCredential(ctx, list.Data[0].ID)
	require.NoError(t, err)
	require.Empty(t, remaining.Data)

	store := c.Cache().Cache()
	require.Equal(t, cache.Stale, store.Get(cache.KeyWebAuthn).Freshness)
	require.Equal(t, cache.Stale, store.Get(cache.KeyAuthenticators).Freshness)
}

func TestSessionManagement(t *testing.T) {
	s := allauthtest.NewServer()
	defer s.Close()
	s.AddUser("alice@example.org", "s3cret")

	// Two concurrent sessions for the same account.
	c1 := newAppClient(t, s)
	mustLogin(t, c1, "alice@example.org", "s3cret")
	c2 := newAppClient(t, s)
	mustLogin(t, c2, "alice@example.org", "s3cret")

	ctx := context.Background()
	sessions, err := c1.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions.Data, 2)

	var otherID int64
	for _, sess := range sessions.Data {
		if !sess.IsCurrent {
			otherID = sess.ID
		}
	}
	require.NotZero(t, otherID)

	remaining, err := c1.DeleteSessions(ctx, otherID)
	require.NoError(t, err)
	require.Len(t, remaining.Data, 1)
	require.True(t, remaining.Data[0].IsCurrent)
	require.Equal(t, 1, s.SessionCount())
}

func TestDeleteSessionsEmptyEndsCurrent(t *testing.T) {
	s := allauthtest.NewServer()
	defer s.Close()
	s.AddUser("alice@example.org", "s3cret")

	c := newAppClient(t, s)
	mustLogin(t, c, "alice@example.org", "s3cret")

	resp, err := c.DeleteSessions(context.Background())
	require.NoError(t, err)
	require.NotNil(t, resp)

	// No ids means the current session: the full logout effect applies.
	require.Equal(t, 0, s.SessionCount())
	require.Empty(t, c.Store().SessionToken())

	store := c.Cache().Cache()
	e := store.Get(cache.KeyAuthStatus)
	require.Equal(t, cache.Fresh, e.Freshness)
	status, ok := e.Value.(*client.AuthResponse)
	require.True(t, ok)
	require.False(t, status.Authenticated())
}

func TestConfigurationCached(t *testing.T) {
	s := allauthtest.NewServer()
	defer s.Close()
	s.AddUser("alice@example.org", "s3cret")

	transport := newCountingTransport()
	c := newAppClient(t, s, client.WithHTTPClient(&http.Client{Transport: transport}))
	ctx := context.Background()

	cfg, err := c.GetConfiguration(ctx)
	require.NoError(t, err)
	require.True(t, cfg.Data.Account.IsOpenForSignup)
	require.NotNil(t, cfg.Data.MFA)

	_, err = c.GetConfiguration(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, transport.count("/_allauth/app/v1/config"))

	// Configuration survives a sign-in/sign-out cycle: only a full
	// sign-out clears it.
	mustLogin(t, c, "alice@example.org", "s3cret")
	_, err = c.GetConfiguration(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, transport.count("/_allauth/app/v1/config"))

	_, err = c.Logout(ctx)
	require.NoError(t, err)
	_, err = c.GetConfiguration(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, transport.count("/_allauth/app/v1/config"))
}

func TestEmailVerificationResend(t *testing.T) {
	s := allauthtest.NewServer()
	defer s.Close()
	s.AddUser("alice@example.org", "s3cret")

	c := newAppClient(t, s)
	mustLogin(t, c, "alice@example.org", "s3cret")
	ctx := context.Background()

	_, err := c.RequestEmailVerification(ctx, client.EmailAddressRequest{Email: "alice@example.org"})
	require.NoError(t, err)

	_, err = c.ResendEmailVerification(ctx)
	require.NoError(t, err)

	_, err = c.ResendPhoneVerification(ctx)
	require.NoError(t, err)
}

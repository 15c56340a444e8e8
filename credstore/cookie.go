package credstore

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultSessionCookieName matches the server's session token cookie.
	DefaultSessionCookieName = "sessiontoken"
	// DefaultCSRFCookieName matches the server's CSRF cookie.
	DefaultCSRFCookieName = "csrftoken"
)

// Cookie reads and writes credentials as cookies in an http.CookieJar
// scoped to the API origin. There is no in-memory copy: every read parses
// the jar, so a cookie set by the server through a response Set-Cookie
// header is observed immediately.
//
// The Secure attribute is derived from the API origin's scheme.
type Cookie struct {
	jar         http.CookieJar
	origin      *url.URL
	secure      bool
	sessionName string
	csrfName    string
}

var _ Store = (*Cookie)(nil)

// CookieOption configures a Cookie store.
type CookieOption func(*Cookie)

// WithSessionCookieName overrides the session token cookie name.
func WithSessionCookieName(name string) CookieOption {
	return func(c *Cookie) {
		c.sessionName = name
	}
}

// WithCSRFCookieName overrides the CSRF token cookie name.
func WithCSRFCookieName(name string) CookieOption {
	return func(c *Cookie) {
		c.csrfName = name
	}
}

// NewCookie creates a cookie-backed store over jar for the given API
// origin URL.
func NewCookie(jar http.CookieJar, apiURL string, opts ...CookieOption) (*Cookie, error) {
	origin, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("parsing API URL: %w", err)
	}
	if origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("API URL %q must be absolute", apiURL)
	}
	c := &Cookie{
		jar:         jar,
		origin:      origin,
		secure:      origin.Scheme == "https",
		sessionName: DefaultSessionCookieName,
		csrfName:    DefaultCSRFCookieName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Cookie) SessionToken() string {
	return c.get(c.sessionName)
}

func (c *Cookie) SetSessionToken(token string) {
	c.set(c.sessionName, token)
}

func (c *Cookie) CSRFToken() string {
	return c.get(c.csrfName)
}

func (c *Cookie) SetCSRFToken(token string) {
	c.set(c.csrfName, token)
}

func (c *Cookie) get(name string) string {
	if c == nil || c.jar == nil {
		return ""
	}
	for _, ck := range c.jar.Cookies(c.origin) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func (c *Cookie) set(name, value string) {
	if c == nil || c.jar == nil {
		return
	}
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		ck.Expires = time.Unix(0, 0)
		ck.MaxAge = -1
	}
	c.jar.SetCookies(c.origin, []*http.Cookie{ck})
}

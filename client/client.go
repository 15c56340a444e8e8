// Package client talks to a django-allauth headless API server. It owns
// request construction, credential header injection, CSRF token
// pre-fetching, server-driven session token rotation, session expiry
// detection, and the cache bookkeeping that keeps derived authentication
// state consistent after every mutating call.
package client

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"

	"github.com/jmcleod/headless/cache"
	"github.com/jmcleod/headless/credstore"
)

// Client is a configured connection to one identity server. Construct it
// once at application start and share it; all methods are safe for
// concurrent use.
type Client struct {
	httpClient *http.Client
	store      credstore.Store
	coord      *cache.Coordinator
	logger     *slog.Logger

	clientType  ClientType
	baseURL     string
	clientPath  string // {base}/_allauth/{browser|app}/v1
	browserPath string // fixed browser scope for browser-only endpoints
	csrfURL     string // empty when no CSRF endpoint is configured
}

// Option configures a Client.
type Option func(*Client)

// WithClientType selects browser or app mode. Browser mode defaults to a
// hybrid credential store over the HTTP client's cookie jar; app mode to
// a pure in-memory store.
func WithClientType(t ClientType) Option {
	return func(c *Client) {
		c.clientType = t
	}
}

// WithCSRFTokenEndpoint configures the endpoint a fresh CSRF token is
// fetched from before every mutating request. Relative endpoints are
// resolved against the base URL.
func WithCSRFTokenEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.csrfURL = endpoint
	}
}

// WithCredentialStore overrides the default credential store.
func WithCredentialStore(store credstore.Store) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithHTTPClient overrides the underlying HTTP client. The client should
// carry a cookie jar when cookie-session flows are in play. No timeout is
// imposed by the SDK; configure one here or use request contexts.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the structured logger. If not set, a JSON logger
// writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithCache shares an externally constructed cache coordinator, e.g.
// between several clients in tests.
func WithCache(coord *cache.Coordinator) Option {
	return func(c *Client) {
		c.coord = coord
	}
}

// New creates a Client for the identity server at baseURL. The URL must
// be absolute; the API path prefix is derived from the client type.
func New(baseURL string, opts ...Option) (*Client, error) {
	origin, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}

	c := &Client{
		clientType: Browser,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.clientType != Browser && c.clientType != App {
		return nil, fmt.Errorf("unknown client type %q", c.clientType)
	}
	c.clientPath = fmt.Sprintf("%s/_allauth/%s/v1", c.baseURL, c.clientType)
	c.browserPath = fmt.Sprintf("%s/_allauth/%s/v1", c.baseURL, Browser)
	if c.csrfURL != "" && !strings.Contains(c.csrfURL, "://") {
		c.csrfURL = c.baseURL + "/" + strings.TrimPrefix(c.csrfURL, "/")
	}

	if c.httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		c.httpClient = &http.Client{Jar: jar}
	}
	if c.store == nil {
		switch c.clientType {
		case App:
			c.store = credstore.NewMemory()
		default:
			if c.httpClient.Jar == nil {
				jar, err := cookiejar.New(nil)
				if err != nil {
					return nil, fmt.Errorf("creating cookie jar: %w", err)
				}
				c.httpClient.Jar = jar
			}
			cookie, err := credstore.NewCookie(c.httpClient.Jar, c.baseURL)
			if err != nil {
				return nil, err
			}
			c.store = credstore.NewHybrid(credstore.NewMemory(), cookie)
		}
	}
	if c.coord == nil {
		c.coord = cache.NewCoordinator()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return c, nil
}

// Store exposes the credential store, mainly for tests and callers that
// need to seed or inspect tokens.
func (c *Client) Store() credstore.Store {
	return c.store
}

// Cache exposes the cache coordinator so UI layers can observe entry
// freshness directly.
func (c *Client) Cache() *cache.Coordinator {
	return c.coord
}

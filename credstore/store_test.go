package credstore

import (
	"net/http/cookiejar"
	"net/url"
	"path/filepath"
	"testing"
)

// storeTests runs the round-trip suite against any Store implementation.
func storeTests(t *testing.T, store Store) {
	t.Helper()

	t.Run("EmptyBeforeFirstSet", func(t *testing.T) {
		if got := store.SessionToken(); got != "" {
			t.Fatalf("got session token %q, want empty", got)
		}
		if got := store.CSRFToken(); got != "" {
			t.Fatalf("got CSRF token %q, want empty", got)
		}
	})

	t.Run("SessionTokenRoundTrip", func(t *testing.T) {
		store.SetSessionToken("tok-abc")
		if got := store.SessionToken(); got != "tok-abc" {
			t.Fatalf("got %q, want %q", got, "tok-abc")
		}
	})

	t.Run("SessionTokenOverwrite", func(t *testing.T) {
		store.SetSessionToken("tok-1")
		store.SetSessionToken("tok-2")
		if got := store.SessionToken(); got != "tok-2" {
			t.Fatalf("got %q, want %q", got, "tok-2")
		}
	})

	t.Run("SessionTokenClear", func(t *testing.T) {
		store.SetSessionToken("tok-clear")
		store.SetSessionToken("")
		if got := store.SessionToken(); got != "" {
			t.Fatalf("got %q, want empty after clear", got)
		}
	})

	t.Run("CSRFTokenRoundTrip", func(t *testing.T) {
		store.SetCSRFToken("csrf-xyz")
		if got := store.CSRFToken(); got != "csrf-xyz" {
			t.Fatalf("got %q, want %q", got, "csrf-xyz")
		}
		store.SetCSRFToken("")
		if got := store.CSRFToken(); got != "" {
			t.Fatalf("got %q, want empty after clear", got)
		}
	})
}

func newTestCookie(t *testing.T, apiURL string) *Cookie {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewCookie(jar, apiURL)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestMemoryStore(t *testing.T) {
	storeTests(t, NewMemory())
}

func TestMemoryStoreZeroValue(t *testing.T) {
	var m Memory
	if got := m.SessionToken(); got != "" {
		t.Fatalf("zero value returned %q", got)
	}
	m.SetSessionToken("tok")
	if got := m.SessionToken(); got != "tok" {
		t.Fatalf("got %q, want tok", got)
	}
}

func TestCookieStore(t *testing.T) {
	storeTests(t, newTestCookie(t, "http://example.com"))
}

func TestCookieStoreCustomNames(t *testing.T) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewCookie(jar, "http://example.com",
		WithSessionCookieName("my_session"),
		WithCSRFCookieName("my_csrf"))
	if err != nil {
		t.Fatal(err)
	}
	c.SetSessionToken("tok")

	origin, _ := url.Parse("http://example.com")
	var found bool
	for _, ck := range jar.Cookies(origin) {
		if ck.Name == "my_session" && ck.Value == "tok" {
			found = true
		}
		if ck.Name == DefaultSessionCookieName {
			t.Fatalf("token written under default name despite override")
		}
	}
	if !found {
		t.Fatal("token not stored under custom cookie name")
	}
}

func TestCookieStoreRejectsRelativeURL(t *testing.T) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewCookie(jar, "/api"); err == nil {
		t.Fatal("expected error for relative API URL")
	}
}

func TestHybridStore(t *testing.T) {
	storeTests(t, NewHybrid(NewMemory(), newTestCookie(t, "http://example.com")))
}

func TestHybridWritesBothPaths(t *testing.T) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	cookie, err := NewCookie(jar, "http://example.com")
	if err != nil {
		t.Fatal(err)
	}
	mem := NewMemory()
	h := NewHybrid(mem, cookie)

	h.SetSessionToken("tok-both")

	if got := mem.SessionToken(); got != "tok-both" {
		t.Fatalf("memory path: got %q", got)
	}
	origin, _ := url.Parse("http://example.com")
	var cookieValue string
	for _, ck := range jar.Cookies(origin) {
		if ck.Name == DefaultSessionCookieName {
			cookieValue = ck.Value
		}
	}
	if cookieValue != "tok-both" {
		t.Fatalf("cookie path: got %q", cookieValue)
	}
}

func TestHybridFallsBackToCookie(t *testing.T) {
	cookie := newTestCookie(t, "http://example.com")
	cookie.SetSessionToken("cookie-only")

	h := NewHybrid(NewMemory(), cookie)
	if got := h.SessionToken(); got != "cookie-only" {
		t.Fatalf("got %q, want cookie-only", got)
	}
}

func TestBoltPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.db")
	secret := []byte("test-secret")

	b, err := NewBoltFromFile(path, secret, nil)
	if err != nil {
		t.Fatal(err)
	}

	m := NewMemory(WithPersistence(b))
	storeTests(t, m)

	m.SetSessionToken("persisted-tok")
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopen with the same secret: the token survives the restart.
	b2, err := NewBoltFromFile(path, secret, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b2.Close()

	m2 := NewMemory(WithPersistence(b2))
	if got := m2.SessionToken(); got != "persisted-tok" {
		t.Fatalf("got %q after restart, want persisted-tok", got)
	}

	// Clearing removes the persisted record too.
	m2.SetSessionToken("")
	token, err := b2.LoadSessionToken()
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		t.Fatalf("got %q, want empty after clear", token)
	}
}

func TestBoltPersistenceWrongSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.db")

	b, err := NewBoltFromFile(path, []byte("secret-a"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.SaveSessionToken("sealed-tok"); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	b2, err := NewBoltFromFile(path, []byte("secret-b"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b2.Close()

	token, err := b2.LoadSessionToken()
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		t.Fatalf("token unsealed with wrong secret: %q", token)
	}
}

func TestBoltRejectsEmptySecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.db")
	if _, err := NewBoltFromFile(path, nil, nil); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

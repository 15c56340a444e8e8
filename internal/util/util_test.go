package util

import (
	"bytes"
	"testing"
)

func TestSealOpenAES(t *testing.T) {
	key, err := RandomBytes(AESKeySize)
	if err != nil {
		t.Fatal(err)
	}
	aad := []byte("headless:test")
	plaintext := []byte("session-token-value")

	sealed, err := SealAES(plaintext, key, aad)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Fatal("sealed data contains plaintext")
	}

	opened, err := OpenAES(sealed, key, aad)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("got %q, want %q", opened, plaintext)
	}
}

func TestOpenAESWrongKey(t *testing.T) {
	key1, _ := RandomBytes(AESKeySize)
	key2, _ := RandomBytes(AESKeySize)
	sealed, err := SealAES([]byte("secret"), key1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := OpenAES(sealed, key2, nil); err == nil {
		t.Fatal("expected error with wrong key")
	}
}

func TestOpenAESWrongAAD(t *testing.T) {
	key, _ := RandomBytes(AESKeySize)
	sealed, err := SealAES([]byte("secret"), key, []byte("aad-1"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := OpenAES(sealed, key, []byte("aad-2")); err == nil {
		t.Fatal("expected error with wrong AAD")
	}
}

func TestSealAESBadKeySize(t *testing.T) {
	if _, err := SealAES([]byte("x"), []byte("short"), nil); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestHKDFDeterministic(t *testing.T) {
	seed := []byte("secret-seed")
	k1, err := HKDF(seed, nil, []byte("info"))
	if err != nil {
		t.Fatal(err)
	}
	k2, err := HKDF(seed, nil, []byte("info"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatal("same inputs must derive the same key")
	}
	if len(k1) != HKDFKeyLength {
		t.Fatalf("got key length %d, want %d", len(k1), HKDFKeyLength)
	}

	k3, err := HKDF(seed, nil, []byte("other-info"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(k1, k3) {
		t.Fatal("different info must derive different keys")
	}
}

func TestRandomChars(t *testing.T) {
	s, err := RandomChars(16)
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 16 {
		t.Fatalf("got length %d, want 16", len(s))
	}
	for _, r := range s {
		found := false
		for _, allowed := range allowedRandomChars {
			if r == allowed {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("character %q outside allowed alphabet", r)
		}
	}
}

func TestWipeBytes(t *testing.T) {
	b := []byte{1, 2, 3}
	WipeBytes(b)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not wiped: %d", i, v)
		}
	}
}

// internal/secrets/cipher_test.go
//
// Round-trip and format-probe tests for the credential cipher.
package secrets

import (
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	c, err := New("unit-test-master-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []string{
		"",
		"s3cr3t",
		"pässwörd-ünïcode-日本語",
		strings.Repeat("x", 4096),
	}
	for _, want := range cases {
		ct, err := c.Encrypt(want)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", want, err)
		}
		got, err := c.Decrypt(ct)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if got != want {
			t.Fatalf("round trip: got %q, want %q", got, want)
		}
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	c, _ := New("unit-test-master-key")
	a, _ := c.Encrypt("same plaintext")
	b, _ := c.Encrypt("same plaintext")
	if a == b {
		t.Fatal("two encryptions of the same plaintext produced identical ciphertext")
	}
}

func TestIsEncrypted(t *testing.T) {
	c, _ := New("unit-test-master-key")

	if IsEncrypted("") {
		t.Error(`IsEncrypted("") = true, want false`)
	}
	if IsEncrypted("plain-password") {
		t.Error("IsEncrypted(plain) = true, want false")
	}
	ct, _ := c.Encrypt("anything")
	if !IsEncrypted(ct) {
		t.Error("IsEncrypted(ciphertext) = false, want true")
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	c, _ := New("unit-test-master-key")

	for _, bad := range []string{
		"",
		"enc2:",
		"enc2:not-base64!!!",
		"enc2:QQ==", // too short for nonce + tag
		"plainvalue",
	} {
		if _, err := c.Decrypt(bad); err == nil {
			t.Errorf("Decrypt(%q) succeeded, want error", bad)
		}
	}

	// Wrong key must fail, not return wrong plaintext.
	ct, _ := c.Encrypt("secret")
	other, _ := New("a-different-key")
	if _, err := other.Decrypt(ct); err == nil {
		t.Error("Decrypt with wrong key succeeded")
	}
}

// internal/secrets/cipher.go
//
// Symmetric cipher for per-tenant database credentials.
//
// Context
// -------
// Tenant rows store the database password encrypted at rest.  The registry
// decrypts it just before opening the tenant pool, so plaintext secrets
// never sit in the catalog or in process dumps of catalog reads.
//
// Format
// ------
// Ciphertext is AES-256-GCM with a random nonce, prepended to the sealed
// payload, base64-encoded, and tagged with the "enc2:" prefix so that
// IsEncrypted can probe a value without attempting a decrypt.  Each call to
// Encrypt produces different ciphertext for the same plaintext; Decrypt is
// deterministic.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// prefix tags values produced by this package.  The trailing digit leaves
// room for a future format bump without breaking stored rows.
const prefix = "enc2:"

var (
	// ErrDecrypt is returned for any ciphertext that cannot be opened:
	// wrong key, truncated payload, or corrupted base64.
	ErrDecrypt = errors.New("secrets: decryption failed")

	// ErrEmptyKey is returned by New when no key material is supplied.
	ErrEmptyKey = errors.New("secrets: cipher key must not be empty")
)

// Cipher seals and opens short credential strings.  Safe for concurrent
// use; the underlying AEAD is stateless.
type Cipher struct {
	aead cipher.AEAD
}

// New derives a 256-bit key from the supplied key material via SHA-256 and
// returns a ready Cipher.  Hashing lets operators supply a passphrase of
// any length while the block cipher always sees exactly 32 bytes.
func New(key string) (*Cipher, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	sum := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("secrets: aes init: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: gcm init: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext and returns a prefix-tagged, base64 ciphertext.
// Empty plaintext is legal; the result still round-trips.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secrets: nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt.  Any failure is reported as
// ErrDecrypt; callers must treat it as fatal for the tenant in question and
// must not cache partial results.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	raw, ok := strings.CutPrefix(ciphertext, prefix)
	if !ok {
		return "", ErrDecrypt
	}
	sealed, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", ErrDecrypt
	}
	ns := c.aead.NonceSize()
	if len(sealed) < ns {
		return "", ErrDecrypt
	}
	plain, err := c.aead.Open(nil, sealed[:ns], sealed[ns:], nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// IsEncrypted reports whether text carries this package's format tag.  It
// is a best-effort probe only; it does not prove the payload will decrypt.
func IsEncrypted(text string) bool {
	return strings.HasPrefix(text, prefix) && len(text) > len(prefix)
}

// Package secret provides the gateway's cryptographic primitives:
// authenticated symmetric encryption for stored credentials, secure session
// token generation, identifier hashing, and constant-time comparison.
//
// Encryption uses AES-256-GCM with a fresh 96-bit random IV per call, so the
// same plaintext never encrypts to the same ciphertext twice. Decryption
// fails closed: a wrong key or a tampered ciphertext returns an error, never
// garbage.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// keySize is the AES-256 key length in bytes.
	keySize = 32
	// ivSize is the GCM nonce length in bytes (96 bits).
	ivSize = 12
	// tokenBytes is the entropy of a generated session token.
	tokenBytes = 32
)

// ErrDecryptFailed is returned when a ciphertext fails authentication,
// whether from tampering or a wrong key. The two cases are intentionally
// indistinguishable.
var ErrDecryptFailed = errors.New("secret: decryption failed")

// ErrMalformedField is returned when a stored encrypted field does not have
// the expected iv:ciphertext encoding.
var ErrMalformedField = errors.New("secret: malformed encrypted field")

// DeriveKey turns an operator-supplied secret of any length into a
// fixed-length AES-256 key. A secret that is already exactly 32 bytes is
// used as-is; anything else is hashed down (or up) with SHA-256.
func DeriveKey(raw []byte) []byte {
	if len(raw) == keySize {
		out := make([]byte, keySize)
		copy(out, raw)
		return out
	}
	sum := sha256.Sum256(raw)
	return sum[:]
}

// EncryptedField is the storage representation of one encrypted value.
type EncryptedField struct {
	IV         []byte
	Ciphertext []byte
}

// Encrypt seals plaintext under key with AES-256-GCM. The IV is freshly
// drawn from crypto/rand on every call; the authentication tag is embedded
// in the ciphertext.
func Encrypt(plaintext, key []byte) (*EncryptedField, error) {
	block, err := aes.NewCipher(DeriveKey(key))
	if err != nil {
		return nil, fmt.Errorf("secret: cipher init: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secret: gcm init: %w", err)
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("secret: iv generation: %w", err)
	}

	return &EncryptedField{
		IV:         iv,
		Ciphertext: gcm.Seal(nil, iv, plaintext, nil),
	}, nil
}

// Decrypt opens an encrypted field. Any authentication failure surfaces as
// ErrDecryptFailed.
func Decrypt(field *EncryptedField, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(DeriveKey(key))
	if err != nil {
		return nil, fmt.Errorf("secret: cipher init: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secret: gcm init: %w", err)
	}
	if len(field.IV) != gcm.NonceSize() {
		return nil, ErrMalformedField
	}
	plaintext, err := gcm.Open(nil, field.IV, field.Ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// EncodeField renders an encrypted field as "iv:ciphertext" with both parts
// independently base64-encoded. This is the form persisted in the relational
// store.
func EncodeField(field *EncryptedField) string {
	return base64.StdEncoding.EncodeToString(field.IV) + ":" +
		base64.StdEncoding.EncodeToString(field.Ciphertext)
}

// DecodeField parses the iv:ciphertext storage encoding.
func DecodeField(s string) (*EncryptedField, error) {
	iv64, ct64, ok := strings.Cut(s, ":")
	if !ok {
		return nil, ErrMalformedField
	}
	iv, err := base64.StdEncoding.DecodeString(iv64)
	if err != nil {
		return nil, ErrMalformedField
	}
	ct, err := base64.StdEncoding.DecodeString(ct64)
	if err != nil {
		return nil, ErrMalformedField
	}
	return &EncryptedField{IV: iv, Ciphertext: ct}, nil
}

// EncryptString seals a string value and returns its storage encoding.
func EncryptString(plaintext string, key []byte) (string, error) {
	field, err := Encrypt([]byte(plaintext), key)
	if err != nil {
		return "", err
	}
	return EncodeField(field), nil
}

// DecryptString reverses EncryptString.
func DecryptString(encoded string, key []byte) (string, error) {
	field, err := DecodeField(encoded)
	if err != nil {
		return "", err
	}
	plaintext, err := Decrypt(field, key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// NewToken generates an unguessable session token from the secure random
// source, encoded with the URL-safe alphabet (no '+', '/', or '=').
func NewToken() (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("secret: token generation: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashID produces a hex-encoded SHA-256 digest for identifier derivation
// (cache keys, non-secret fingerprints). Not for password storage.
func HashID(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ConstantTimeEqual compares two secret strings in time independent of
// where the first mismatch occurs.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Package crypto provides AES-256-GCM encryption for vendor API keys and
// one-way hashing for bot tokens.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const prefix = "aes-gcm:"

// MasterKeySize is the length of the AES-256 master key in bytes.
const MasterKeySize = 32

var (
	// ErrDecrypt is returned for any ciphertext that cannot be authenticated
	// under the cipher's master key: wrong key, tampering, or a malformed value.
	ErrDecrypt = errors.New("decrypt failed: invalid key or corrupted data")

	// ErrInvalidMasterKey is returned when the master key input cannot be
	// turned into 32 key bytes.
	ErrInvalidMasterKey = errors.New("master key must be 32 bytes (hex-encoded 64 chars, base64 44 chars, or raw 32 bytes)")
)

// MasterKey is the process-wide symmetric key protecting stored vendor keys.
// It is constructed once at startup and passed explicitly to NewCipher.
type MasterKey [MasterKeySize]byte

// ParseMasterKey converts the input string to a MasterKey.
// Accepts: hex-encoded (64 chars), base64-encoded (44 chars), or raw 32 bytes.
func ParseMasterKey(input string) (MasterKey, error) {
	var mk MasterKey
	b, err := DeriveKey(strings.TrimSpace(input))
	if err != nil {
		return mk, err
	}
	copy(mk[:], b)
	zero(b)
	return mk, nil
}

// GenerateMasterKey returns a fresh random master key, hex-encoded.
func GenerateMasterKey() (string, error) {
	b := make([]byte, MasterKeySize)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	defer zero(b)
	return hex.EncodeToString(b), nil
}

// Cipher seals and opens vendor key ciphertext with a single master key.
// Safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds an AES-256-GCM cipher for the given master key.
func NewCipher(key MasterKey) (*Cipher, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: gcm}, nil
}

// Encrypt seals plaintext.
// Returns "aes-gcm:" + base64(nonce + ciphertext + tag).
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	if len(plaintext) == 0 {
		return "", errors.New("encrypt: empty plaintext")
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens ciphertext produced by Encrypt. Unlike older plaintext-tolerant
// readers, any value that does not authenticate yields ErrDecrypt; the caller
// never sees garbage. The returned slice belongs to the caller, who should
// zero it once done.
func (c *Cipher) Decrypt(ciphertext string) ([]byte, error) {
	if !IsEncrypted(ciphertext) {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrDecrypt, prefix)
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, prefix))
	if err != nil {
		return nil, fmt.Errorf("%w: bad encoding", ErrDecrypt)
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize+c.aead.Overhead() {
		return nil, fmt.Errorf("%w: payload too short", ErrDecrypt)
	}

	plaintext, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// Encrypt encrypts plaintext with the given master key string.
// Convenience wrapper for CLI paths that hold the key as configured text.
func Encrypt(plaintext, key string) (string, error) {
	mk, err := ParseMasterKey(key)
	if err != nil {
		return "", err
	}
	c, err := NewCipher(mk)
	if err != nil {
		return "", err
	}
	return c.Encrypt([]byte(plaintext))
}

// Decrypt decrypts ciphertext produced by Encrypt with the given master key string.
func Decrypt(ciphertext, key string) (string, error) {
	mk, err := ParseMasterKey(key)
	if err != nil {
		return "", err
	}
	c, err := NewCipher(mk)
	if err != nil {
		return "", err
	}
	b, err := c.Decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	defer zero(b)
	return string(b), nil
}

// IsEncrypted returns true if the value has the "aes-gcm:" encryption prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, prefix)
}

// DeriveKey converts the input string to a 32-byte AES key.
// Accepts: hex-encoded (64 chars), base64-encoded (44 chars), or raw 32 bytes.
func DeriveKey(input string) ([]byte, error) {
	// Hex-encoded: 64 hex chars = 32 bytes
	if len(input) == 64 {
		if b, err := hex.DecodeString(input); err == nil {
			return b, nil
		}
	}

	// Base64-encoded: 44 chars = 32 bytes
	if len(input) == 44 && strings.HasSuffix(input, "=") {
		if b, err := base64.StdEncoding.DecodeString(input); err == nil && len(b) == MasterKeySize {
			return b, nil
		}
	}

	// Raw 32 bytes
	if len(input) == MasterKeySize {
		return []byte(input), nil
	}

	return nil, ErrInvalidMasterKey
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// TokenPrefix marks bot tokens issued by keyproxy so they are easy to spot in
// leaked-credential scans.
const TokenPrefix = "kpb_"

const tokenBytes = 32

// HashToken returns the hex-encoded SHA-256 digest of a bot token.
// This is the only form in which tokens are persisted.
func HashToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// VerifyToken reports whether plaintext hashes to the stored hash.
// The comparison is constant-time.
func VerifyToken(plaintext, hash string) bool {
	got := HashToken(plaintext)
	return subtle.ConstantTimeCompare([]byte(got), []byte(hash)) == 1
}

// GenerateToken returns a new random bot token.
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	defer zero(b)
	return TokenPrefix + hex.EncodeToString(b), nil
}

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// VerificationTTL is how long an e-mail verification token stays valid.
const VerificationTTL = 24 * time.Hour

// NewVerificationToken returns a random token to mail to the user and the
// sha256 hash to store. Only the hash is persisted.
func NewVerificationToken() (token, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(buf)
	return token, HashToken(token), nil
}

// HashToken returns the hex sha256 of token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tokenBytes is the raw size of session tokens and reset codes. Hex encoding
// doubles it on the wire: 64 characters.
const tokenBytes = 32

func generateHex(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewSessionToken produces an opaque session token from a cryptographically
// secure random source.
func NewSessionToken() (string, error) {
	return generateHex(tokenBytes)
}

// NewResetCode produces a password reset code. Same shape as a session token
// but never usable as one: reset codes are stored on the user record, not in
// the session set.
func NewResetCode() (string, error) {
	return generateHex(tokenBytes)
}

package auth

import (
	"encoding/hex"
	"testing"
)

func TestNewSessionToken(t *testing.T) {
	token, err := NewSessionToken()
	if err != nil {
		t.Fatalf("failed to generate session token: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(token))
	}
	if _, err := hex.DecodeString(token); err != nil {
		t.Errorf("token is not valid hex: %v", err)
	}
}

func TestNewSessionToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := NewSessionToken()
		if err != nil {
			t.Fatalf("failed to generate session token: %v", err)
		}
		if seen[token] {
			t.Fatalf("duplicate token generated: %s", token)
		}
		seen[token] = true
	}
}

func TestNewResetCode(t *testing.T) {
	code, err := NewResetCode()
	if err != nil {
		t.Fatalf("failed to generate reset code: %v", err)
	}
	if len(code) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(code))
	}
}

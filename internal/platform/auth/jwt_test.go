package auth

import (
	"testing"
	"time"

	"qrstudio/internal/platform/config"
)

func TestSessionToken(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "secret", SessionTokenTTL: time.Hour})

	token, err := svc.GenerateSessionToken("sess_1")
	if err != nil {
		t.Fatalf("GenerateSessionToken() error = %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.SessionID != "sess_1" {
		t.Errorf("SessionID = %q, want sess_1", claims.SessionID)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "secret", SessionTokenTTL: time.Hour})
	other := NewTokenService(config.JWTConfig{Secret: "other", SessionTokenTTL: time.Hour})
	expired := NewTokenService(config.JWTConfig{Secret: "secret", SessionTokenTTL: -time.Minute})

	foreign, _ := other.GenerateSessionToken("sess_1")
	stale, _ := expired.GenerateSessionToken("sess_1")

	tests := []struct {
		name  string
		token string
	}{
		{name: "Wrong Secret", token: foreign},
		{name: "Expired", token: stale},
		{name: "Garbage", token: "not-a-token"},
		{name: "Empty", token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ValidateToken(tt.token); err == nil {
				t.Error("ValidateToken() expected error")
			}
		})
	}
}

func TestGenerateWithoutSecret(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{})
	if _, err := svc.GenerateSessionToken("sess_1"); err == nil {
		t.Error("GenerateSessionToken() expected error without secret")
	}
}

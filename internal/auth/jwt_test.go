package auth

import (
	"testing"
	"time"

	"voicebridge/internal/config"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:      "test-secret",
		JWTIssuer:      "voicebridge",
		JWTAudience:    "operators",
		AccessTokenTTL: 15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	m := testManager(t)
	now := time.Now()

	tok, err := m.Issue(now, "op-1", "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Verify(tok, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.OperatorID != "op-1" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m := testManager(t)
	now := time.Now()

	tok, err := m.Issue(now, "op-1", "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := m.Verify(tok, now.Add(16*time.Minute)); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m := testManager(t)
	other, err := NewManager(config.AuthConfig{JWTSecret: "other-secret", AccessTokenTTL: time.Minute})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	tok, err := other.Issue(time.Now(), "op-1", "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(tok, time.Now()); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager(config.AuthConfig{}); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

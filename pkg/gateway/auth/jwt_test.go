package auth

import (
	"context"
	"testing"
	"time"
)

func TestIssueAndValidateToken(t *testing.T) {
	mgr, err := NewJWTManager("0123456789abcdef", "https://login.example.org", "aco-dashboard", time.Hour)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	token, err := mgr.IssueToken("user-42", "admin", "admin@practice.example")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	claims, err := mgr.ValidateToken(context.Background(), token)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}
	if claims.Subject != "user-42" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	mgr, _ := NewJWTManager("0123456789abcdef", "iss", "aud", time.Hour)
	token, _ := mgr.IssueToken("user-42", "admin", "")
	if _, err := mgr.ValidateToken(context.Background(), token+"x"); err == nil {
		t.Fatal("expected signature failure")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	mgr, _ := NewJWTManager("0123456789abcdef", "iss", "aud", time.Hour)
	mgr.nowFunc = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _ := mgr.IssueToken("user-42", "viewer", "")
	mgr.nowFunc = time.Now
	if _, err := mgr.ValidateToken(context.Background(), token); err == nil {
		t.Fatal("expected expiry failure")
	}
}

func TestRejectsShortSecret(t *testing.T) {
	if _, err := NewJWTManager("short", "iss", "aud", time.Hour); err == nil {
		t.Fatal("expected error for short secret")
	}
}

package auth

import (
	"testing"
	"time"
)

func TestIssueAndValidateSession(t *testing.T) {
	m := NewManager([]byte("test-secret"), time.Hour)

	token, err := m.IssueSession("alice.testnet")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	claims, err := m.ValidateSession(token)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if claims.AccountID != "alice.testnet" {
		t.Fatalf("AccountID = %q, want %q", claims.AccountID, "alice.testnet")
	}
	if claims.SessionID == "" {
		t.Fatal("SessionID must not be empty")
	}
}

func TestIssueSessionRejectsEmptyAccount(t *testing.T) {
	m := NewManager([]byte("test-secret"), time.Hour)
	if _, err := m.IssueSession(""); err == nil {
		t.Fatal("expected error for empty account id")
	}
}

func TestValidateSessionRejectsTampering(t *testing.T) {
	m := NewManager([]byte("test-secret"), time.Hour)
	other := NewManager([]byte("different-secret"), time.Hour)

	token, err := m.IssueSession("bob.testnet")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if _, err := other.ValidateSession(token); err != ErrInvalidToken {
		t.Fatalf("ValidateSession with wrong secret: got %v, want ErrInvalidToken", err)
	}
}

func TestValidateSessionRejectsExpired(t *testing.T) {
	m := NewManager([]byte("test-secret"), -time.Hour)
	token, err := m.IssueSession("carol.testnet")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if _, err := m.ValidateSession(token); err != ErrInvalidToken {
		t.Fatalf("ValidateSession with expired token: got %v, want ErrInvalidToken", err)
	}
}

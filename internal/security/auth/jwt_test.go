package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/yourorg/policydesk/internal/domain"
)

func TestIssueAndVerify(t *testing.T) {
	tm, err := NewTokenManager("test-secret", "")
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}

	token, err := tm.Issue("u1", "t1", "a1", domain.RoleVP, time.Minute)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := tm.Verify(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.UserID != "u1" || claims.TenantID != "t1" || claims.AgencyID != "a1" || claims.Role != domain.RoleVP {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	tm, _ := NewTokenManager("test-secret", "")
	token, err := tm.Issue("u1", "t1", "", domain.RoleTenantAdmin, time.Millisecond)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := tm.Verify(token); err != domain.ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyTamperedToken(t *testing.T) {
	tm, _ := NewTokenManager("test-secret", "")
	token, _ := tm.Issue("u1", "t1", "", domain.RoleTenantAdmin, time.Minute)

	// Flip a character in the payload segment
	parts := strings.Split(token, ".")
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	if _, err := tm.Verify(tampered); err != domain.ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	tm1, _ := NewTokenManager("secret-one", "")
	tm2, _ := NewTokenManager("secret-two", "")

	token, _ := tm1.Issue("u1", "t1", "", domain.RoleAgent, time.Minute)
	if _, err := tm2.Verify(token); err != domain.ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken across secrets, got %v", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	tm, _ := NewTokenManager("test-secret", "")
	for _, bad := range []string{"", "garbage", "a.b.c"} {
		if _, err := tm.Verify(bad); err != domain.ErrInvalidToken {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", bad, err)
		}
	}
}

func TestEmptySecretRefused(t *testing.T) {
	if _, err := NewTokenManager("", "policydesk"); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestIssueValidation(t *testing.T) {
	tm, _ := NewTokenManager("test-secret", "")
	if _, err := tm.Issue("", "t1", "", domain.RoleAgent, time.Minute); err == nil {
		t.Fatalf("expected error for missing user id")
	}
	if _, err := tm.Issue("u1", "t1", "", domain.RoleAgent, 0); err == nil {
		t.Fatalf("expected error for non-positive ttl")
	}
}

func TestExtractToken(t *testing.T) {
	token, err := ExtractToken("Bearer abc123")
	if err != nil || token != "abc123" {
		t.Fatalf("expected abc123, got %q err=%v", token, err)
	}
	for _, bad := range []string{"", "abc123", "Basic abc123", "Bearer a b"} {
		if _, err := ExtractToken(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestTokenService(t *testing.T, opts ...TokenOption) *TokenService {
	t.Helper()
	svc, err := NewTokenService([]byte("test-signing-key"), opts...)
	if err != nil {
		t.Fatalf("NewTokenService() error: %v", err)
	}
	return svc
}

func TestTokenService_IssueVerify(t *testing.T) {
	t.Parallel()

	svc := newTestTokenService(t)
	userID := uuid.New()

	token, err := svc.Issue(userID, "alice@example.com")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if token == "" {
		t.Fatal("Issue() returned empty token")
	}
	// Compact JWS serialization is URL-safe
	if strings.ContainsAny(token, " +/") {
		t.Errorf("token contains non-URL-safe characters: %q", token)
	}

	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("claims.UserID = %s, want %s", claims.UserID, userID)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("claims.Email = %s, want alice@example.com", claims.Email)
	}
	if !claims.ExpiresAt.After(claims.IssuedAt) {
		t.Errorf("ExpiresAt %s not after IssuedAt %s", claims.ExpiresAt, claims.IssuedAt)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt); got != DefaultTokenTTL {
		t.Errorf("token lifetime = %s, want %s", got, DefaultTokenTTL)
	}
}

func TestTokenService_Expired(t *testing.T) {
	t.Parallel()

	svc := newTestTokenService(t, WithTTL(time.Nanosecond))
	token, err := svc.Issue(uuid.New(), "alice@example.com")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	if _, err := svc.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() of expired token = %v, want ErrInvalidToken", err)
	}
}

func TestTokenService_Invalid(t *testing.T) {
	t.Parallel()

	svc := newTestTokenService(t)
	token, err := svc.Issue(uuid.New(), "alice@example.com")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	otherKey, err := NewTokenService([]byte("a-different-signing-key"))
	if err != nil {
		t.Fatalf("NewTokenService() error: %v", err)
	}

	tests := []struct {
		name  string
		token string
		svc   *TokenService
	}{
		{"malformed", "not.a.token", svc},
		{"empty", "", svc},
		{"truncated", token[:len(token)-5], svc},
		{"wrong key", token, otherKey},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			claims, err := tt.svc.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
			if claims != nil {
				t.Error("Verify() returned claims alongside an error; partial results must never escape")
			}
		})
	}
}

func TestNewTokenService_EmptyKey(t *testing.T) {
	t.Parallel()

	if _, err := NewTokenService(nil); err == nil {
		t.Error("NewTokenService(nil) = nil error, want failure")
	}
}

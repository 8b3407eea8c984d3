package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// DefaultTokenTTL is the token lifetime when none is configured.
const DefaultTokenTTL = 24 * time.Hour

// Claims are the verified contents of a bearer token.
type Claims struct {
	UserID    uuid.UUID
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService issues and verifies signed, time-bounded bearer tokens
// (HS256 JWTs). The signing key and TTL are fixed at construction and never
// mutated, so the service is safe for concurrent use. There is no key
// versioning: after a key swap, only tokens signed with the new key verify.
type TokenService struct {
	key  []byte
	ttl  time.Duration
	skew time.Duration
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithTTL overrides the default 24h token lifetime.
func WithTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithAcceptableSkew sets the clock skew tolerated during verification.
// The default is zero.
func WithAcceptableSkew(skew time.Duration) TokenOption {
	return func(s *TokenService) {
		if skew >= 0 {
			s.skew = skew
		}
	}
}

// NewTokenService creates a token service with the given signing key.
func NewTokenService(signingKey []byte, opts ...TokenOption) (*TokenService, error) {
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("signing key must not be empty")
	}
	s := &TokenService{
		key: signingKey,
		ttl: DefaultTokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue constructs and signs a token binding the user identity. The encoded
// form is URL-safe (compact JWS serialization).
func (s *TokenService) Issue(userID uuid.UUID, email string) (string, error) {
	now := time.Now()
	token, err := jwt.NewBuilder().
		Claim("user_id", userID.String()).
		Claim("email", email).
		IssuedAt(now).
		Expiration(now.Add(s.ttl)).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, s.key))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return string(signed), nil
}

// Verify checks signature integrity and expiry and returns the claims.
// Malformed encoding, signature mismatch, and expiry all collapse into
// ErrInvalidToken; no partially trusted result is ever returned.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKey(jwa.HS256, s.key),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(s.skew),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	rawUserID, ok := token.Get("user_id")
	if !ok {
		return nil, fmt.Errorf("%w: missing user_id claim", ErrInvalidToken)
	}
	userIDStr, ok := rawUserID.(string)
	if !ok {
		return nil, fmt.Errorf("%w: malformed user_id claim", ErrInvalidToken)
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed user_id claim", ErrInvalidToken)
	}

	claims := &Claims{
		UserID:    userID,
		IssuedAt:  token.IssuedAt(),
		ExpiresAt: token.Expiration(),
	}

	if rawEmail, ok := token.Get("email"); ok {
		if email, ok := rawEmail.(string); ok {
			claims.Email = email
		}
	}

	return claims, nil
}

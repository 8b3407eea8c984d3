package oidc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/feedbacklens/feedback-api/internal/auth"
	"github.com/feedbacklens/feedback-api/internal/models"
)

// Resolver verifies federated identity assertions (signed ID tokens) and
// extracts the profile fields the account layer needs. It implements
// auth.IdentityResolver and never touches the user store.
type Resolver struct {
	keys     KeySource
	issuer   string
	audience string
	provider string
	skew     time.Duration
}

// NewResolver creates a resolver that accepts tokens issued by issuer for
// the given audience (the OAuth client ID). provider names the identity
// source and is recorded on resolved identities.
func NewResolver(keys KeySource, issuer, audience, provider string) *Resolver {
	return &Resolver{
		keys:     keys,
		issuer:   issuer,
		audience: audience,
		provider: provider,
	}
}

// Resolve verifies the assertion's signature, issuer, audience, and expiry,
// then extracts the normalized identity. Any verification failure yields
// auth.ErrInvalidAssertion; a verified token without an email claim yields
// auth.ErrMissingEmail.
func (r *Resolver) Resolve(ctx context.Context, assertion string) (*models.ExternalIdentity, error) {
	if strings.TrimSpace(assertion) == "" {
		return nil, fmt.Errorf("%w: empty assertion", auth.ErrInvalidAssertion)
	}

	keys, err := r.keys.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing keys: %w", err)
	}

	opts := []jwt.ParseOption{
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(r.skew),
	}
	if r.audience != "" {
		opts = append(opts, jwt.WithAudience(r.audience))
	}

	token, err := jwt.Parse([]byte(assertion), opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrInvalidAssertion, err)
	}

	if !r.issuerMatches(token.Issuer()) {
		return nil, fmt.Errorf("%w: issuer mismatch: expected %s, got %s",
			auth.ErrInvalidAssertion, r.issuer, token.Issuer())
	}

	identity := &models.ExternalIdentity{
		Provider: r.provider,
		Subject:  token.Subject(),
		Email:    stringClaim(token, "email"),
		Name:     stringClaim(token, "name"),
	}
	identity.AvatarURL = stringClaim(token, "picture")

	if identity.Email == "" {
		return nil, fmt.Errorf("%w: assertion verified but carries no email claim", auth.ErrMissingEmail)
	}

	return identity, nil
}

// issuerMatches accepts the configured issuer with or without the https://
// prefix; Google historically issued tokens both ways.
func (r *Resolver) issuerMatches(iss string) bool {
	if iss == r.issuer {
		return true
	}
	return "https://"+iss == r.issuer || iss == "https://"+r.issuer
}

func stringClaim(token jwt.Token, name string) string {
	raw, ok := token.Get(name)
	if !ok {
		return ""
	}
	value, ok := raw.(string)
	if !ok {
		return ""
	}
	return value
}

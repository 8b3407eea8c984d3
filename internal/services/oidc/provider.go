package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/feedbacklens/feedback-api/internal/database"
	"github.com/feedbacklens/feedback-api/internal/models"
)

// Google Identity Services defaults. These are used when the stored provider
// configuration leaves the corresponding field empty.
const (
	GoogleIssuer  = "https://accounts.google.com"
	GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
)

// Provider resolves identity provider configuration from the database, with
// built-in Google defaults when no row exists.
type Provider struct {
	repo *database.OIDCConfigRepository
}

// NewProvider creates a new OIDC provider manager
func NewProvider(repo *database.OIDCConfigRepository) *Provider {
	return &Provider{repo: repo}
}

// GetConfig retrieves OIDC configuration for a provider
func (p *Provider) GetConfig(ctx context.Context, providerName string) (*models.OIDCConfig, error) {
	config, err := p.repo.GetByProvider(ctx, providerName)
	if err != nil {
		return nil, fmt.Errorf("failed to get OIDC config: %w", err)
	}
	return config, nil
}

// Resolver builds an assertion resolver for the named provider. The stored
// configuration wins; when no row exists and the provider is google, the
// Google defaults apply with clientIDFallback as the expected audience.
func (p *Provider) Resolver(ctx context.Context, manager *JWKSManager, providerName, clientIDFallback string) (*Resolver, error) {
	config, err := p.repo.GetByProvider(ctx, providerName)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) && providerName == models.ProviderGoogle {
			if clientIDFallback == "" {
				return nil, fmt.Errorf("no configuration for provider %s and no client ID fallback", providerName)
			}
			return NewResolver(manager.Source(GoogleJWKSURL), GoogleIssuer, clientIDFallback, models.ProviderGoogle), nil
		}
		return nil, fmt.Errorf("failed to get OIDC config: %w", err)
	}

	jwksURL := ""
	if config.JWKSUrl != nil {
		jwksURL = *config.JWKSUrl
	}
	if jwksURL == "" {
		if config.Issuer == GoogleIssuer {
			jwksURL = GoogleJWKSURL
		} else {
			return nil, fmt.Errorf("provider %s has no jwks_url configured", providerName)
		}
	}

	return NewResolver(manager.Source(jwksURL), config.Issuer, config.ClientID, config.Provider), nil
}

// GetLoginConfig returns the configuration needed for frontend OIDC login
func (p *Provider) GetLoginConfig(ctx context.Context, providerName string) (*LoginConfig, error) {
	config, err := p.GetConfig(ctx, providerName)
	if err != nil {
		return nil, err
	}

	// Prefer the discovery document; fall back to issuer-relative paths.
	authEndpoint, tokenEndpoint := discoverEndpoints(config.Issuer)
	if authEndpoint == "" {
		authEndpoint = issuerEndpoint(config.Issuer, "oauth2/authorize")
	}
	if tokenEndpoint == "" {
		tokenEndpoint = issuerEndpoint(config.Issuer, "oauth2/token")
	}

	return &LoginConfig{
		AuthorizationEndpoint: authEndpoint,
		TokenEndpoint:         tokenEndpoint,
		ClientID:              config.ClientID,
		RedirectURI:           config.RedirectURI,
		Scope:                 "openid email profile",
	}, nil
}

func discoverEndpoints(issuer string) (authEndpoint, tokenEndpoint string) {
	discoveryURL := issuerEndpoint(issuer, ".well-known/openid-configuration")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(discoveryURL)
	if err != nil || resp.StatusCode != http.StatusOK {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return "", ""
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			_ = closeErr
		}
	}()

	var discovery struct {
		AuthorizationEndpoint string `json:"authorization_endpoint"`
		TokenEndpoint         string `json:"token_endpoint"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&discovery); err != nil {
		return "", ""
	}
	return discovery.AuthorizationEndpoint, discovery.TokenEndpoint
}

func issuerEndpoint(issuer, path string) string {
	if len(issuer) > 0 && issuer[len(issuer)-1] == '/' {
		return issuer + path
	}
	return issuer + "/" + path
}

// LoginConfig contains OIDC login configuration for frontend
type LoginConfig struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	ClientID              string `json:"client_id"`
	RedirectURI           string `json:"redirect_uri"`
	Scope                 string `json:"scope"`
}

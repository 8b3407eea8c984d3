package oidc

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/feedbacklens/feedback-api/internal/models"
)

// Client wraps the OAuth2 authorization-code flow for providers where the
// frontend hands the backend a code instead of an ID token.
type Client struct {
	config *oauth2.Config
}

// NewClient creates a new OAuth2 client from OIDC config
func NewClient(oidcConfig *models.OIDCConfig) *Client {
	clientSecret := ""
	if oidcConfig.ClientSecret != nil {
		clientSecret = *oidcConfig.ClientSecret
	}

	endpoint := oauth2.Endpoint{
		AuthURL:  issuerEndpoint(oidcConfig.Issuer, "oauth2/authorize"),
		TokenURL: issuerEndpoint(oidcConfig.Issuer, "oauth2/token"),
	}
	if oidcConfig.Issuer == GoogleIssuer {
		endpoint = endpoints.Google
	}

	config := &oauth2.Config{
		ClientID:     oidcConfig.ClientID,
		ClientSecret: clientSecret,
		RedirectURL:  oidcConfig.RedirectURI,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     endpoint,
	}

	return &Client{config: config}
}

// ExchangeCode exchanges an authorization code for tokens
func (c *Client) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return c.config.Exchange(ctx, code)
}

// IDToken extracts the signed ID token from an exchange response. The ID
// token, not the access token, is what the resolver verifies.
func IDToken(token *oauth2.Token) (string, error) {
	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return "", fmt.Errorf("token response carries no id_token")
	}
	return raw, nil
}

// AuthCodeURL returns the authorization URL
func (c *Client) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state)
}

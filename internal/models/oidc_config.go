package models

import (
	"time"

	"github.com/google/uuid"
)

// OIDCConfig is a federated identity provider configuration, stored in the
// database and managed by the configure CLI. ClientSecret is optional for
// public clients (the Google Identity Services flow never needs it).
type OIDCConfig struct {
	ID           uuid.UUID `json:"id"`
	Provider     string    `json:"provider"`
	Issuer       string    `json:"issuer"`
	ClientID     string    `json:"client_id"`
	ClientSecret *string   `json:"client_secret,omitempty"`
	RedirectURI  string    `json:"redirect_uri"`
	JWKSUrl      *string   `json:"jwks_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

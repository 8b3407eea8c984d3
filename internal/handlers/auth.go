package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/feedbacklens/feedback-api/internal/auth"
	"github.com/feedbacklens/feedback-api/internal/middleware"
	"github.com/feedbacklens/feedback-api/internal/models"
	"github.com/feedbacklens/feedback-api/internal/services/oidc"
)

// AuthHandler handles registration, login, and OAuth login requests
type AuthHandler struct {
	service      *auth.Service
	oidcProvider *oidc.Provider
}

// NewAuthHandler creates a new auth handler. oidcProvider may be nil when no
// identity provider is configured; the OIDC login config endpoint then
// reports that state instead of serving a config.
func NewAuthHandler(service *auth.Service, oidcProvider *oidc.Provider) *AuthHandler {
	return &AuthHandler{service: service, oidcProvider: oidcProvider}
}

// RegisterRoutes registers the public auth routes on the given router
// The router should already have the /api/v1/auth prefix
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/oauth/google", h.OAuthGoogle).Methods("POST")
	r.HandleFunc("/oidc/login", h.GetOIDCLogin).Methods("GET")
}

// RegisterProtectedRoutes registers auth routes that require a valid token.
// The router should carry the auth middleware and the /api/v1/auth prefix.
func (h *AuthHandler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/me", h.GetMe).Methods("GET")
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name,omitempty" validate:"omitempty,max=255"`
}

// LoginRequest represents a password login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// OAuthRequest carries either the provider-signed identity assertion
// directly or an authorization code the backend exchanges for one.
type OAuthRequest struct {
	IDToken string `json:"id_token,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Register creates a new local account
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	result, err := h.service.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		respondAuthError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// Login authenticates a local account
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondAuthError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// OAuthGoogle logs in with a Google-signed ID token, creating or merging the
// account keyed by the asserted email. When the SPA callback sends an
// authorization code instead, it is exchanged for an ID token first.
func (h *AuthHandler) OAuthGoogle(w http.ResponseWriter, r *http.Request) {
	var req OAuthRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	assertion := req.IDToken
	if assertion == "" && req.Code != "" {
		exchanged, err := h.exchangeCode(r.Context(), req.Code)
		if err != nil {
			respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Authorization code exchange failed")
			return
		}
		assertion = exchanged
	}
	if assertion == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "id_token or code is required")
		return
	}

	result, err := h.service.OAuthLogin(r.Context(), assertion)
	if err != nil {
		respondAuthError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// exchangeCode trades an authorization code for the provider's ID token
// using the stored OIDC configuration.
func (h *AuthHandler) exchangeCode(ctx context.Context, code string) (string, error) {
	if h.oidcProvider == nil {
		return "", fmt.Errorf("no identity provider configured")
	}

	oidcConfig, err := h.oidcProvider.GetConfig(ctx, models.ProviderGoogle)
	if err != nil {
		return "", fmt.Errorf("failed to load OIDC config: %w", err)
	}

	token, err := oidc.NewClient(oidcConfig).ExchangeCode(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	return oidc.IDToken(token)
}

// GetOIDCLogin returns OIDC configuration for the frontend login flow
func (h *AuthHandler) GetOIDCLogin(w http.ResponseWriter, r *http.Request) {
	if h.oidcProvider == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "No identity provider configured")
		return
	}

	provider := r.URL.Query().Get("provider")
	if provider == "" {
		provider = "google"
	}

	loginConfig, err := h.oidcProvider.GetLoginConfig(r.Context(), provider)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to get OIDC configuration")
		return
	}

	respondJSON(w, http.StatusOK, loginConfig)
}

// GetMe returns current user information
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	respondJSON(w, http.StatusOK, user.Public())
}

// decodeRequest decodes and validates a JSON request body. It writes the
// error response itself and reports whether the handler should continue.
func decodeRequest(w http.ResponseWriter, r *http.Request, req any) bool {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(req); err != nil {
		if maxBytesErr, ok := err.(*http.MaxBytesError); ok {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return false
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return false
	}
	return true
}

// respondAuthError maps auth service errors onto HTTP statuses. Unknown
// errors deliberately collapse to a generic 500 so internals never leak.
func respondAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Email and password are required")
	case errors.Is(err, auth.ErrEmailTaken):
		respondJSONError(w, http.StatusConflict, "Conflict", "Email is already registered")
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Invalid email or password")
	case errors.Is(err, auth.ErrMissingEmail):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Identity assertion carries no email")
	case errors.Is(err, auth.ErrInvalidAssertion):
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Invalid identity assertion")
	case errors.Is(err, auth.ErrStoreUnavailable):
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "User store is temporarily unavailable")
	default:
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Authentication failed")
	}
}

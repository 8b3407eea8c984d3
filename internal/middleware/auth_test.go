package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/feedbacklens/feedback-api/internal/auth"
	"github.com/feedbacklens/feedback-api/internal/database"
	"github.com/feedbacklens/feedback-api/internal/models"
)

type stubUserStore struct {
	users map[uuid.UUID]*models.User
	err   error
}

func (s *stubUserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", database.ErrNotFound)
	}
	return user, nil
}

func (s *stubUserStore) GetByEmail(context.Context, string) (*models.User, error) {
	return nil, fmt.Errorf("user: %w", database.ErrNotFound)
}

func (s *stubUserStore) Create(context.Context, *models.User) error { return nil }

func (s *stubUserStore) UpdateOAuthProfile(context.Context, string, *models.ExternalIdentity) (*models.User, error) {
	return nil, fmt.Errorf("user: %w", database.ErrNotFound)
}

func newAuthFixture(t *testing.T) (*auth.TokenService, *stubUserStore, *models.User, string) {
	t.Helper()

	tokens, err := auth.NewTokenService([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("NewTokenService() error: %v", err)
	}

	user := &models.User{ID: uuid.New(), Email: "alice@example.com"}
	store := &stubUserStore{users: map[uuid.UUID]*models.User{user.ID: user}}

	token, err := tokens.Issue(user.ID, user.Email)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	return tokens, store, user, token
}

func echoUserHandler(t *testing.T, sawUser **models.User) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*sawUser = UserFromContext(r)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth(t *testing.T) {
	t.Parallel()

	tokens, store, user, token := newAuthFixture(t)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   bool
	}{
		{"valid token", "Bearer " + token, http.StatusOK, true},
		{"missing header", "", http.StatusUnauthorized, false},
		{"malformed header", "Bearer", http.StatusUnauthorized, false},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, false},
		{"garbage token", "Bearer not.a.token", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var sawUser *models.User
			handler := Auth(tokens, store)(echoUserHandler(t, &sawUser))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantUser && (sawUser == nil || sawUser.ID != user.ID) {
				t.Errorf("handler saw user %v, want %s", sawUser, user.ID)
			}
			if !tt.wantUser && sawUser != nil {
				t.Error("handler ran with a user despite rejected auth")
			}
		})
	}
}

func TestAuth_UnknownUser(t *testing.T) {
	t.Parallel()

	tokens, store, _, _ := newAuthFixture(t)

	// A valid token for an account that no longer exists.
	ghostToken, err := tokens.Issue(uuid.New(), "ghost@example.com")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	var sawUser *models.User
	handler := Auth(tokens, store)(echoUserHandler(t, &sawUser))
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+ghostToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_StoreError(t *testing.T) {
	t.Parallel()

	tokens, store, _, token := newAuthFixture(t)
	store.err = errors.New("connection refused")

	var sawUser *models.User
	handler := Auth(tokens, store)(echoUserHandler(t, &sawUser))
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestOptionalAuth(t *testing.T) {
	t.Parallel()

	tokens, store, user, token := newAuthFixture(t)

	t.Run("no header passes anonymously", func(t *testing.T) {
		t.Parallel()
		var sawUser *models.User
		handler := OptionalAuth(tokens, store)(echoUserHandler(t, &sawUser))
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		if sawUser != nil {
			t.Error("anonymous request carried a user")
		}
	})

	t.Run("valid token attaches user", func(t *testing.T) {
		t.Parallel()
		var sawUser *models.User
		handler := OptionalAuth(tokens, store)(echoUserHandler(t, &sawUser))
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		if sawUser == nil || sawUser.ID != user.ID {
			t.Errorf("handler saw user %v, want %s", sawUser, user.ID)
		}
	})

	t.Run("invalid token still rejected", func(t *testing.T) {
		t.Parallel()
		var sawUser *models.User
		handler := OptionalAuth(tokens, store)(echoUserHandler(t, &sawUser))
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		req.Header.Set("Authorization", "Bearer expired.or.garbage")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}

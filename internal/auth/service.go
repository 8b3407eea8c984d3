package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/feedbacklens/feedback-api/internal/database"
	"github.com/feedbacklens/feedback-api/internal/models"
)

// IdentityResolver verifies a federated identity assertion and produces a
// normalized external identity. Implementations return ErrInvalidAssertion
// or ErrMissingEmail (wrapped) on failure and never touch the user store.
type IdentityResolver interface {
	Resolve(ctx context.Context, assertion string) (*models.ExternalIdentity, error)
}

// Result is what every successful flow hands back to the route layer: the
// public user representation and a bearer token bound to it.
type Result struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// Service orchestrates registration, password login, and OAuth login. It is
// stateless between calls; the user store is the only shared mutable
// resource, and its unique email index arbitrates concurrent writes.
type Service struct {
	store    database.UserStore
	hasher   *PasswordHasher
	tokens   *TokenService
	resolver IdentityResolver
	logger   *zap.Logger
}

// NewService creates the auth service. resolver may be nil when no identity
// provider is configured; OAuthLogin then fails with ErrInvalidAssertion.
func NewService(store database.UserStore, hasher *PasswordHasher, tokens *TokenService, resolver IdentityResolver, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		resolver: resolver,
		logger:   logger,
	}
}

// Register creates a local account and returns it with a fresh token.
// The store's unique index is the authority on duplicates: the pre-check
// only exists to fail fast, and a duplicate surfacing from the insert after
// a clean pre-check (two concurrent registrations) is handled identically.
func (s *Service) Register(ctx context.Context, email, password, name string) (*Result, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}

	_, err := s.store.GetByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, storeFailure(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if name == "" {
		name = emailLocalPart(email)
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: &hash,
		Name:         &name,
		Provider:     models.ProviderLocal,
	}

	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, storeFailure(err)
	}

	s.logger.Info("user_registered", zap.String("user_id", user.ID.String()))
	return s.finish(user)
}

// Login authenticates a local account. Unknown email, non-local account,
// and wrong password all return the same ErrInvalidCredentials value.
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storeFailure(err)
	}

	if !user.IsLocal() || !s.hasher.Verify(password, *user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	s.logger.Info("user_logged_in", zap.String("user_id", user.ID.String()))
	return s.finish(user)
}

// OAuthLogin verifies a federated assertion and creates or merges the
// account keyed by the asserted email. An existing record is merged by
// overwrite: name, provider, provider_id, and avatar_url take the incoming
// values while password_hash is left alone, so a local password survives.
func (s *Service) OAuthLogin(ctx context.Context, assertion string) (*Result, error) {
	if s.resolver == nil {
		return nil, fmt.Errorf("%w: no identity provider configured", ErrInvalidAssertion)
	}

	identity, err := s.resolver.Resolve(ctx, assertion)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		user, err = s.store.UpdateOAuthProfile(ctx, identity.Email, identity)
		if err != nil {
			return nil, storeFailure(err)
		}
	case errors.Is(err, database.ErrNotFound):
		user, err = s.createFromIdentity(ctx, identity)
		if err != nil {
			return nil, err
		}
	default:
		return nil, storeFailure(err)
	}

	s.logger.Info("oauth_login",
		zap.String("user_id", user.ID.String()),
		zap.String("provider", user.Provider),
	)
	return s.finish(user)
}

func (s *Service) createFromIdentity(ctx context.Context, identity *models.ExternalIdentity) (*models.User, error) {
	user := &models.User{
		ID:       uuid.New(),
		Email:    identity.Email,
		Provider: identity.Provider,
	}
	if identity.Name != "" {
		user.Name = &identity.Name
	}
	if identity.Subject != "" {
		user.ProviderID = &identity.Subject
	}
	if identity.AvatarURL != "" {
		user.AvatarURL = &identity.AvatarURL
	}

	err := s.store.Create(ctx, user)
	if err == nil {
		return user, nil
	}

	// Lost a race against a concurrent login with the same email; the row
	// now exists, so fall through to the merge path.
	if errors.Is(err, database.ErrDuplicateEmail) {
		merged, updateErr := s.store.UpdateOAuthProfile(ctx, identity.Email, identity)
		if updateErr != nil {
			return nil, storeFailure(updateErr)
		}
		return merged, nil
	}

	return nil, storeFailure(err)
}

// finish issues a token for the user and strips the password hash from the
// returned representation.
func (s *Service) finish(user *models.User) (*Result, error) {
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Result{User: user.Public(), Token: token}, nil
}

// storeFailure maps undocumented store errors onto the opaque
// ErrStoreUnavailable while preserving the cause for logs.
func storeFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func emailLocalPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

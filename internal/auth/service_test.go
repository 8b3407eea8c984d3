package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/feedbacklens/feedback-api/internal/database"
	"github.com/feedbacklens/feedback-api/internal/models"
)

// memStore is an in-memory UserStore with the same uniqueness semantics as
// the Postgres repository: Create is atomic under the mutex, so concurrent
// inserts of the same email produce exactly one success.
type memStore struct {
	mu      sync.Mutex
	byEmail map[string]*models.User

	// failAll makes every call fail, to exercise the unavailable path.
	failAll bool
	// failCreate makes only Create report a duplicate, to simulate the
	// find-then-insert race.
	failCreateDuplicate bool
}

func newMemStore() *memStore {
	return &memStore{byEmail: make(map[string]*models.User)}
}

var errStoreDown = errors.New("connection refused")

func (m *memStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errStoreDown
	}
	u, ok := m.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("user: %w", database.ErrNotFound)
	}
	clone := *u
	return &clone, nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errStoreDown
	}
	for _, u := range m.byEmail {
		if u.ID == id {
			clone := *u
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("user: %w", database.ErrNotFound)
}

func (m *memStore) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errStoreDown
	}
	if m.failCreateDuplicate {
		return fmt.Errorf("create user: %w", database.ErrDuplicateEmail)
	}
	if _, exists := m.byEmail[user.Email]; exists {
		return fmt.Errorf("create user: %w", database.ErrDuplicateEmail)
	}
	clone := *user
	m.byEmail[user.Email] = &clone
	return nil
}

func (m *memStore) UpdateOAuthProfile(_ context.Context, email string, identity *models.ExternalIdentity) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errStoreDown
	}
	u, ok := m.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("user: %w", database.ErrNotFound)
	}
	if identity.Name != "" {
		name := identity.Name
		u.Name = &name
	} else {
		u.Name = nil
	}
	u.Provider = identity.Provider
	subject := identity.Subject
	u.ProviderID = &subject
	if identity.AvatarURL != "" {
		avatar := identity.AvatarURL
		u.AvatarURL = &avatar
	} else {
		u.AvatarURL = nil
	}
	clone := *u
	return &clone, nil
}

// stubResolver returns a fixed identity or error.
type stubResolver struct {
	identity *models.ExternalIdentity
	err      error
}

func (s *stubResolver) Resolve(context.Context, string) (*models.ExternalIdentity, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.identity, nil
}

func newTestService(t *testing.T, store database.UserStore, resolver IdentityResolver) *Service {
	t.Helper()
	tokens, err := NewTokenService([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("NewTokenService() error: %v", err)
	}
	return NewService(store, NewPasswordHasher(), tokens, resolver, nil)
}

func TestService_RegisterThenLogin(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newMemStore(), nil)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "alice@example.com", "pw12345", "Alice")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if registered.User.Email != "alice@example.com" {
		t.Errorf("registered email = %s, want alice@example.com", registered.User.Email)
	}
	if registered.User.Provider != models.ProviderLocal {
		t.Errorf("registered provider = %s, want local", registered.User.Provider)
	}
	if registered.User.PasswordHash != nil {
		t.Error("Register() returned a user carrying the password hash")
	}
	if registered.Token == "" {
		t.Fatal("Register() returned empty token")
	}

	loggedIn, err := svc.Login(ctx, "alice@example.com", "pw12345")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if loggedIn.User.ID != registered.User.ID {
		t.Errorf("login user id = %s, want %s", loggedIn.User.ID, registered.User.ID)
	}

	claims, err := svc.tokens.Verify(loggedIn.Token)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.UserID != registered.User.ID {
		t.Errorf("token user_id = %s, want %s", claims.UserID, registered.User.ID)
	}
}

func TestService_RegisterDefaultsNameFromEmail(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newMemStore(), nil)
	result, err := svc.Register(context.Background(), "bob@example.com", "pw12345", "")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if result.User.Name == nil || *result.User.Name != "bob" {
		t.Errorf("defaulted name = %v, want bob", result.User.Name)
	}
}

func TestService_RegisterInvalidInput(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newMemStore(), nil)
	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", "pw12345"},
		{"empty password", "alice@example.com", ""},
		{"both empty", "", ""},
		{"whitespace email", "   ", "pw12345"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := svc.Register(context.Background(), tt.email, tt.password, ""); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Register() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestService_RegisterDuplicate(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newMemStore(), nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice@example.com", "pw12345", ""); err != nil {
		t.Fatalf("first Register() error: %v", err)
	}
	if _, err := svc.Register(ctx, "alice@example.com", "other-pw", ""); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("second Register() error = %v, want ErrEmailTaken", err)
	}
}

func TestService_RegisterConcurrent(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newMemStore(), nil)
	ctx := context.Background()

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(ctx, "race@example.com", "pw12345", "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var successes, taken int
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrEmailTaken):
			taken++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("concurrent Register() succeeded %d times, want exactly 1", successes)
	}
	if taken != attempts-1 {
		t.Errorf("concurrent Register() returned ErrEmailTaken %d times, want %d", taken, attempts-1)
	}
}

func TestService_RegisterLosesRaceToStore(t *testing.T) {
	t.Parallel()

	// Pre-check misses but the insert reports a duplicate: the store's
	// constraint is the authority and the caller still sees ErrEmailTaken.
	store := newMemStore()
	store.failCreateDuplicate = true
	svc := newTestService(t, store, nil)

	if _, err := svc.Register(context.Background(), "alice@example.com", "pw12345", ""); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Register() error = %v, want ErrEmailTaken", err)
	}
}

func TestService_LoginFailuresCollapse(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := newTestService(t, store, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice@example.com", "pw12345", ""); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	// An OAuth-only account: no password hash, non-local provider.
	oauthUser := &models.User{
		ID:       uuid.New(),
		Email:    "carol@example.com",
		Provider: models.ProviderGoogle,
	}
	if err := store.Create(ctx, oauthUser); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "alice@example.com", "wrong"},
		{"nonexistent email", "nobody@example.com", "pw12345"},
		{"oauth-only account", "carol@example.com", "pw12345"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.Login(ctx, tt.email, tt.password)
			// All three causes must return the identical error value.
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestService_StoreUnavailable(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.failAll = true
	svc := newTestService(t, store, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice@example.com", "pw12345", ""); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Register() error = %v, want ErrStoreUnavailable", err)
	}
	if _, err := svc.Login(ctx, "alice@example.com", "pw12345"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Login() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestService_OAuthLoginCreates(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	resolver := &stubResolver{identity: &models.ExternalIdentity{
		Provider:  models.ProviderGoogle,
		Subject:   "google-sub-123",
		Email:     "dave@example.com",
		Name:      "Dave",
		AvatarURL: "https://example.com/dave.png",
	}}
	svc := newTestService(t, store, resolver)

	result, err := svc.OAuthLogin(context.Background(), "assertion")
	if err != nil {
		t.Fatalf("OAuthLogin() error: %v", err)
	}
	if result.User.Provider != models.ProviderGoogle {
		t.Errorf("provider = %s, want google", result.User.Provider)
	}
	if result.User.ProviderID == nil || *result.User.ProviderID != "google-sub-123" {
		t.Errorf("provider_id = %v, want google-sub-123", result.User.ProviderID)
	}
	if result.Token == "" {
		t.Error("OAuthLogin() returned empty token")
	}

	stored, err := store.GetByEmail(context.Background(), "dave@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error: %v", err)
	}
	if stored.PasswordHash != nil {
		t.Error("OAuth-created user has a password hash; should be absent")
	}
}

func TestService_OAuthLoginMergePreservesPassword(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	resolver := &stubResolver{identity: &models.ExternalIdentity{
		Provider:  models.ProviderGoogle,
		Subject:   "google-sub-456",
		Email:     "alice@example.com",
		Name:      "Alice G",
		AvatarURL: "https://example.com/alice.png",
	}}
	svc := newTestService(t, store, resolver)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice@example.com", "pw12345", "Alice"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	result, err := svc.OAuthLogin(ctx, "assertion")
	if err != nil {
		t.Fatalf("OAuthLogin() error: %v", err)
	}
	if result.User.Name == nil || *result.User.Name != "Alice G" {
		t.Errorf("merged name = %v, want Alice G", result.User.Name)
	}
	if result.User.Provider != models.ProviderGoogle {
		t.Errorf("merged provider = %s, want google", result.User.Provider)
	}

	// The local password must survive the merge.
	stored, err := store.GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error: %v", err)
	}
	if stored.PasswordHash == nil {
		t.Fatal("merge dropped the local password hash")
	}

	// Password login is scoped to local accounts, so after the merge flips
	// the provider to google it is rejected even though the hash survives.
	if _, err := svc.Login(ctx, "alice@example.com", "pw12345"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() after OAuth merge error = %v, want ErrInvalidCredentials", err)
	}
}

func TestService_OAuthLoginResolverFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"invalid assertion", fmt.Errorf("%w: bad signature", ErrInvalidAssertion), ErrInvalidAssertion},
		{"missing email", fmt.Errorf("%w", ErrMissingEmail), ErrMissingEmail},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := newTestService(t, newMemStore(), &stubResolver{err: tt.err})
			if _, err := svc.OAuthLogin(context.Background(), "assertion"); !errors.Is(err, tt.wantErr) {
				t.Errorf("OAuthLogin() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

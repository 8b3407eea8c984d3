package oidc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// KeySource supplies the verification keys for assertion signatures.
type KeySource interface {
	Keys(ctx context.Context) (jwk.Set, error)
}

// StaticKeys is a KeySource backed by a fixed key set.
type StaticKeys struct {
	Set jwk.Set
}

// Keys returns the fixed set.
func (s StaticKeys) Keys(context.Context) (jwk.Set, error) {
	return s.Set, nil
}

type cachedKeys struct {
	keys    jwk.Set
	expires time.Time
	mu      sync.RWMutex
}

// JWKSManager fetches JWKS documents over HTTP and caches them per URL.
type JWKSManager struct {
	client *http.Client
	cache  map[string]*cachedKeys
	mu     sync.RWMutex
	ttl    time.Duration
}

// NewJWKSManager creates a JWKS manager with a one hour cache.
func NewJWKSManager() *JWKSManager {
	return &JWKSManager{
		client: &http.Client{Timeout: 10 * time.Second},
		cache:  make(map[string]*cachedKeys),
		ttl:    1 * time.Hour,
	}
}

// Source binds the manager to a single JWKS URL as a KeySource.
func (m *JWKSManager) Source(jwksURL string) KeySource {
	return keySourceFunc(func(ctx context.Context) (jwk.Set, error) {
		return m.GetJWKS(ctx, jwksURL)
	})
}

type keySourceFunc func(ctx context.Context) (jwk.Set, error)

func (f keySourceFunc) Keys(ctx context.Context) (jwk.Set, error) {
	return f(ctx)
}

// GetJWKS returns the key set for jwksURL, fetching it if the cached copy
// is missing or stale.
func (m *JWKSManager) GetJWKS(ctx context.Context, jwksURL string) (jwk.Set, error) {
	m.mu.RLock()
	entry, exists := m.cache[jwksURL]
	m.mu.RUnlock()

	if exists {
		entry.mu.RLock()
		if time.Now().Before(entry.expires) && entry.keys != nil {
			keys := entry.keys
			entry.mu.RUnlock()
			return keys, nil
		}
		entry.mu.RUnlock()
	}

	keys, err := m.fetch(ctx, jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	m.mu.Lock()
	m.cache[jwksURL] = &cachedKeys{
		keys:    keys,
		expires: time.Now().Add(m.ttl),
	}
	m.mu.Unlock()

	return keys, nil
}

func (m *JWKSManager) fetch(ctx context.Context, jwksURL string) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			_ = closeErr
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read JWKS response: %w", err)
	}

	keys, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %w", err)
	}

	return keys, nil
}

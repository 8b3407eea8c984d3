package sentiment

import (
	"context"
	"errors"
	"testing"

	"github.com/feedbacklens/feedback-api/internal/models"
)

type stubProvider struct{}

func (stubProvider) DraftReply(context.Context, string, models.Sentiment) (string, error) {
	return "thanks!", nil
}

func TestProviderRegistry(t *testing.T) {
	t.Parallel()

	registry := NewProviderRegistry()
	registry.Register("stub", func(config map[string]string) (ReplyProvider, error) {
		if config["api_key"] == "" {
			return nil, errors.New("api_key is required")
		}
		return stubProvider{}, nil
	})

	t.Run("registered provider", func(t *testing.T) {
		t.Parallel()
		provider, err := registry.GetProvider("stub", map[string]string{"api_key": "k"})
		if err != nil {
			t.Fatalf("GetProvider() error: %v", err)
		}
		if provider == nil {
			t.Fatal("GetProvider() returned nil provider")
		}
	})

	t.Run("factory error propagates", func(t *testing.T) {
		t.Parallel()
		if _, err := registry.GetProvider("stub", map[string]string{}); err == nil {
			t.Error("GetProvider() with bad config = nil error, want failure")
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Parallel()
		_, err := registry.GetProvider("nope", nil)
		var notFound *ErrProviderNotFound
		if !errors.As(err, &notFound) {
			t.Errorf("GetProvider() error = %v, want ErrProviderNotFound", err)
		}
	})
}

func TestRegisterOpenAI(t *testing.T) {
	t.Parallel()

	registry := NewProviderRegistry()
	RegisterOpenAI(registry)

	if _, err := registry.GetProvider("openai", map[string]string{}); err == nil {
		t.Error("GetProvider() without api_key = nil error, want failure")
	}

	provider, err := registry.GetProvider("openai", map[string]string{"api_key": "test-key"})
	if err != nil {
		t.Fatalf("GetProvider() error: %v", err)
	}
	if provider == nil {
		t.Fatal("GetProvider() returned nil provider")
	}
}

func TestOpenAIProvider_DraftReplyNeutral(t *testing.T) {
	t.Parallel()

	provider := NewOpenAIProvider("test-key", "")
	_, err := provider.DraftReply(context.Background(), "it arrived", models.SentimentNeutral)
	if !errors.Is(err, ErrNoReplyNeeded) {
		t.Errorf("DraftReply() for neutral = %v, want ErrNoReplyNeeded", err)
	}
}

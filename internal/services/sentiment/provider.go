package sentiment

import (
	"context"

	"github.com/feedbacklens/feedback-api/internal/models"
)

// ReplyProvider drafts a suggested response to a piece of feedback. The
// classifier decides the sentiment first; the provider only writes prose.
type ReplyProvider interface {
	// DraftReply writes a reply appropriate to the feedback's sentiment.
	// Neutral feedback gets no reply and returns ErrNoReplyNeeded.
	DraftReply(ctx context.Context, feedbackText string, sentiment models.Sentiment) (string, error)
}

// ProviderFactory creates a reply provider from configuration values.
type ProviderFactory func(config map[string]string) (ReplyProvider, error)

// ProviderRegistry stores available reply providers by name.
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// GetProvider gets a provider by name
func (r *ProviderRegistry) GetProvider(name string, config map[string]string) (ReplyProvider, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}

	return factory(config)
}

// ErrProviderNotFound is returned when a provider is not found
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "reply provider not found: " + e.Name
}

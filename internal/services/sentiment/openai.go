package sentiment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"go.uber.org/zap"

	"github.com/feedbacklens/feedback-api/internal/models"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second
)

// ErrNoChoices is returned when the API response has no choices
var ErrNoChoices = errors.New("no choices in response")

// ErrNoReplyNeeded signals that the sentiment does not warrant a drafted
// reply. Neutral feedback falls here.
var ErrNoReplyNeeded = errors.New("no reply needed for this sentiment")

// OpenAIProvider drafts replies using OpenAI chat completions.
type OpenAIProvider struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string, model string) *OpenAIProvider {
	return NewOpenAIProviderWithLogger(apiKey, DefaultOpenAIBaseURL, model, nil, false)
}

// NewOpenAIProviderWithLogger creates a new OpenAI provider with logger support
func NewOpenAIProviderWithLogger(apiKey string, baseURL string, model string, logger *zap.Logger, debugMode bool) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	)

	return &OpenAIProvider{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}
}

// DraftReply writes a response matching the feedback's sentiment. Only
// positive and negative feedback produce replies.
func (p *OpenAIProvider) DraftReply(ctx context.Context, feedbackText string, sentiment models.Sentiment) (string, error) {
	var prompt string
	switch sentiment {
	case models.SentimentPositive:
		prompt = fmt.Sprintf("Write an appropriate response for this positive feedback:\n\n%s", feedbackText)
	case models.SentimentNegative:
		prompt = fmt.Sprintf("Write an appropriate response for this negative feedback:\n\n%s", feedbackText)
	default:
		return "", fmt.Errorf("%w: %s", ErrNoReplyNeeded, sentiment)
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("You are a customer support assistant that writes short, professional replies to customer feedback. Thank the customer, address their points, and keep the tone matched to their sentiment."),
		openai.UserMessage(prompt),
	}

	req := openai.ChatCompletionNewParams{
		Model:     shared.ChatModel(p.model),
		Messages:  messages,
		MaxTokens: openai.Int(300),
		// Temperature omitted - use model default to avoid "unsupported_value" errors
	}

	requestID := ExtractRequestID(ctx)
	userID := ExtractUserID(ctx)
	analysisID := ExtractAnalysisID(ctx)

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("operation", "draft_reply"),
			zap.String("model", p.model),
			zap.String("sentiment", string(sentiment)),
			zap.Int("prompt_length", len(prompt)),
			zap.String("prompt_preview", SanitizePrompt(prompt, true)),
			zap.String("user_id", userID),
			zap.String("analysis_id", analysisID),
			zap.String("request_id", requestID),
		)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)

	if err != nil {
		if p.logger != nil && p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("operation", "draft_reply"),
				zap.String("model", p.model),
				zap.Error(err),
				zap.String("user_id", userID),
				zap.String("analysis_id", analysisID),
				zap.String("request_id", requestID),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return "", fmt.Errorf("failed to draft reply: %w", apiErr)
		}
		return "", fmt.Errorf("failed to draft reply: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	content := resp.Choices[0].Message.Content

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("operation", "draft_reply"),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeResponse(content, true)),
			zap.String("user_id", userID),
			zap.String("analysis_id", analysisID),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return content, nil
}

// RegisterOpenAI registers the OpenAI provider with the registry
func RegisterOpenAI(registry *ProviderRegistry) {
	registry.Register("openai", func(config map[string]string) (ReplyProvider, error) {
		apiKey, ok := config["api_key"]
		if !ok || apiKey == "" {
			return nil, fmt.Errorf("openai api_key is required")
		}

		model := config["model"]
		baseURL := config["base_url"]

		return NewOpenAIProviderWithLogger(apiKey, baseURL, model, nil, false), nil
	})
}

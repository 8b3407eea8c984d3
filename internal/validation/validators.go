package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/feedbacklens/feedback-api/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	// These should never fail in normal operation, but log if they do
	if err := Validate.RegisterValidation("sentiment", validateSentiment); err != nil {
		panic(fmt.Sprintf("failed to register sentiment validator: %v", err))
	}
}

// validateSentiment validates that a string is a valid Sentiment enum value
func validateSentiment(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	switch models.Sentiment(value) {
	case models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral:
		return true
	default:
		return false
	}
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	// Trim whitespace
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateSentiment validates a Sentiment string value
func ValidateSentiment(value string) error {
	switch models.Sentiment(value) {
	case models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral:
		return nil
	default:
		return fmt.Errorf("invalid sentiment: %s (must be 'positive', 'negative', or 'neutral')", value)
	}
}

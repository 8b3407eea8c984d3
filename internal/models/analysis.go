package models

import (
	"time"

	"github.com/google/uuid"
)

// Sentiment is the classification outcome for a piece of feedback.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Analysis is a persisted sentiment analysis of one feedback submission.
// Reply is filled in asynchronously by the reply worker when a drafting
// provider is configured.
type Analysis struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	FeedbackText string    `json:"feedback_text"`
	Sentiment    Sentiment `json:"sentiment"`
	Confidence   float64   `json:"confidence"`
	Keywords     []string  `json:"keywords,omitempty"`
	Reply        *string   `json:"reply,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// SentimentSummary aggregates a user's analyses by sentiment.
type SentimentSummary struct {
	Total    int `json:"total"`
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

package sentiment

import (
	"math"
	"regexp"
	"strings"

	"github.com/feedbacklens/feedback-api/internal/models"
)

// Indicator words for the rule-based classifier. Matching is by substring
// on the lowercased text, so "goodness" counts as "good".
var (
	positiveWords = []string{
		"good", "great", "excellent", "amazing", "wonderful", "fantastic",
		"love", "perfect", "awesome", "brilliant", "outstanding", "superb",
		"happy", "satisfied", "pleased", "delighted", "impressed", "recommend",
	}
	negativeWords = []string{
		"bad", "terrible", "awful", "horrible", "disgusting", "hate",
		"worst", "disappointing", "frustrated", "angry", "annoyed", "upset",
		"useless", "broken", "failed", "poor", "slow", "expensive",
	}
)

var wordPattern = regexp.MustCompile(`\b\w+\b`)

const (
	baseConfidence      = 0.6
	confidencePerHit    = 0.1
	maxConfidence       = 0.9
	neutralConfidence   = 0.5
	maxKeywords         = 5
	minKeywordLength    = 4
)

// Classification is the outcome of scoring one piece of feedback.
type Classification struct {
	Sentiment  models.Sentiment
	Confidence float64
	Keywords   []string
}

// Classifier scores feedback text with a keyword heuristic. It is
// deterministic, allocation-light, and needs no external service, which
// keeps the analyze endpoint synchronous.
type Classifier struct{}

// NewClassifier creates a classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify determines sentiment, confidence, and keywords for the text.
// Blank input is neutral with zero confidence.
func (c *Classifier) Classify(text string) Classification {
	if strings.TrimSpace(text) == "" {
		return Classification{Sentiment: models.SentimentNeutral, Confidence: 0.0}
	}

	lower := strings.ToLower(strings.TrimSpace(text))

	positiveCount := countHits(lower, positiveWords)
	negativeCount := countHits(lower, negativeWords)

	result := Classification{Keywords: extractKeywords(lower)}
	switch {
	case positiveCount > negativeCount:
		result.Sentiment = models.SentimentPositive
		result.Confidence = confidence(positiveCount)
	case negativeCount > positiveCount:
		result.Sentiment = models.SentimentNegative
		result.Confidence = confidence(negativeCount)
	default:
		result.Sentiment = models.SentimentNeutral
		result.Confidence = neutralConfidence
	}

	return result
}

func countHits(text string, words []string) int {
	count := 0
	for _, word := range words {
		if strings.Contains(text, word) {
			count++
		}
	}
	return count
}

func confidence(hits int) float64 {
	score := math.Min(maxConfidence, baseConfidence+float64(hits)*confidencePerHit)
	return math.Round(score*100) / 100
}

// extractKeywords returns the first few meaningful words of the text.
func extractKeywords(lower string) []string {
	var keywords []string
	for _, word := range wordPattern.FindAllString(lower, -1) {
		if len(word) < minKeywordLength {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

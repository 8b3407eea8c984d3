package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/feedbacklens/feedback-api/internal/cache"
	"github.com/feedbacklens/feedback-api/internal/database"
	"github.com/feedbacklens/feedback-api/internal/middleware"
	"github.com/feedbacklens/feedback-api/internal/models"
	"github.com/feedbacklens/feedback-api/internal/queue"
	"github.com/feedbacklens/feedback-api/internal/services/sentiment"
	"github.com/feedbacklens/feedback-api/internal/validation"
)

const (
	// MaxFeedbackTextLength is the maximum length for feedback text
	MaxFeedbackTextLength = 10000
	// DefaultPageSize is the default page size for pagination
	DefaultPageSize = 20
	// MaxPageSize is the maximum page size for pagination
	MaxPageSize = 100
)

// SummaryCache is the subset of the Redis cache the analysis handler uses.
// A nil cache degrades to direct database reads.
type SummaryCache interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.SentimentSummary, error)
	Set(ctx context.Context, userID uuid.UUID, summary *models.SentimentSummary) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// AnalysisHandler handles feedback analysis requests
type AnalysisHandler struct {
	classifier   *sentiment.Classifier
	analysisRepo database.AnalysisStore
	jobQueue     queue.JobQueue
	cache        SummaryCache
	logger       *zap.Logger
}

// NewAnalysisHandler creates a new analysis handler. jobQueue and cache may
// be nil; replies are then not drafted and summaries are not cached.
func NewAnalysisHandler(classifier *sentiment.Classifier, analysisRepo database.AnalysisStore, jobQueue queue.JobQueue, summaryCache SummaryCache, logger *zap.Logger) *AnalysisHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisHandler{
		classifier:   classifier,
		analysisRepo: analysisRepo,
		jobQueue:     jobQueue,
		cache:        summaryCache,
		logger:       logger,
	}
}

// RegisterAnalyzeRoute registers the analyze endpoint on the given router.
// The route works both anonymously and authenticated, so the router should
// carry OptionalAuth rather than the strict auth middleware.
func (h *AnalysisHandler) RegisterAnalyzeRoute(r *mux.Router) {
	r.HandleFunc("/analyze", h.Analyze).Methods("POST")
}

// RegisterProtectedRoutes registers routes that require a valid token.
// The router should already carry the auth middleware and /api/v1 prefix.
func (h *AnalysisHandler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/analyses", h.ListAnalyses).Methods("GET")
	r.HandleFunc("/analyses/summary", h.GetSummary).Methods("GET")
}

// AnalyzeRequest represents a feedback analysis request
type AnalyzeRequest struct {
	Text string `json:"text" validate:"required,min=1,max=10000"`
}

// AnalyzeResponse is returned for anonymous analyze calls, which classify
// without persisting.
type AnalyzeResponse struct {
	Sentiment  models.Sentiment `json:"sentiment"`
	Confidence float64          `json:"confidence"`
	Keywords   []string         `json:"keywords,omitempty"`
	Persisted  bool             `json:"persisted"`
}

// ListAnalysesResponse represents the paginated response for listing analyses
type ListAnalysesResponse struct {
	Analyses   []*models.Analysis `json:"analyses"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	Total      int                `json:"total"`
	TotalPages int                `json:"total_pages"`
}

// Analyze classifies a piece of feedback. Anonymous callers get the
// classification back without persistence; authenticated callers get a
// stored analysis, and a reply-drafting job is enqueued for it.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil {
		if maxBytesErr, ok := err.(*http.MaxBytesError); ok {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	if err := validation.Validate.Struct(req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fieldError := range validationErrors {
				respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Validation failed: %s", fieldError.Error()))
				return
			}
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Validation failed")
		return
	}

	req.Text = validation.SanitizeText(req.Text)
	if req.Text == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Text is required and cannot be empty after sanitization")
		return
	}
	if len(req.Text) > MaxFeedbackTextLength {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Text exceeds maximum length of %d characters", MaxFeedbackTextLength))
		return
	}

	result := h.classifier.Classify(req.Text)

	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSON(w, http.StatusOK, AnalyzeResponse{
			Sentiment:  result.Sentiment,
			Confidence: result.Confidence,
			Keywords:   result.Keywords,
			Persisted:  false,
		})
		return
	}

	ctx := r.Context()
	analysis := &models.Analysis{
		ID:           uuid.New(),
		UserID:       user.ID,
		FeedbackText: req.Text,
		Sentiment:    result.Sentiment,
		Confidence:   result.Confidence,
		Keywords:     result.Keywords,
	}

	if err := h.analysisRepo.Create(ctx, analysis); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to store analysis")
		return
	}

	// Side effects are best-effort: a stored analysis is never rolled back
	// because the queue or cache is down.
	h.enqueueReplyJob(ctx, analysis)
	h.invalidateSummary(ctx, user.ID)

	respondJSON(w, http.StatusCreated, analysis)
}

// enqueueReplyJob queues asynchronous reply drafting for the analysis.
// Neutral feedback gets no reply, so no job is queued for it.
func (h *AnalysisHandler) enqueueReplyJob(ctx context.Context, analysis *models.Analysis) {
	if h.jobQueue == nil || analysis.Sentiment == models.SentimentNeutral {
		return
	}

	job := queue.NewJob(queue.JobTypeReplyGeneration, analysis.UserID, &analysis.ID)
	if err := h.jobQueue.Enqueue(ctx, job); err != nil {
		h.logger.Warn("failed to enqueue reply job",
			zap.String("analysis_id", analysis.ID.String()),
			zap.Error(err),
		)
	}
}

func (h *AnalysisHandler) invalidateSummary(ctx context.Context, userID uuid.UUID) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, userID); err != nil {
		h.logger.Warn("failed to invalidate summary cache",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}
}

// ListAnalyses lists analyses for the authenticated user with pagination
func (h *AnalysisHandler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}

	pageSize := DefaultPageSize
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 {
			if parsed > MaxPageSize {
				pageSize = MaxPageSize
			} else {
				pageSize = parsed
			}
		}
	}

	analyses, total, err := h.analysisRepo.GetByUserIDPaginated(r.Context(), user.ID, page, pageSize)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve analyses")
		return
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	respondJSON(w, http.StatusOK, ListAnalysesResponse{
		Analyses:   analyses,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	})
}

// GetSummary returns the user's sentiment summary, served from the cache
// when it holds a fresh entry.
func (h *AnalysisHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	ctx := r.Context()
	if h.cache != nil {
		summary, err := h.cache.Get(ctx, user.ID)
		if err == nil {
			respondJSON(w, http.StatusOK, summary)
			return
		}
		if !errors.Is(err, cache.ErrMiss) {
			// A broken cache falls through to the database.
			h.logger.Warn("summary cache read failed",
				zap.String("user_id", user.ID.String()),
				zap.Error(err),
			)
		}
	}

	summary, err := h.analysisRepo.SummaryByUserID(ctx, user.ID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to compute summary")
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, user.ID, summary); err != nil {
			h.logger.Warn("summary cache write failed",
				zap.String("user_id", user.ID.String()),
				zap.Error(err),
			)
		}
	}

	respondJSON(w, http.StatusOK, summary)
}

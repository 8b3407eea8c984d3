package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/feedbacklens/feedback-api/internal/models"
)

// AnalysisRepository handles persisted sentiment analyses
type AnalysisRepository struct {
	db *DB
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db *DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Create persists a new analysis row
func (r *AnalysisRepository) Create(ctx context.Context, a *models.Analysis) error {
	query := `
		INSERT INTO analyses (id, user_id, feedback_text, sentiment, confidence, keywords, reply, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		a.ID,
		a.UserID,
		a.FeedbackText,
		a.Sentiment,
		a.Confidence,
		strings.Join(a.Keywords, ","),
		a.Reply,
		time.Now(),
	).Scan(&a.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create analysis: %w", err)
	}

	return nil
}

// GetByID retrieves a single analysis
func (r *AnalysisRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Analysis, error) {
	query := `
		SELECT id, user_id, feedback_text, sentiment, confidence, keywords, reply, created_at
		FROM analyses
		WHERE id = $1
	`
	return scanAnalysis(r.db.QueryRowContext(ctx, query, id))
}

// GetByUserIDPaginated returns a page of the user's analyses, newest first,
// along with the total count.
func (r *AnalysisRepository) GetByUserIDPaginated(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*models.Analysis, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analyses WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count analyses: %w", err)
	}

	query := `
		SELECT id, user_id, feedback_text, sentiment, confidence, keywords, reply, created_at
		FROM analyses
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			_ = closeErr
		}
	}()

	var out []*models.Analysis
	for rows.Next() {
		a := &models.Analysis{}
		var keywords string
		if err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.FeedbackText,
			&a.Sentiment,
			&a.Confidence,
			&keywords,
			&a.Reply,
			&a.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan analysis: %w", err)
		}
		a.Keywords = splitKeywords(keywords)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate analyses: %w", err)
	}

	return out, total, nil
}

// SetReply stores a drafted reply on an existing analysis
func (r *AnalysisRepository) SetReply(ctx context.Context, id uuid.UUID, reply string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE analyses SET reply = $2 WHERE id = $1`, id, reply)
	if err != nil {
		return fmt.Errorf("failed to set reply: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("analysis: %w", ErrNotFound)
	}
	return nil
}

// SummaryByUserID aggregates the user's analyses by sentiment
func (r *AnalysisRepository) SummaryByUserID(ctx context.Context, userID uuid.UUID) (*models.SentimentSummary, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE sentiment = 'positive'),
			COUNT(*) FILTER (WHERE sentiment = 'negative'),
			COUNT(*) FILTER (WHERE sentiment = 'neutral')
		FROM analyses
		WHERE user_id = $1
	`
	s := &models.SentimentSummary{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&s.Total, &s.Positive, &s.Negative, &s.Neutral)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize analyses: %w", err)
	}
	return s, nil
}

func scanAnalysis(row *sql.Row) (*models.Analysis, error) {
	a := &models.Analysis{}
	var keywords string
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.FeedbackText,
		&a.Sentiment,
		&a.Confidence,
		&keywords,
		&a.Reply,
		&a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan analysis: %w", err)
	}
	a.Keywords = splitKeywords(keywords)
	return a, nil
}

func splitKeywords(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

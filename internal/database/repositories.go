package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/feedbacklens/feedback-api/internal/models"
)

// UserStore is the credential store the auth core consumes. Implementations
// must enforce email uniqueness atomically (here: a unique index) and report
// it as ErrDuplicateEmail; lookups that match nothing wrap ErrNotFound.
// This interface also enables mock implementations in tests.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateOAuthProfile(ctx context.Context, email string, identity *models.ExternalIdentity) (*models.User, error)
}

// AnalysisStore is the interface for analysis repository operations
type AnalysisStore interface {
	Create(ctx context.Context, a *models.Analysis) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Analysis, error)
	GetByUserIDPaginated(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*models.Analysis, int, error)
	SetReply(ctx context.Context, id uuid.UUID, reply string) error
	SummaryByUserID(ctx context.Context, userID uuid.UUID) (*models.SentimentSummary, error)
}

// Ensure concrete types implement the interfaces
var (
	_ UserStore     = (*UserRepository)(nil)
	_ AnalysisStore = (*AnalysisRepository)(nil)
)

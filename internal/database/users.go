package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/feedbacklens/feedback-api/internal/models"
)

// pq error code for unique constraint violations.
const pqUniqueViolation = "23505"

// UserRepository handles user database operations
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, name, provider, provider_id, avatar_url, created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Provider,
		&user.ProviderID,
		&user.AvatarURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}

// Create inserts a new user. The unique index on email enforces uniqueness
// atomically; a violation is reported as ErrDuplicateEmail regardless of any
// pre-check the caller performed.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, name, provider, provider_id, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Provider,
		user.ProviderID,
		user.AvatarURL,
		now,
		now,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return fmt.Errorf("create user: %w", ErrDuplicateEmail)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a user by email. Emails are compared byte-wise; no
// case folding happens here or anywhere else.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// UpdateOAuthProfile overwrites the federated identity fields of the user
// with the given email. The password hash is deliberately untouched so an
// existing local credential survives an OAuth login with the same email.
func (r *UserRepository) UpdateOAuthProfile(ctx context.Context, email string, identity *models.ExternalIdentity) (*models.User, error) {
	query := `
		UPDATE users
		SET name = $2, provider = $3, provider_id = $4, avatar_url = NULLIF($5, ''), updated_at = $6
		WHERE email = $1
		RETURNING ` + userColumns

	var name *string
	if identity.Name != "" {
		name = &identity.Name
	}

	return scanUser(r.db.QueryRowContext(ctx, query,
		email,
		name,
		identity.Provider,
		identity.Subject,
		identity.AvatarURL,
		time.Now(),
	))
}

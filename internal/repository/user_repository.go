package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/learnhub-dev/learnhub-api/internal/models"
)

// UserRepository persists platform users synced from the identity provider.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, external_uid, email, display_name, photo_url, email_verified, role, created_at, updated_at`

// FindByExternalUID returns a user by identity-provider UID.
func (r *UserRepository) FindByExternalUID(ctx context.Context, uid string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE external_uid = $1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, uid); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID returns a user by platform id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// Upsert creates the user on first sync and refreshes profile fields on
// later syncs, keyed by the external UID.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleStudent
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, external_uid, email, display_name, photo_url, email_verified, role, created_at, updated_at)
        VALUES (:id, :external_uid, :email, :display_name, :photo_url, :email_verified, :role, :created_at, :updated_at)
        ON CONFLICT (external_uid) DO UPDATE SET
            email = EXCLUDED.email,
            display_name = EXCLUDED.display_name,
            photo_url = EXCLUDED.photo_url,
            email_verified = EXCLUDED.email_verified,
            updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	// Re-read so the caller sees the stored row (id/role survive from the
	// first sync when the row already existed).
	stored, err := r.FindByExternalUID(ctx, user.ExternalUID)
	if err != nil {
		return fmt.Errorf("reload synced user: %w", err)
	}
	*user = *stored
	return nil
}

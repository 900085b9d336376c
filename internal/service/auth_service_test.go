package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
)

type fakeUserRepo struct {
	byUID map[string]*models.User
	byID  map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byUID: make(map[string]*models.User), byID: make(map[string]*models.User)}
}

func (f *fakeUserRepo) Upsert(_ context.Context, user *models.User) error {
	if existing, ok := f.byUID[user.ExternalUID]; ok {
		existing.Email = user.Email
		existing.DisplayName = user.DisplayName
		existing.PhotoURL = user.PhotoURL
		existing.EmailVerified = user.EmailVerified
		*user = *existing
		return nil
	}
	user.ID = "user-" + user.ExternalUID
	if user.Role == "" {
		user.Role = models.RoleStudent
	}
	stored := *user
	f.byUID[user.ExternalUID] = &stored
	f.byID[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) FindByExternalUID(_ context.Context, uid string) (*models.User, error) {
	u, ok := f.byUID[uid]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{TokenSecret: "test-secret", TokenExpiry: time.Hour, Issuer: "learnhub-test"}
}

func TestSyncUserIssuesToken(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	name := "Ada"
	resp, err := svc.SyncUser(context.Background(), models.SyncUserRequest{
		ExternalUID: "ext-1",
		Email:       "ada@example.com",
		DisplayName: &name,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, resp.User.Role)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestSyncUserPreservesRoleOnResync(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())
	ctx := context.Background()

	first, err := svc.SyncUser(ctx, models.SyncUserRequest{ExternalUID: "ext-1", Email: "ada@example.com"})
	require.NoError(t, err)
	repo.byUID["ext-1"].Role = models.RoleAdmin

	second, err := svc.SyncUser(ctx, models.SyncUserRequest{ExternalUID: "ext-1", Email: "ada@new.example.com"})
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, models.RoleAdmin, second.User.Role)
	assert.Equal(t, "ada@new.example.com", second.User.Email)
}

func TestSyncUserRejectsBadEmail(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo(), nil, zap.NewNop(), testAuthConfig())

	_, err := svc.SyncUser(context.Background(), models.SyncUserRequest{ExternalUID: "ext-1", Email: "not-an-email"})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	repo := newFakeUserRepo()
	issuer := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())
	verifier := NewAuthService(repo, nil, zap.NewNop(), AuthConfig{TokenSecret: "other-secret", TokenExpiry: time.Hour})

	resp, err := issuer.SyncUser(context.Background(), models.SyncUserRequest{ExternalUID: "ext-1", Email: "ada@example.com"})
	require.NoError(t, err)

	_, err = verifier.ValidateToken(resp.AccessToken)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestProfileNotFound(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo(), nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Profile(context.Background(), "missing")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

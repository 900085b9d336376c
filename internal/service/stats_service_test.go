package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
)

func newStatsFixture(t *testing.T, enrollments *fakeEnrollmentRepo, cache *CacheService) *StatsService {
	t.Helper()
	users := newFakeUserRepo()
	_, err := NewAuthService(users, nil, zap.NewNop(), testAuthConfig()).
		SyncUser(context.Background(), models.SyncUserRequest{ExternalUID: "ext-1", Email: "ada@example.com"})
	require.NoError(t, err)
	return NewStatsService(enrollments, users, cache, "LearnHub", true, zap.NewNop())
}

func TestOverviewAggregates(t *testing.T) {
	repo := newFakeEnrollmentRepo()
	repo.add(&models.Enrollment{LearnerID: "l1", CourseID: "c1", Status: models.EnrollmentStatusActive, ProgressPercent: 25})
	repo.add(&models.Enrollment{LearnerID: "l2", CourseID: "c1", Status: models.EnrollmentStatusActive, ProgressPercent: 50})
	repo.add(&models.Enrollment{LearnerID: "l3", CourseID: "c2", Status: models.EnrollmentStatusCompleted, ProgressPercent: 100})
	repo.add(&models.Enrollment{LearnerID: "l4", CourseID: "c2", Status: models.EnrollmentStatusDropped, ProgressPercent: 10})
	svc := newStatsFixture(t, repo, nil)

	stats, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Dropped)
	assert.Equal(t, 46, stats.AverageProgress)
}

func TestOverviewEmptyPlatform(t *testing.T) {
	svc := newStatsFixture(t, newFakeEnrollmentRepo(), nil)

	stats, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0, stats.AverageProgress)
}

func TestOverviewUsesCache(t *testing.T) {
	repo := newFakeEnrollmentRepo()
	repo.add(&models.Enrollment{LearnerID: "l1", CourseID: "c1", Status: models.EnrollmentStatusActive, ProgressPercent: 40})
	cacheSvc := NewCacheService(&stubCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc := newStatsFixture(t, repo, cacheSvc)
	ctx := context.Background()

	first, err := svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Total)

	// Second read comes from cache and ignores the new enrollment.
	repo.add(&models.Enrollment{LearnerID: "l2", CourseID: "c1", Status: models.EnrollmentStatusActive, ProgressPercent: 0})
	second, err := svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Total)
}

func TestExportByCourseCSV(t *testing.T) {
	repo := newFakeEnrollmentRepo()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.add(&models.Enrollment{LearnerID: "l1", CourseID: "c1", Status: models.EnrollmentStatusActive, ProgressPercent: 75, EnrolledAt: now, LastAccessedAt: now})
	svc := newStatsFixture(t, repo, nil)

	payload, contentType, err := svc.ExportByCourse(context.Background(), "c1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)

	body := string(payload)
	assert.True(t, strings.HasPrefix(body, "Enrollment ID,Learner ID,Status,Progress %,Enrolled At,Last Accessed"))
	assert.Contains(t, body, "l1,active,75,2026-03-01,2026-03-01")
}

func TestExportByCourseWalksFullRoster(t *testing.T) {
	repo := newFakeEnrollmentRepo()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 150; i++ {
		repo.add(&models.Enrollment{
			LearnerID:      fmt.Sprintf("l%d", i),
			CourseID:       "c1",
			Status:         models.EnrollmentStatusActive,
			EnrolledAt:     now,
			LastAccessedAt: now,
		})
	}
	svc := newStatsFixture(t, repo, nil)

	payload, _, err := svc.ExportByCourse(context.Background(), "c1", "csv")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(payload), "\n"), "\n")
	assert.Len(t, lines, 151)
}

func TestExportByCoursePDF(t *testing.T) {
	repo := newFakeEnrollmentRepo()
	repo.add(&models.Enrollment{LearnerID: "l1", CourseID: "c1", Status: models.EnrollmentStatusActive, ProgressPercent: 75})
	svc := newStatsFixture(t, repo, nil)

	payload, contentType, err := svc.ExportByCourse(context.Background(), "c1", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
}

func TestExportByCourseUnknownFormat(t *testing.T) {
	svc := newStatsFixture(t, newFakeEnrollmentRepo(), nil)

	_, _, err := svc.ExportByCourse(context.Background(), "c1", "xlsx")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCertificateForCompletedEnrollment(t *testing.T) {
	repo := newFakeEnrollmentRepo()
	completedAt := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	enr := repo.add(&models.Enrollment{
		LearnerID:       "user-ext-1",
		CourseID:        "c1",
		Status:          models.EnrollmentStatusCompleted,
		ProgressPercent: 100,
		CompletedAt:     &completedAt,
	})
	svc := newStatsFixture(t, repo, nil)

	payload, err := svc.Certificate(context.Background(), enr.ID, "user-ext-1")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
}

func TestCertificateRejectsIncomplete(t *testing.T) {
	repo := newFakeEnrollmentRepo()
	enr := repo.add(&models.Enrollment{LearnerID: "user-ext-1", CourseID: "c1", Status: models.EnrollmentStatusActive, ProgressPercent: 50})
	svc := newStatsFixture(t, repo, nil)

	_, err := svc.Certificate(context.Background(), enr.ID, "user-ext-1")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestCertificateRequiresOwner(t *testing.T) {
	repo := newFakeEnrollmentRepo()
	completedAt := time.Now().UTC()
	enr := repo.add(&models.Enrollment{LearnerID: "user-ext-1", CourseID: "c1", Status: models.EnrollmentStatusCompleted, CompletedAt: &completedAt})
	svc := newStatsFixture(t, repo, nil)

	_, err := svc.Certificate(context.Background(), enr.ID, "someone-else")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsForLearnerAndCourse(ctx context.Context, learnerID, courseID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	CompleteLesson(ctx context.Context, id string, lessonIndex, totalLessons int, now time.Time) (*models.Enrollment, bool, error)
	TouchAccess(ctx context.Context, id string, ts time.Time) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
	CountByDay(ctx context.Context, since time.Time) ([]models.EnrollmentDayCount, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	LessonCount(ctx context.Context, courseID string) (int, error)
}

// EnrollRequest describes enrollment creation input.
type EnrollRequest struct {
	LearnerID string `json:"-" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
}

// CompleteLessonRequest marks one lesson finished for an enrollment.
type CompleteLessonRequest struct {
	LessonIndex *int `json:"lesson_index" validate:"required"`
}

// EnrollmentService orchestrates enrollment, lesson-completion, and
// access-touch workflows. Identity arrives as explicit arguments; the
// service never reads ambient auth state.
type EnrollmentService struct {
	repo      enrollmentRepository
	courses   courseReader
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, courses courseReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      repo,
		courses:   courses,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Enroll registers a learner to a published course.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Published {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}

	exists, err := s.repo.ExistsForLearnerAndCourse(ctx, req.LearnerID, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.ErrAlreadyEnrolled
	}

	enrollment := &models.Enrollment{
		LearnerID:  req.LearnerID,
		CourseID:   req.CourseID,
		Status:     models.EnrollmentStatusActive,
		EnrolledAt: s.now(),
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.metrics.RecordEnrollment()
	s.invalidateStats(ctx)
	s.logger.Info("learner enrolled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("learner_id", req.LearnerID),
		zap.String("course_id", req.CourseID))

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// MarkLessonComplete inserts a lesson into the completion set and recomputes
// progress. Re-marking a present lesson returns the unchanged enrollment.
func (s *EnrollmentService) MarkLessonComplete(ctx context.Context, enrollmentID string, req CompleteLessonRequest, learnerID string) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid completion payload")
	}
	lessonIndex := *req.LessonIndex

	enrollment, err := s.findOwned(ctx, enrollmentID, learnerID)
	if err != nil {
		return nil, err
	}

	totalLessons, err := s.courses.LessonCount(ctx, enrollment.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course lessons")
	}
	if lessonIndex < 0 || lessonIndex >= totalLessons {
		return nil, appErrors.ErrInvalidLesson
	}

	// Duplicate marks are successes even when the enrollment has since
	// completed; only new marks require an active enrollment. The repository
	// re-checks both under the row lock.
	if !enrollment.HasLesson(lessonIndex) && enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.ErrEnrollmentNotActive
	}

	updated, inserted, err := s.repo.CompleteLesson(ctx, enrollmentID, lessonIndex, totalLessons, s.now())
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete lesson")
	}

	if inserted {
		completed := updated.Status == models.EnrollmentStatusCompleted
		s.metrics.RecordLessonCompleted(completed)
		s.invalidateStats(ctx)
		s.logger.Info("lesson completed",
			zap.String("enrollment_id", enrollmentID),
			zap.Int("lesson_index", lessonIndex),
			zap.Int("progress_percent", updated.ProgressPercent),
			zap.Bool("course_completed", completed))
	}
	return updated, nil
}

// TouchAccess stamps last_accessed_at on an owned enrollment. It never fails
// on a valid, owned enrollment regardless of status.
func (s *EnrollmentService) TouchAccess(ctx context.Context, enrollmentID, learnerID string) (*models.Enrollment, error) {
	enrollment, err := s.findOwned(ctx, enrollmentID, learnerID)
	if err != nil {
		return nil, err
	}

	ts := s.now()
	if err := s.repo.TouchAccess(ctx, enrollmentID, ts); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update access time")
	}
	enrollment.LastAccessedAt = ts
	return enrollment, nil
}

// Get returns an enrollment with course detail for its owner or an admin.
func (s *EnrollmentService) Get(ctx context.Context, enrollmentID, callerID string, callerRole models.UserRole) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if detail.LearnerID != callerID && callerRole != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	return detail, nil
}

// ListMyCourses returns the learner's enrollments with course summaries.
func (s *EnrollmentService) ListMyCourses(ctx context.Context, learnerID string, status models.EnrollmentStatus, page, pageSize int) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if status != "" && !status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown enrollment status")
	}
	filter := models.EnrollmentFilter{LearnerID: learnerID, Status: status, Page: page, PageSize: pageSize}
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return enrollments, pagination, nil
}

// ListByCourse returns all enrollments for a course (admin view).
func (s *EnrollmentService) ListByCourse(ctx context.Context, courseID string, page, pageSize int) ([]models.EnrollmentDetail, *models.Pagination, error) {
	filter := models.EnrollmentFilter{CourseID: courseID, Page: page, PageSize: pageSize}
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return enrollments, pagination, nil
}

// Drop transitions an active enrollment to dropped. The dropped state is
// terminal; re-enrolling afterwards creates a fresh enrollment.
func (s *EnrollmentService) Drop(ctx context.Context, enrollmentID, learnerID string) (*models.Enrollment, error) {
	enrollment, err := s.findOwned(ctx, enrollmentID, learnerID)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.ErrEnrollmentNotActive
	}
	if err := s.repo.UpdateStatus(ctx, enrollmentID, models.EnrollmentStatusDropped); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
	}
	enrollment.Status = models.EnrollmentStatusDropped
	s.invalidateStats(ctx)
	return enrollment, nil
}

// Analytics returns per-day enrollment counts for the trailing rangeDays.
func (s *EnrollmentService) Analytics(ctx context.Context, rangeDays int) ([]models.EnrollmentDayCount, error) {
	if rangeDays <= 0 || rangeDays > 365 {
		rangeDays = 30
	}
	since := s.now().AddDate(0, 0, -rangeDays)

	cacheKey := analyticsCacheKey(rangeDays)
	var cached []models.EnrollmentDayCount
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	counts, err := s.repo.CountByDay(ctx, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment analytics")
	}
	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, counts, 0); err != nil {
			s.logger.Warn("failed to cache enrollment analytics", zap.Error(err))
		}
	}
	return counts, nil
}

func (s *EnrollmentService) findOwned(ctx context.Context, enrollmentID, learnerID string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.LearnerID != learnerID {
		return nil, appErrors.ErrForbidden
	}
	return enrollment, nil
}

func (s *EnrollmentService) invalidateStats(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "stats:*"); err != nil {
		s.logger.Warn("failed to invalidate stats cache", zap.Error(err))
	}
}

func analyticsCacheKey(rangeDays int) string {
	return fmt.Sprintf("stats:analytics:%d", rangeDays)
}

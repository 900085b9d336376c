package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
	"github.com/learnhub-dev/learnhub-api/pkg/video"
)

type courseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	Create(ctx context.Context, course *models.Course) error
}

// LessonPayload is one lesson of a course creation request.
type LessonPayload struct {
	Title           string `json:"title" validate:"required"`
	VideoURL        string `json:"video_url"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0"`
}

// CreateCourseRequest describes course creation input.
type CreateCourseRequest struct {
	InstructorID string          `json:"instructor_id" validate:"required"`
	Title        string          `json:"title" validate:"required"`
	Description  string          `json:"description"`
	Category     string          `json:"category" validate:"required"`
	Price        float64         `json:"price" validate:"gte=0"`
	Thumbnail    string          `json:"thumbnail"`
	Published    bool            `json:"published"`
	Lessons      []LessonPayload `json:"lessons" validate:"required,min=1,dive"`
}

// CourseService serves the catalog. Students only see published courses,
// and lesson video URLs are decorated with a playable embed form on read.
type CourseService struct {
	repo      courseRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, validator: validate, logger: logger}
}

// List returns catalog entries. Non-admin callers only see published courses.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter, callerRole models.UserRole) ([]models.Course, int, error) {
	if callerRole != models.RoleAdmin {
		filter.PublishedOnly = true
	}
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, total, nil
}

// Get returns a course with lessons. Unpublished courses are hidden from
// non-admin callers as if they did not exist.
func (s *CourseService) Get(ctx context.Context, id string, callerRole models.UserRole) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Published && callerRole != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}

	for i := range course.Lessons {
		if embed, ok := video.ResolveEmbedURL(course.Lessons[i].VideoURL); ok {
			course.Lessons[i].EmbedURL = embed
		}
	}
	return course, nil
}

// Create persists a new course with its lessons. Admin only.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest, callerRole models.UserRole) (*models.Course, error) {
	if callerRole != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course := &models.Course{
		InstructorID: req.InstructorID,
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Price:        req.Price,
		Thumbnail:    req.Thumbnail,
		Published:    req.Published,
	}
	course.Lessons = make([]models.Lesson, len(req.Lessons))
	for i, lesson := range req.Lessons {
		course.Lessons[i] = models.Lesson{
			OrderIndex:      i,
			Title:           lesson.Title,
			VideoURL:        lesson.VideoURL,
			DurationMinutes: lesson.DurationMinutes,
		}
	}

	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("title", course.Title))
	return course, nil
}

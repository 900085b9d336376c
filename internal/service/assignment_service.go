package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
)

type assignmentRepository interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	ListByLearner(ctx context.Context, learnerID string) ([]models.AssignmentDetail, error)
	ListAll(ctx context.Context) ([]models.AssignmentDetail, error)
}

// SubmitAssignmentRequest carries a learner's coursework submission.
type SubmitAssignmentRequest struct {
	CourseID       string  `json:"course_id" validate:"required"`
	Title          string  `json:"title" validate:"required"`
	SubmissionLink string  `json:"submission_link" validate:"required,url"`
	Description    *string `json:"description,omitempty"`
}

// AssignmentService accepts coursework submissions and serves the learner and
// admin review listings.
type AssignmentService struct {
	assignments assignmentRepository
	courses     quizCourseReader
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewAssignmentService constructs AssignmentService.
func NewAssignmentService(assignments assignmentRepository, courses quizCourseReader, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		assignments: assignments,
		courses:     courses,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Submit records a learner's submission against a published course. Learners
// may submit more than once; each submission is kept as its own record.
func (s *AssignmentService) Submit(ctx context.Context, req SubmitAssignmentRequest, learnerID string) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
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

	assignment := &models.Assignment{
		CourseID:       req.CourseID,
		LearnerID:      learnerID,
		Title:          req.Title,
		SubmissionLink: req.SubmissionLink,
		Description:    req.Description,
		SubmittedAt:    s.now(),
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	s.logger.Info("assignment submitted",
		zap.String("assignment_id", assignment.ID),
		zap.String("learner_id", learnerID),
		zap.String("course_id", req.CourseID),
	)
	return assignment, nil
}

// MyAssignments returns the learner's own submissions.
func (s *AssignmentService) MyAssignments(ctx context.Context, learnerID string) ([]models.AssignmentDetail, error) {
	assignments, err := s.assignments.ListByLearner(ctx, learnerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// ListAll returns every submission for the admin review queue.
func (s *AssignmentService) ListAll(ctx context.Context) ([]models.AssignmentDetail, error) {
	assignments, err := s.assignments.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

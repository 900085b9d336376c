package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	"github.com/learnhub-dev/learnhub-api/internal/progress"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
)

type quizRepository interface {
	FindByID(ctx context.Context, id string) (*models.Quiz, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error)
	Create(ctx context.Context, quiz *models.Quiz) error
	Update(ctx context.Context, quiz *models.Quiz) error
	Delete(ctx context.Context, id string) error
}

type quizResultRepository interface {
	ExistsForLearner(ctx context.Context, quizID, learnerID string) (bool, error)
	Create(ctx context.Context, result *models.QuizResult) error
	ListByLearner(ctx context.Context, learnerID string) ([]models.QuizResultDetail, error)
}

type quizCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// QuestionPayload is one question of a create/update request.
type QuestionPayload struct {
	Text         string   `json:"text" validate:"required"`
	Options      []string `json:"options" validate:"required"`
	CorrectIndex int      `json:"correct_index"`
}

// QuizPayload describes quiz creation/update input.
type QuizPayload struct {
	CourseID  string            `json:"course_id" validate:"required"`
	Title     string            `json:"title" validate:"required"`
	Questions []QuestionPayload `json:"questions" validate:"required,min=1"`
}

// SubmitQuizRequest carries a learner's answer vector.
type SubmitQuizRequest struct {
	Answers []int `json:"answers" validate:"required"`
}

// QuizService orchestrates quiz management, fetching, and one-shot grading.
type QuizService struct {
	quizzes   quizRepository
	results   quizResultRepository
	courses   quizCourseReader
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewQuizService constructs QuizService.
func NewQuizService(quizzes quizRepository, results quizResultRepository, courses quizCourseReader, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *QuizService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizService{
		quizzes:   quizzes,
		results:   results,
		courses:   courses,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and persists a quiz. Admin only.
func (s *QuizService) Create(ctx context.Context, req QuizPayload, callerRole models.UserRole) (*models.Quiz, error) {
	if callerRole != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz payload")
	}
	if err := validateQuestions(req.Questions); err != nil {
		return nil, err
	}

	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	quiz := &models.Quiz{CourseID: req.CourseID, Title: req.Title, Questions: toQuestions(req.Questions)}
	if err := s.quizzes.Create(ctx, quiz); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create quiz")
	}
	return quiz, nil
}

// Update replaces a quiz's title and question bank. Admin only.
func (s *QuizService) Update(ctx context.Context, quizID string, req QuizPayload, callerRole models.UserRole) (*models.Quiz, error) {
	if callerRole != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz payload")
	}
	if err := validateQuestions(req.Questions); err != nil {
		return nil, err
	}

	existing, err := s.quizzes.FindByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}

	existing.Title = req.Title
	existing.Questions = toQuestions(req.Questions)
	if err := s.quizzes.Update(ctx, existing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update quiz")
	}
	return existing, nil
}

// Delete removes a quiz. Admin only.
func (s *QuizService) Delete(ctx context.Context, quizID string, callerRole models.UserRole) error {
	if callerRole != models.RoleAdmin {
		return appErrors.ErrForbidden
	}
	if _, err := s.quizzes.FindByID(ctx, quizID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	if err := s.quizzes.Delete(ctx, quizID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete quiz")
	}
	return nil
}

// Get returns a quiz; students receive the sanitized view.
func (s *QuizService) Get(ctx context.Context, quizID string, callerRole models.UserRole) (interface{}, error) {
	quiz, err := s.quizzes.FindByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	if callerRole == models.RoleAdmin {
		return quiz, nil
	}
	return quiz.Sanitized(), nil
}

// ListByCourse returns a course's quizzes; students receive sanitized views.
func (s *QuizService) ListByCourse(ctx context.Context, courseID string, callerRole models.UserRole) (interface{}, error) {
	quizzes, err := s.quizzes.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list quizzes")
	}
	if callerRole == models.RoleAdmin {
		return quizzes, nil
	}
	views := make([]models.QuizView, len(quizzes))
	for i := range quizzes {
		views[i] = quizzes[i].Sanitized()
	}
	return views, nil
}

// Submit grades a learner's answer vector against the question bank and
// persists the immutable result. Quizzes are one-attempt.
func (s *QuizService) Submit(ctx context.Context, quizID string, req SubmitQuizRequest, learnerID string) (*models.QuizResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	quiz, err := s.quizzes.FindByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}

	if len(quiz.Questions) == 0 {
		s.metrics.RecordQuizSubmission("rejected", 0)
		return nil, appErrors.ErrInvalidQuiz
	}
	if len(req.Answers) != len(quiz.Questions) {
		s.metrics.RecordQuizSubmission("rejected", 0)
		return nil, appErrors.ErrInvalidSubmission
	}
	for _, answer := range req.Answers {
		if answer == models.UnansweredSentinel {
			s.metrics.RecordQuizSubmission("rejected", 0)
			return nil, appErrors.ErrIncompleteSubmission
		}
	}

	exists, err := s.results.ExistsForLearner(ctx, quizID, learnerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check prior submission")
	}
	if exists {
		return nil, appErrors.ErrAlreadySubmitted
	}

	result := grade(quiz, req.Answers, learnerID, s.now())
	if err := s.results.Create(ctx, result); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store quiz result")
	}

	s.metrics.RecordQuizSubmission("graded", result.Score)
	s.logger.Info("quiz graded",
		zap.String("quiz_id", quizID),
		zap.String("learner_id", learnerID),
		zap.Int("score", result.Score),
		zap.Int("correct", result.CorrectCount))
	return result, nil
}

// MyResults returns the learner's submissions with quiz context.
func (s *QuizService) MyResults(ctx context.Context, learnerID string) ([]models.QuizResultDetail, error) {
	results, err := s.results.ListByLearner(ctx, learnerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list quiz results")
	}
	return results, nil
}

// grade scores an answer vector: answer i is correct iff it equals question
// i's correct index. No partial credit, no negative scoring.
func grade(quiz *models.Quiz, answers []int, learnerID string, submittedAt time.Time) *models.QuizResult {
	correct := 0
	stored := make([]int64, len(answers))
	for i, answer := range answers {
		stored[i] = int64(answer)
		if answer == quiz.Questions[i].CorrectIndex {
			correct++
		}
	}
	return &models.QuizResult{
		QuizID:         quiz.ID,
		LearnerID:      learnerID,
		Answers:        pq.Int64Array(stored),
		CorrectCount:   correct,
		TotalQuestions: len(quiz.Questions),
		Score:          progress.Percent(correct, len(quiz.Questions)),
		SubmittedAt:    submittedAt,
	}
}

func validateQuestions(questions []QuestionPayload) error {
	for _, q := range questions {
		if len(q.Options) < 2 {
			return appErrors.Clone(appErrors.ErrInvalidQuestion, "each question needs at least two options")
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return appErrors.Clone(appErrors.ErrInvalidQuestion, "correct index out of range")
		}
	}
	return nil
}

func toQuestions(payloads []QuestionPayload) []models.Question {
	questions := make([]models.Question, len(payloads))
	for i, p := range payloads {
		questions[i] = models.Question{
			OrderIndex:   i,
			Text:         p.Text,
			Options:      pq.StringArray(p.Options),
			CorrectIndex: p.CorrectIndex,
		}
	}
	return questions
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
)

// QuizResultRepository persists immutable quiz results.
type QuizResultRepository struct {
	db *sqlx.DB
}

// NewQuizResultRepository constructs the repository.
func NewQuizResultRepository(db *sqlx.DB) *QuizResultRepository {
	return &QuizResultRepository{db: db}
}

// ExistsForLearner checks whether the learner already submitted this quiz.
func (r *QuizResultRepository) ExistsForLearner(ctx context.Context, quizID, learnerID string) (bool, error) {
	const query = `SELECT 1 FROM quiz_results WHERE quiz_id = $1 AND learner_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, quizID, learnerID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check quiz result exists: %w", err)
	}
	return true, nil
}

// Create persists a result. The unique index on (quiz_id, learner_id) makes
// a concurrent duplicate submission surface as ErrAlreadySubmitted, keeping
// the first stored result untouched.
func (r *QuizResultRepository) Create(ctx context.Context, result *models.QuizResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.SubmittedAt.IsZero() {
		result.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO quiz_results (id, quiz_id, learner_id, answers, correct_count, total_questions, score, submitted_at)
        VALUES (:id, :quiz_id, :learner_id, :answers, :correct_count, :total_questions, :score, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		if isUniqueViolation(err) {
			return appErrors.ErrAlreadySubmitted
		}
		return fmt.Errorf("create quiz result: %w", err)
	}
	return nil
}

// ListByLearner returns the learner's results enriched with quiz context.
func (r *QuizResultRepository) ListByLearner(ctx context.Context, learnerID string) ([]models.QuizResultDetail, error) {
	const query = `SELECT qr.id, qr.quiz_id, qr.learner_id, qr.answers, qr.correct_count, qr.total_questions, qr.score, qr.submitted_at,
        q.title AS quiz_title, q.course_id AS course_id, c.title AS course_title
        FROM quiz_results qr
        JOIN quizzes q ON q.id = qr.quiz_id
        JOIN courses c ON c.id = q.course_id
        WHERE qr.learner_id = $1
        ORDER BY qr.submitted_at DESC`
	var results []models.QuizResultDetail
	if err := r.db.SelectContext(ctx, &results, query, learnerID); err != nil {
		return nil, fmt.Errorf("list quiz results: %w", err)
	}
	return results, nil
}

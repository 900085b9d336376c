package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/learnhub-dev/learnhub-api/internal/models"
)

// QuizRepository persists quizzes and their question banks.
type QuizRepository struct {
	db *sqlx.DB
}

// NewQuizRepository constructs the repository.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// FindByID returns a quiz with its ordered questions.
func (r *QuizRepository) FindByID(ctx context.Context, id string) (*models.Quiz, error) {
	const query = `SELECT id, course_id, title, created_at, updated_at FROM quizzes WHERE id = $1`
	var quiz models.Quiz
	if err := r.db.GetContext(ctx, &quiz, query, id); err != nil {
		return nil, err
	}

	questions, err := r.questions(ctx, id)
	if err != nil {
		return nil, err
	}
	quiz.Questions = questions
	return &quiz, nil
}

// ListByCourse returns all quizzes for a course, questions included.
func (r *QuizRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error) {
	const query = `SELECT id, course_id, title, created_at, updated_at FROM quizzes WHERE course_id = $1 ORDER BY created_at`
	var quizzes []models.Quiz
	if err := r.db.SelectContext(ctx, &quizzes, query, courseID); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	for i := range quizzes {
		questions, err := r.questions(ctx, quizzes[i].ID)
		if err != nil {
			return nil, err
		}
		quizzes[i].Questions = questions
	}
	return quizzes, nil
}

// Create persists a quiz and its questions in one transaction.
func (r *QuizRepository) Create(ctx context.Context, quiz *models.Quiz) error {
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create quiz: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO quizzes (id, course_id, title, created_at, updated_at) VALUES ($1, $2, $3, NOW(), NOW())`
	if _, err := tx.ExecContext(ctx, query, quiz.ID, quiz.CourseID, quiz.Title); err != nil {
		return fmt.Errorf("create quiz: %w", err)
	}

	if err := insertQuestions(ctx, tx, quiz.ID, quiz.Questions); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create quiz: %w", err)
	}
	return nil
}

// Update replaces the quiz title and question bank in one transaction.
func (r *QuizRepository) Update(ctx context.Context, quiz *models.Quiz) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update quiz: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `UPDATE quizzes SET title = $2, updated_at = NOW() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, quiz.ID, quiz.Title); err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}

	const clear = `DELETE FROM quiz_questions WHERE quiz_id = $1`
	if _, err := tx.ExecContext(ctx, clear, quiz.ID); err != nil {
		return fmt.Errorf("clear quiz questions: %w", err)
	}

	if err := insertQuestions(ctx, tx, quiz.ID, quiz.Questions); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update quiz: %w", err)
	}
	return nil
}

// Delete removes a quiz and its questions.
func (r *QuizRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM quizzes WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	return nil
}

func (r *QuizRepository) questions(ctx context.Context, quizID string) ([]models.Question, error) {
	const query = `SELECT quiz_id, order_index, text, options, correct_index
        FROM quiz_questions WHERE quiz_id = $1 ORDER BY order_index`
	var questions []models.Question
	if err := r.db.SelectContext(ctx, &questions, query, quizID); err != nil {
		return nil, fmt.Errorf("load quiz questions: %w", err)
	}
	return questions, nil
}

func insertQuestions(ctx context.Context, tx *sqlx.Tx, quizID string, questions []models.Question) error {
	const query = `INSERT INTO quiz_questions (quiz_id, order_index, text, options, correct_index)
        VALUES ($1, $2, $3, $4, $5)`
	for i, q := range questions {
		if _, err := tx.ExecContext(ctx, query, quizID, i, q.Text, q.Options, q.CorrectIndex); err != nil {
			return fmt.Errorf("insert quiz question: %w", err)
		}
	}
	return nil
}

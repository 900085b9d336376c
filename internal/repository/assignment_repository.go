package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/learnhub-dev/learnhub-api/internal/models"
)

// AssignmentRepository persists learner assignment submissions.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create persists a submission.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.SubmittedAt.IsZero() {
		assignment.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO assignments (id, course_id, learner_id, title, submission_link, description, submitted_at)
        VALUES (:id, :course_id, :learner_id, :title, :submission_link, :description, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// ListByLearner returns the learner's submissions, newest first.
func (r *AssignmentRepository) ListByLearner(ctx context.Context, learnerID string) ([]models.AssignmentDetail, error) {
	const query = `SELECT a.id, a.course_id, a.learner_id, a.title, a.submission_link, a.description, a.submitted_at,
        c.title AS course_title, u.display_name AS learner_name, u.email AS learner_email
        FROM assignments a
        JOIN courses c ON c.id = a.course_id
        JOIN users u ON u.id = a.learner_id
        WHERE a.learner_id = $1
        ORDER BY a.submitted_at DESC`
	var assignments []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, learnerID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// ListAll returns every submission for the admin review queue, newest first.
func (r *AssignmentRepository) ListAll(ctx context.Context) ([]models.AssignmentDetail, error) {
	const query = `SELECT a.id, a.course_id, a.learner_id, a.title, a.submission_link, a.description, a.submitted_at,
        c.title AS course_title, u.display_name AS learner_name, u.email AS learner_email
        FROM assignments a
        JOIN courses c ON c.id = a.course_id
        JOIN users u ON u.id = a.learner_id
        ORDER BY a.submitted_at DESC`
	var assignments []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query); err != nil {
		return nil, fmt.Errorf("list all assignments: %w", err)
	}
	return assignments, nil
}

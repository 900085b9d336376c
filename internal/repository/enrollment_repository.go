package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	"github.com/learnhub-dev/learnhub-api/internal/progress"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
)

// EnrollmentRepository handles persistence of enrollments and their
// lesson-completion sets.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, learner_id, course_id, status, progress_percent, enrolled_at, last_accessed_at, completed_at`

// FindByID returns an enrollment with its completion set.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	lessons, err := r.completedLessons(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	enrollment.CompletedLessons = lessons
	return &enrollment, nil
}

// FindDetailByID returns an enrollment joined with its course summary.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.learner_id, e.course_id, e.status, e.progress_percent, e.enrolled_at, e.last_accessed_at, e.completed_at,
        c.title AS course_title, c.category AS course_category, c.thumbnail AS course_thumbnail,
        (SELECT COUNT(*) FROM course_lessons cl WHERE cl.course_id = c.id) AS total_lessons
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	lessons, err := r.completedLessons(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	detail.CompletedLessons = lessons
	return &detail, nil
}

// List returns enrollments filtered by the provided criteria, joined with
// course summaries.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e JOIN courses c ON c.id = e.course_id`
	var conditions []string
	var args []interface{}

	if filter.LearnerID != "" {
		conditions = append(conditions, fmt.Sprintf("e.learner_id = $%d", len(args)+1))
		args = append(args, filter.LearnerID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.learner_id, e.course_id, e.status, e.progress_percent, e.enrolled_at, e.last_accessed_at, e.completed_at,
        c.title AS course_title, c.category AS course_category, c.thumbnail AS course_thumbnail,
        (SELECT COUNT(*) FROM course_lessons cl WHERE cl.course_id = c.id) AS total_lessons
        %s ORDER BY e.last_accessed_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ExistsForLearnerAndCourse checks whether an active or completed enrollment
// already exists for the pair. Dropped enrollments do not block re-enrolling.
func (r *EnrollmentRepository) ExistsForLearnerAndCourse(ctx context.Context, learnerID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE learner_id = $1 AND course_id = $2 AND status IN ($3, $4) LIMIT 1`
	var exists int
	err := r.db.GetContext(ctx, &exists, query, learnerID, courseID, models.EnrollmentStatusActive, models.EnrollmentStatusCompleted)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment exists: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record. A concurrent duplicate for the
// same learner and course surfaces as ErrAlreadyEnrolled via the partial
// unique index.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	if enrollment.LastAccessedAt.IsZero() {
		enrollment.LastAccessedAt = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	const query = `INSERT INTO enrollments (id, learner_id, course_id, status, progress_percent, enrolled_at, last_accessed_at, completed_at)
        VALUES (:id, :learner_id, :course_id, :status, :progress_percent, :enrolled_at, :last_accessed_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		if isUniqueViolation(err) {
			return appErrors.ErrAlreadyEnrolled
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// CompleteLesson inserts a lesson into the completion set and recomputes the
// derived fields in one transaction, holding a row lock on the enrollment so
// concurrent marks on the same aggregate cannot double-count. It reports
// whether the set actually grew; re-marking a present lesson is a no-op.
func (r *EnrollmentRepository) CompleteLesson(ctx context.Context, id string, lessonIndex, totalLessons int, now time.Time) (*models.Enrollment, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin complete lesson: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1 FOR UPDATE`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := tx.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, false, err
	}

	lessons, err := r.completedLessons(ctx, tx, id)
	if err != nil {
		return nil, false, err
	}
	enrollment.CompletedLessons = lessons

	if enrollment.HasLesson(lessonIndex) {
		return &enrollment, false, nil
	}

	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, false, appErrors.ErrEnrollmentNotActive
	}

	const insertLesson = `INSERT INTO enrollment_lessons (enrollment_id, lesson_index, completed_at) VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, insertLesson, id, lessonIndex, now); err != nil {
		return nil, false, fmt.Errorf("insert lesson completion: %w", err)
	}
	enrollment.CompletedLessons = append(enrollment.CompletedLessons, models.CompletedLesson{
		EnrollmentID: id,
		LessonIndex:  lessonIndex,
		CompletedAt:  now,
	})

	enrollment.ProgressPercent = progress.Percent(len(enrollment.CompletedLessons), totalLessons)
	if enrollment.ProgressPercent == 100 {
		enrollment.Status = models.EnrollmentStatusCompleted
		if enrollment.CompletedAt == nil {
			completedAt := now
			enrollment.CompletedAt = &completedAt
		}
	}

	const update = `UPDATE enrollments SET progress_percent = $2, status = $3, completed_at = $4, last_accessed_at = $5 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, id, enrollment.ProgressPercent, enrollment.Status, enrollment.CompletedAt, now); err != nil {
		return nil, false, fmt.Errorf("update enrollment progress: %w", err)
	}
	enrollment.LastAccessedAt = now

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit complete lesson: %w", err)
	}
	return &enrollment, true, nil
}

// TouchAccess stamps last_accessed_at without touching derived fields.
func (r *EnrollmentRepository) TouchAccess(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE enrollments SET last_accessed_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("touch enrollment access: %w", err)
	}
	return nil
}

// UpdateStatus transitions an enrollment's status.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// ListAll returns bare enrollment rows for aggregate stats.
func (r *EnrollmentRepository) ListAll(ctx context.Context) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query); err != nil {
		return nil, fmt.Errorf("list all enrollments: %w", err)
	}
	return enrollments, nil
}

// CountByDay returns per-day enrollment counts for the trailing range.
func (r *EnrollmentRepository) CountByDay(ctx context.Context, since time.Time) ([]models.EnrollmentDayCount, error) {
	const query = `SELECT date_trunc('day', enrolled_at) AS day, COUNT(*) AS count
        FROM enrollments WHERE enrolled_at >= $1 GROUP BY day ORDER BY day`
	var counts []models.EnrollmentDayCount
	if err := r.db.SelectContext(ctx, &counts, query, since); err != nil {
		return nil, fmt.Errorf("count enrollments by day: %w", err)
	}
	return counts, nil
}

type sqlxQueryer interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func (r *EnrollmentRepository) completedLessons(ctx context.Context, q sqlxQueryer, enrollmentID string) ([]models.CompletedLesson, error) {
	const query = `SELECT enrollment_id, lesson_index, completed_at FROM enrollment_lessons WHERE enrollment_id = $1 ORDER BY lesson_index`
	var lessons []models.CompletedLesson
	if err := q.SelectContext(ctx, &lessons, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("load completed lessons: %w", err)
	}
	return lessons, nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

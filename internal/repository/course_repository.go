package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/learnhub-dev/learnhub-api/internal/models"
)

// CourseRepository reads the course catalog. The catalog is owned by an
// external authoring workflow; this side only needs lookups plus a thin
// create/update path for seeding.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = `id, instructor_id, title, description, category, price, thumbnail, published, created_at, updated_at`

// FindByID returns a course with its ordered lessons.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}

	const lessonQuery = `SELECT course_id, order_index, title, video_url, duration_minutes
        FROM course_lessons WHERE course_id = $1 ORDER BY order_index`
	if err := r.db.SelectContext(ctx, &course.Lessons, lessonQuery, id); err != nil {
		return nil, fmt.Errorf("load course lessons: %w", err)
	}
	return &course, nil
}

// List returns catalog entries without lesson bodies.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var conditions []string
	var args []interface{}

	if filter.PublishedOnly {
		conditions = append(conditions, "published = TRUE")
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("title ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
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

	query := fmt.Sprintf(`SELECT %s FROM courses%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		courseColumns, clause, size, offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM courses%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// LessonCount returns the number of lessons in a course.
func (r *CourseRepository) LessonCount(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM course_lessons WHERE course_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, courseID); err != nil {
		return 0, fmt.Errorf("count course lessons: %w", err)
	}
	return count, nil
}

// Create persists a course and its lessons.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create course: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO courses (id, instructor_id, title, description, category, price, thumbnail, published, created_at, updated_at)
        VALUES (:id, :instructor_id, :title, :description, :category, :price, :thumbnail, :published, NOW(), NOW())`
	if _, err := tx.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}

	const lessonQuery = `INSERT INTO course_lessons (course_id, order_index, title, video_url, duration_minutes)
        VALUES ($1, $2, $3, $4, $5)`
	for i, lesson := range course.Lessons {
		if _, err := tx.ExecContext(ctx, lessonQuery, course.ID, i, lesson.Title, lesson.VideoURL, lesson.DurationMinutes); err != nil {
			return fmt.Errorf("create course lesson: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create course: %w", err)
	}
	return nil
}

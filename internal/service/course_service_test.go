package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
)

type fakeCourseRepo struct {
	courses map[string]*models.Course
	nextID  int

	lastFilter models.CourseFilter
}

func newFakeCourseRepo() *fakeCourseRepo {
	return &fakeCourseRepo{courses: make(map[string]*models.Course), nextID: 1}
}

func (f *fakeCourseRepo) FindByID(_ context.Context, id string) (*models.Course, error) {
	c, ok := f.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *c
	clone.Lessons = append([]models.Lesson(nil), c.Lessons...)
	return &clone, nil
}

func (f *fakeCourseRepo) List(_ context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	f.lastFilter = filter
	var out []models.Course
	for _, c := range f.courses {
		if filter.PublishedOnly && !c.Published {
			continue
		}
		if filter.Category != "" && c.Category != filter.Category {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (f *fakeCourseRepo) Create(_ context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = fmt.Sprintf("course-%d", f.nextID)
		f.nextID++
	}
	f.courses[course.ID] = course
	return nil
}

func TestListHidesUnpublishedFromStudents(t *testing.T) {
	repo := newFakeCourseRepo()
	repo.courses["c1"] = &models.Course{ID: "c1", Title: "Live", Published: true}
	repo.courses["c2"] = &models.Course{ID: "c2", Title: "Draft", Published: false}
	svc := NewCourseService(repo, nil, zap.NewNop())
	ctx := context.Background()

	visible, total, err := svc.List(ctx, models.CourseFilter{}, models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, visible, 1)
	assert.Equal(t, "c1", visible[0].ID)
	assert.True(t, repo.lastFilter.PublishedOnly)

	all, total, err := svc.List(ctx, models.CourseFilter{}, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)
}

func TestGetDecoratesEmbedURLs(t *testing.T) {
	repo := newFakeCourseRepo()
	repo.courses["c1"] = &models.Course{
		ID:        "c1",
		Title:     "Video Course",
		Published: true,
		Lessons: []models.Lesson{
			{OrderIndex: 0, Title: "Watch", VideoURL: "https://www.youtube.com/watch?v=abc123"},
			{OrderIndex: 1, Title: "Short", VideoURL: "https://youtu.be/xyz789"},
			{OrderIndex: 2, Title: "Read", VideoURL: ""},
		},
	}
	svc := NewCourseService(repo, nil, zap.NewNop())

	course, err := svc.Get(context.Background(), "c1", models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/embed/abc123", course.Lessons[0].EmbedURL)
	assert.Equal(t, "https://www.youtube.com/embed/xyz789", course.Lessons[1].EmbedURL)
	assert.Empty(t, course.Lessons[2].EmbedURL)
}

func TestGetUnpublishedHiddenFromStudents(t *testing.T) {
	repo := newFakeCourseRepo()
	repo.courses["c1"] = &models.Course{ID: "c1", Title: "Draft", Published: false}
	svc := NewCourseService(repo, nil, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Get(ctx, "c1", models.RoleStudent)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)

	course, err := svc.Get(ctx, "c1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "c1", course.ID)
}

func TestCreateCourseAssignsLessonOrder(t *testing.T) {
	repo := newFakeCourseRepo()
	svc := NewCourseService(repo, nil, zap.NewNop())

	req := CreateCourseRequest{
		InstructorID: "instr-1",
		Title:        "Go from Scratch",
		Category:     "programming",
		Lessons: []LessonPayload{
			{Title: "Hello"},
			{Title: "Packages"},
			{Title: "Interfaces"},
		},
	}
	course, err := svc.Create(context.Background(), req, models.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, course.Lessons, 3)
	for i, lesson := range course.Lessons {
		assert.Equal(t, i, lesson.OrderIndex)
	}
}

func TestCreateCourseRequiresAdmin(t *testing.T) {
	svc := NewCourseService(newFakeCourseRepo(), nil, zap.NewNop())

	req := CreateCourseRequest{
		InstructorID: "instr-1",
		Title:        "Nope",
		Category:     "programming",
		Lessons:      []LessonPayload{{Title: "L"}},
	}
	_, err := svc.Create(context.Background(), req, models.RoleStudent)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	"github.com/learnhub-dev/learnhub-api/internal/progress"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
)

type fakeEnrollmentRepo struct {
	enrollments map[string]*models.Enrollment
	nextID      int
	inserts     int
	createErr   error
}

func newFakeEnrollmentRepo() *fakeEnrollmentRepo {
	return &fakeEnrollmentRepo{enrollments: make(map[string]*models.Enrollment), nextID: 1}
}

func (f *fakeEnrollmentRepo) add(e *models.Enrollment) *models.Enrollment {
	if e.ID == "" {
		e.ID = fmt.Sprintf("enr-%d", f.nextID)
		f.nextID++
	}
	f.enrollments[e.ID] = e
	return e
}

func (f *fakeEnrollmentRepo) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	e, ok := f.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *e
	clone.CompletedLessons = append([]models.CompletedLesson(nil), e.CompletedLessons...)
	return &clone, nil
}

func (f *fakeEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	e, err := f.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.EnrollmentDetail{Enrollment: *e, CourseSummary: models.CourseSummary{CourseTitle: "Intro to Go"}}, nil
}

func (f *fakeEnrollmentRepo) List(_ context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var out []models.EnrollmentDetail
	for _, e := range f.enrollments {
		if filter.LearnerID != "" && e.LearnerID != filter.LearnerID {
			continue
		}
		if filter.CourseID != "" && e.CourseID != filter.CourseID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, models.EnrollmentDetail{Enrollment: *e})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	total := len(out)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (f *fakeEnrollmentRepo) ListAll(_ context.Context) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, e := range f.enrollments {
		out = append(out, *e)
	}
	return out, nil
}

func (f *fakeEnrollmentRepo) ExistsForLearnerAndCourse(_ context.Context, learnerID, courseID string) (bool, error) {
	for _, e := range f.enrollments {
		if e.LearnerID == learnerID && e.CourseID == courseID && e.Status != models.EnrollmentStatusDropped {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEnrollmentRepo) Create(_ context.Context, enrollment *models.Enrollment) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.add(enrollment)
	return nil
}

func (f *fakeEnrollmentRepo) CompleteLesson(_ context.Context, id string, lessonIndex, totalLessons int, now time.Time) (*models.Enrollment, bool, error) {
	e, ok := f.enrollments[id]
	if !ok {
		return nil, false, sql.ErrNoRows
	}
	if e.HasLesson(lessonIndex) {
		clone := *e
		return &clone, false, nil
	}
	if e.Status != models.EnrollmentStatusActive {
		return nil, false, appErrors.ErrEnrollmentNotActive
	}
	f.inserts++
	e.CompletedLessons = append(e.CompletedLessons, models.CompletedLesson{EnrollmentID: id, LessonIndex: lessonIndex, CompletedAt: now})
	e.ProgressPercent = progress.Percent(len(e.CompletedLessons), totalLessons)
	e.LastAccessedAt = now
	if e.ProgressPercent == 100 {
		e.Status = models.EnrollmentStatusCompleted
		ts := now
		e.CompletedAt = &ts
	}
	clone := *e
	return &clone, true, nil
}

func (f *fakeEnrollmentRepo) TouchAccess(_ context.Context, id string, ts time.Time) error {
	e, ok := f.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.LastAccessedAt = ts
	return nil
}

func (f *fakeEnrollmentRepo) UpdateStatus(_ context.Context, id string, status models.EnrollmentStatus) error {
	e, ok := f.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Status = status
	return nil
}

func (f *fakeEnrollmentRepo) CountByDay(_ context.Context, _ time.Time) ([]models.EnrollmentDayCount, error) {
	return []models.EnrollmentDayCount{{Count: len(f.enrollments)}}, nil
}

type fakeCourseReader struct {
	courses map[string]*models.Course
}

func (f *fakeCourseReader) FindByID(_ context.Context, id string) (*models.Course, error) {
	c, ok := f.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

func (f *fakeCourseReader) LessonCount(_ context.Context, courseID string) (int, error) {
	c, ok := f.courses[courseID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	return len(c.Lessons), nil
}

func fourLessonCourse(id string) *models.Course {
	return &models.Course{
		ID:        id,
		Title:     "Intro to Go",
		Published: true,
		Lessons: []models.Lesson{
			{OrderIndex: 0, Title: "Basics"},
			{OrderIndex: 1, Title: "Types"},
			{OrderIndex: 2, Title: "Concurrency"},
			{OrderIndex: 3, Title: "Tooling"},
		},
	}
}

func newEnrollmentFixture(t *testing.T) (*EnrollmentService, *fakeEnrollmentRepo) {
	t.Helper()
	repo := newFakeEnrollmentRepo()
	courses := &fakeCourseReader{courses: map[string]*models.Course{"course-1": fourLessonCourse("course-1")}}
	svc := NewEnrollmentService(repo, courses, nil, nil, nil, zap.NewNop())
	return svc, repo
}

func TestEnroll(t *testing.T) {
	svc, _ := newEnrollmentFixture(t)

	detail, err := svc.Enroll(context.Background(), EnrollRequest{LearnerID: "learner-1", CourseID: "course-1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, detail.Status)
	assert.Equal(t, 0, detail.ProgressPercent)
	assert.Equal(t, "learner-1", detail.LearnerID)
}

func TestEnrollUnknownCourse(t *testing.T) {
	svc, _ := newEnrollmentFixture(t)

	_, err := svc.Enroll(context.Background(), EnrollRequest{LearnerID: "learner-1", CourseID: "missing"})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestEnrollUnpublishedCourseHidden(t *testing.T) {
	repo := newFakeEnrollmentRepo()
	draft := fourLessonCourse("course-1")
	draft.Published = false
	courses := &fakeCourseReader{courses: map[string]*models.Course{"course-1": draft}}
	svc := NewEnrollmentService(repo, courses, nil, nil, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollRequest{LearnerID: "learner-1", CourseID: "course-1"})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestEnrollDuplicateRejected(t *testing.T) {
	svc, _ := newEnrollmentFixture(t)
	ctx := context.Background()

	_, err := svc.Enroll(ctx, EnrollRequest{LearnerID: "learner-1", CourseID: "course-1"})
	require.NoError(t, err)

	_, err = svc.Enroll(ctx, EnrollRequest{LearnerID: "learner-1", CourseID: "course-1"})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrAlreadyEnrolled.Code, appErr.Code)
}

func TestEnrollAgainAfterDrop(t *testing.T) {
	svc, repo := newEnrollmentFixture(t)
	ctx := context.Background()

	first, err := svc.Enroll(ctx, EnrollRequest{LearnerID: "learner-1", CourseID: "course-1"})
	require.NoError(t, err)
	_, err = svc.Drop(ctx, first.ID, "learner-1")
	require.NoError(t, err)

	second, err := svc.Enroll(ctx, EnrollRequest{LearnerID: "learner-1", CourseID: "course-1"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 0, second.ProgressPercent)
	assert.Len(t, repo.enrollments, 2)
}

func lessonIdx(i int) CompleteLessonRequest {
	return CompleteLessonRequest{LessonIndex: &i}
}

func TestMarkLessonCompleteProgression(t *testing.T) {
	svc, _ := newEnrollmentFixture(t)
	ctx := context.Background()

	detail, err := svc.Enroll(ctx, EnrollRequest{LearnerID: "learner-1", CourseID: "course-1"})
	require.NoError(t, err)

	expected := []int{25, 50, 75, 100}
	for i, want := range expected {
		updated, err := svc.MarkLessonComplete(ctx, detail.ID, lessonIdx(i), "learner-1")
		require.NoError(t, err)
		assert.Equal(t, want, updated.ProgressPercent)
	}

	final, err := svc.Get(ctx, detail.ID, "learner-1", models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, final.Status)
	require.NotNil(t, final.CompletedAt)
}

func TestMarkLessonCompleteIdempotent(t *testing.T) {
	svc, repo := newEnrollmentFixture(t)
	ctx := context.Background()

	detail, err := svc.Enroll(ctx, EnrollRequest{LearnerID: "learner-1", CourseID: "course-1"})
	require.NoError(t, err)

	first, err := svc.MarkLessonComplete(ctx, detail.ID, lessonIdx(2), "learner-1")
	require.NoError(t, err)
	assert.Equal(t, 25, first.ProgressPercent)

	again, err := svc.MarkLessonComplete(ctx, detail.ID, lessonIdx(2), "learner-1")
	require.NoError(t, err)
	assert.Equal(t, 25, again.ProgressPercent)
	assert.Equal(t, 1, repo.inserts)
}

func TestMarkLessonCompleteOutOfRange(t *testing.T) {
	svc, _ := newEnrollmentFixture(t)
	ctx := context.Background()

	detail, err := svc.Enroll(ctx, EnrollRequest{LearnerID: "learner-1", CourseID: "course-1"})
	require.NoError(t, err)

	for _, idx := range []int{-1, 4, 99} {
		_, err := svc.MarkLessonComplete(ctx, detail.ID, lessonIdx(idx), "learner-1")
		var appErr *appErrors.Error
		require.True(t, errors.As(err, &appErr), "index %d", idx)
		assert.Equal(t, appErrors.ErrInvalidLesson.Code, appErr.Code)
	}
}

func TestMarkLessonCompleteNotOwner(t *testing.T) {
	svc, _ := newEnrollmentFixture(t)
	ctx := context.Background()

	detail, err := svc.Enroll(ctx, EnrollRequest{LearnerID: "learner-1", CourseID: "course-1"})
	require.NoError(t, err)

	_, err = svc.MarkLessonComplete(ctx, detail.ID, lessonIdx(0), "learner-2")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestMarkLessonCompleteDroppedEnrollment(t *testing.T) {
	svc, _ := newEnrollmentFixture(t)
	ctx := context.Background()

	detail, err := svc.Enroll(ctx, EnrollRequest{LearnerID: "learner-1", CourseID: "course-1"})
	require.NoError(t, err)
	_, err = svc.Drop(ctx, detail.ID, "learner-1")
	require.NoError(t, err)

	_, err = svc.MarkLessonComplete(ctx, detail.ID, lessonIdx(0), "learner-1")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrEnrollmentNotActive.Code, appErr.Code)
}

func TestMarkLessonCompleteDuplicateAfterCompletion(t *testing.T) {
	svc, _ := newEnrollmentFixture(t)
	ctx := context.Background()

	detail, err := svc.Enroll(ctx, EnrollRequest{LearnerID: "learner-1", CourseID: "course-1"})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err := svc.MarkLessonComplete(ctx, detail.ID, lessonIdx(i), "learner-1")
		require.NoError(t, err)
	}

	// Re-marking a lesson already in the set stays a success on the
	// completed enrollment.
	updated, err := svc.MarkLessonComplete(ctx, detail.ID, lessonIdx(1), "learner-1")
	require.NoError(t, err)
	assert.Equal(t, 100, updated.ProgressPercent)
	assert.Equal(t, models.EnrollmentStatusCompleted, updated.Status)
}

func TestTouchAccess(t *testing.T) {
	svc, repo := newEnrollmentFixture(t)
	ctx := context.Background()

	detail, err := svc.Enroll(ctx, EnrollRequest{LearnerID: "learner-1", CourseID: "course-1"})
	require.NoError(t, err)
	before := repo.enrollments[detail.ID].LastAccessedAt

	updated, err := svc.TouchAccess(ctx, detail.ID, "learner-1")
	require.NoError(t, err)
	assert.True(t, !updated.LastAccessedAt.Before(before))
	assert.Equal(t, detail.Status, updated.Status)
}

func TestGetRequiresOwnerOrAdmin(t *testing.T) {
	svc, _ := newEnrollmentFixture(t)
	ctx := context.Background()

	detail, err := svc.Enroll(ctx, EnrollRequest{LearnerID: "learner-1", CourseID: "course-1"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, detail.ID, "learner-2", models.RoleStudent)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	asAdmin, err := svc.Get(ctx, detail.ID, "admin-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, detail.ID, asAdmin.ID)
}

func TestListMyCoursesRejectsUnknownStatus(t *testing.T) {
	svc, _ := newEnrollmentFixture(t)

	_, _, err := svc.ListMyCourses(context.Background(), "learner-1", "archived", 1, 20)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestDropOnlyActive(t *testing.T) {
	svc, _ := newEnrollmentFixture(t)
	ctx := context.Background()

	detail, err := svc.Enroll(ctx, EnrollRequest{LearnerID: "learner-1", CourseID: "course-1"})
	require.NoError(t, err)

	dropped, err := svc.Drop(ctx, detail.ID, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, dropped.Status)

	_, err = svc.Drop(ctx, detail.ID, "learner-1")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrEnrollmentNotActive.Code, appErr.Code)
}

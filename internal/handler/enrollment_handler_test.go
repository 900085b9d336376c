package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/learnhub-dev/learnhub-api/internal/middleware"
	"github.com/learnhub-dev/learnhub-api/internal/models"
	"github.com/learnhub-dev/learnhub-api/internal/progress"
	"github.com/learnhub-dev/learnhub-api/internal/service"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
)

type memEnrollmentRepo struct {
	enrollments map[string]*models.Enrollment
	nextID      int
}

func newMemEnrollmentRepo() *memEnrollmentRepo {
	return &memEnrollmentRepo{enrollments: make(map[string]*models.Enrollment), nextID: 1}
}

func (m *memEnrollmentRepo) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *e
	return &clone, nil
}

func (m *memEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	e, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.EnrollmentDetail{Enrollment: *e, CourseSummary: models.CourseSummary{CourseTitle: "Intro to Go", TotalLessons: 2}}, nil
}

func (m *memEnrollmentRepo) List(_ context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var out []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if filter.LearnerID != "" && e.LearnerID != filter.LearnerID {
			continue
		}
		out = append(out, models.EnrollmentDetail{Enrollment: *e})
	}
	return out, len(out), nil
}

func (m *memEnrollmentRepo) ExistsForLearnerAndCourse(_ context.Context, learnerID, courseID string) (bool, error) {
	for _, e := range m.enrollments {
		if e.LearnerID == learnerID && e.CourseID == courseID && e.Status != models.EnrollmentStatusDropped {
			return true, nil
		}
	}
	return false, nil
}

func (m *memEnrollmentRepo) Create(_ context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = fmt.Sprintf("enr-%d", m.nextID)
	m.nextID++
	m.enrollments[enrollment.ID] = enrollment
	return nil
}

func (m *memEnrollmentRepo) CompleteLesson(_ context.Context, id string, lessonIndex, totalLessons int, now time.Time) (*models.Enrollment, bool, error) {
	e, ok := m.enrollments[id]
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
	e.CompletedLessons = append(e.CompletedLessons, models.CompletedLesson{EnrollmentID: id, LessonIndex: lessonIndex, CompletedAt: now})
	e.ProgressPercent = progress.Percent(len(e.CompletedLessons), totalLessons)
	if e.ProgressPercent == 100 {
		e.Status = models.EnrollmentStatusCompleted
		ts := now
		e.CompletedAt = &ts
	}
	clone := *e
	return &clone, true, nil
}

func (m *memEnrollmentRepo) TouchAccess(_ context.Context, id string, ts time.Time) error {
	e, ok := m.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.LastAccessedAt = ts
	return nil
}

func (m *memEnrollmentRepo) UpdateStatus(_ context.Context, id string, status models.EnrollmentStatus) error {
	e, ok := m.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Status = status
	return nil
}

func (m *memEnrollmentRepo) CountByDay(_ context.Context, _ time.Time) ([]models.EnrollmentDayCount, error) {
	return nil, nil
}

type memCourseReader struct{}

func (memCourseReader) FindByID(_ context.Context, id string) (*models.Course, error) {
	if id != "course-1" {
		return nil, sql.ErrNoRows
	}
	return &models.Course{
		ID:        "course-1",
		Title:     "Intro to Go",
		Published: true,
		Lessons:   []models.Lesson{{OrderIndex: 0}, {OrderIndex: 1}},
	}, nil
}

func (memCourseReader) LessonCount(_ context.Context, id string) (int, error) {
	if id != "course-1" {
		return 0, sql.ErrNoRows
	}
	return 2, nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newEnrollmentHandlerFixture() (*EnrollmentHandler, *memEnrollmentRepo) {
	repo := newMemEnrollmentRepo()
	svc := service.NewEnrollmentService(repo, memCourseReader{}, nil, nil, nil, zap.NewNop())
	return NewEnrollmentHandler(svc, nil), repo
}

func studentContext(rec *httptest.ResponseRecorder, req *http.Request, userID string) *gin.Context {
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: models.RoleStudent})
	return c
}

func TestEnrollmentHandlerEnroll(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newEnrollmentHandlerFixture()

	body := bytes.NewBufferString(`{"course_id":"course-1"}`)
	rec := httptest.NewRecorder()
	c := studentContext(rec, httptest.NewRequest(http.MethodPost, "/enrollments", body), "learner-1")

	handler.Enroll(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var detail models.EnrollmentDetail
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, models.EnrollmentStatusActive, detail.Status)
	assert.Equal(t, "learner-1", detail.LearnerID)
}

func TestEnrollmentHandlerEnrollConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo := newEnrollmentHandlerFixture()
	repo.enrollments["enr-0"] = &models.Enrollment{ID: "enr-0", LearnerID: "learner-1", CourseID: "course-1", Status: models.EnrollmentStatusActive}

	body := bytes.NewBufferString(`{"course_id":"course-1"}`)
	rec := httptest.NewRecorder()
	c := studentContext(rec, httptest.NewRequest(http.MethodPost, "/enrollments", body), "learner-1")

	handler.Enroll(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	assert.Equal(t, "ALREADY_ENROLLED", env.Error.Code)
}

func TestEnrollmentHandlerCompleteLesson(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo := newEnrollmentHandlerFixture()
	repo.enrollments["enr-1"] = &models.Enrollment{ID: "enr-1", LearnerID: "learner-1", CourseID: "course-1", Status: models.EnrollmentStatusActive}

	body := bytes.NewBufferString(`{"lesson_index":0}`)
	rec := httptest.NewRecorder()
	c := studentContext(rec, httptest.NewRequest(http.MethodPost, "/enrollments/enr-1/complete-lesson", body), "learner-1")
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}

	handler.CompleteLesson(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var enrollment models.Enrollment
	require.NoError(t, json.Unmarshal(env.Data, &enrollment))
	assert.Equal(t, 50, enrollment.ProgressPercent)
}

func TestEnrollmentHandlerCompleteLessonOutOfRange(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo := newEnrollmentHandlerFixture()
	repo.enrollments["enr-1"] = &models.Enrollment{ID: "enr-1", LearnerID: "learner-1", CourseID: "course-1", Status: models.EnrollmentStatusActive}

	body := bytes.NewBufferString(`{"lesson_index":5}`)
	rec := httptest.NewRecorder()
	c := studentContext(rec, httptest.NewRequest(http.MethodPost, "/enrollments/enr-1/complete-lesson", body), "learner-1")
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}

	handler.CompleteLesson(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_LESSON", env.Error.Code)
}

func TestEnrollmentHandlerGetForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo := newEnrollmentHandlerFixture()
	repo.enrollments["enr-1"] = &models.Enrollment{ID: "enr-1", LearnerID: "learner-1", CourseID: "course-1", Status: models.EnrollmentStatusActive}

	rec := httptest.NewRecorder()
	c := studentContext(rec, httptest.NewRequest(http.MethodGet, "/enrollments/enr-1", nil), "learner-2")
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}

	handler.Get(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestEnrollmentHandlerRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newEnrollmentHandlerFixture()

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/enrollments/my-courses", nil)

	handler.MyCourses(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

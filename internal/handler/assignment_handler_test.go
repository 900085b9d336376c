package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	"github.com/learnhub-dev/learnhub-api/internal/service"
)

type memAssignmentRepo struct {
	assignments []*models.Assignment
}

func (m *memAssignmentRepo) Create(_ context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = "asg-new"
	}
	m.assignments = append(m.assignments, assignment)
	return nil
}

func (m *memAssignmentRepo) ListByLearner(_ context.Context, learnerID string) ([]models.AssignmentDetail, error) {
	var out []models.AssignmentDetail
	for _, a := range m.assignments {
		if a.LearnerID == learnerID {
			out = append(out, models.AssignmentDetail{Assignment: *a})
		}
	}
	return out, nil
}

func (m *memAssignmentRepo) ListAll(_ context.Context) ([]models.AssignmentDetail, error) {
	var out []models.AssignmentDetail
	for _, a := range m.assignments {
		out = append(out, models.AssignmentDetail{Assignment: *a})
	}
	return out, nil
}

func newAssignmentHandlerFixture() (*AssignmentHandler, *memAssignmentRepo) {
	repo := &memAssignmentRepo{}
	svc := service.NewAssignmentService(repo, memCourseReader{}, nil, zap.NewNop())
	return NewAssignmentHandler(svc), repo
}

func TestAssignmentHandlerSubmit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo := newAssignmentHandlerFixture()

	body := bytes.NewBufferString(`{"course_id":"course-1","title":"Final Project","submission_link":"https://example.com/work"}`)
	rec := httptest.NewRecorder()
	c := studentContext(rec, httptest.NewRequest(http.MethodPost, "/assignments", body), "learner-1")

	handler.Submit(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var assignment models.Assignment
	require.NoError(t, json.Unmarshal(env.Data, &assignment))
	assert.Equal(t, "learner-1", assignment.LearnerID)
	assert.Len(t, repo.assignments, 1)
}

func TestAssignmentHandlerSubmitRejectsBadPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newAssignmentHandlerFixture()

	body := bytes.NewBufferString(`{"course_id":"course-1","title":"Final Project","submission_link":"not-a-link"}`)
	rec := httptest.NewRecorder()
	c := studentContext(rec, httptest.NewRequest(http.MethodPost, "/assignments", body), "learner-1")

	handler.Submit(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestAssignmentHandlerMyListsOwnOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo := newAssignmentHandlerFixture()
	repo.assignments = []*models.Assignment{
		{ID: "asg-1", CourseID: "course-1", LearnerID: "learner-1", Title: "Mine"},
		{ID: "asg-2", CourseID: "course-1", LearnerID: "learner-2", Title: "Theirs"},
	}

	rec := httptest.NewRecorder()
	c := studentContext(rec, httptest.NewRequest(http.MethodGet, "/assignments/my", nil), "learner-1")

	handler.My(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var assignments []models.AssignmentDetail
	require.NoError(t, json.Unmarshal(env.Data, &assignments))
	require.Len(t, assignments, 1)
	assert.Equal(t, "Mine", assignments[0].Title)
}

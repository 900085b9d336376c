package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	"github.com/learnhub-dev/learnhub-api/internal/service"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
	"github.com/learnhub-dev/learnhub-api/pkg/response"
)

// EnrollmentHandler exposes learner enrollment and progress endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	stats       *service.StatsService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService, stats *service.StatsService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, stats: stats}
}

// Enroll godoc
// @Summary Enroll the caller in a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.LearnerID = claims.UserID

	detail, err := h.enrollments.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// MyCourses godoc
// @Summary List the caller's enrollments
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments/my-courses [get]
func (h *EnrollmentHandler) MyCourses(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	status := models.EnrollmentStatus(c.Query("status"))

	enrollments, pagination, err := h.enrollments.ListMyCourses(c.Request.Context(), claims.UserID, status, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get godoc
// @Summary Get an enrollment with its course summary
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, err := h.enrollments.Get(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// CompleteLesson godoc
// @Summary Mark a lesson complete
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Param payload body service.CompleteLessonRequest true "Lesson payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/complete-lesson [post]
func (h *EnrollmentHandler) CompleteLesson(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CompleteLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.MarkLessonComplete(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// TouchAccess godoc
// @Summary Record course access
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/access [post]
func (h *EnrollmentHandler) TouchAccess(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	enrollment, err := h.enrollments.TouchAccess(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Drop godoc
// @Summary Drop an active enrollment
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	enrollment, err := h.enrollments.Drop(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Certificate godoc
// @Summary Download a completion certificate
// @Tags Enrollments
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {file} binary
// @Router /enrollments/{id}/certificate [get]
func (h *EnrollmentHandler) Certificate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	payload, err := h.stats.Certificate(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="certificate.pdf"`)
	c.Data(http.StatusOK, "application/pdf", payload)
}

// ByCourse godoc
// @Summary List enrollments for a course
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments/by-course/{courseId} [get]
func (h *EnrollmentHandler) ByCourse(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	enrollments, pagination, err := h.enrollments.ListByCourse(c.Request.Context(), c.Param("courseId"), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// ExportByCourse godoc
// @Summary Export a course's enrollments
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /enrollments/by-course/{courseId}/export [get]
func (h *EnrollmentHandler) ExportByCourse(c *gin.Context) {
	payload, contentType, err := h.stats.ExportByCourse(c.Request.Context(), c.Param("courseId"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="enrollments.`+c.DefaultQuery("format", "csv")+`"`)
	c.Data(http.StatusOK, contentType, payload)
}

// Analytics godoc
// @Summary Enrollment counts per day
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param range query int false "Trailing days"
// @Success 200 {object} response.Envelope
// @Router /enrollments/analytics [get]
func (h *EnrollmentHandler) Analytics(c *gin.Context) {
	rangeDays, _ := strconv.Atoi(c.DefaultQuery("range", "30"))
	counts, err := h.enrollments.Analytics(c.Request.Context(), rangeDays)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counts, nil)
}

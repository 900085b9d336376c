package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnhub-dev/learnhub-api/internal/service"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
	"github.com/learnhub-dev/learnhub-api/pkg/response"
)

// QuizHandler exposes quiz management and submission endpoints.
type QuizHandler struct {
	quizzes *service.QuizService
}

// NewQuizHandler constructs QuizHandler.
func NewQuizHandler(quizzes *service.QuizService) *QuizHandler {
	return &QuizHandler{quizzes: quizzes}
}

// Create godoc
// @Summary Create a quiz
// @Tags Quizzes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.QuizPayload true "Quiz payload"
// @Success 201 {object} response.Envelope
// @Router /quizzes [post]
func (h *QuizHandler) Create(c *gin.Context) {
	var req service.QuizPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	quiz, err := h.quizzes.Create(c.Request.Context(), req, callerRole(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, quiz)
}

// Update godoc
// @Summary Update a quiz
// @Tags Quizzes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Quiz ID"
// @Param payload body service.QuizPayload true "Quiz payload"
// @Success 200 {object} response.Envelope
// @Router /quizzes/{id} [put]
func (h *QuizHandler) Update(c *gin.Context) {
	var req service.QuizPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	quiz, err := h.quizzes.Update(c.Request.Context(), c.Param("id"), req, callerRole(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quiz, nil)
}

// Delete godoc
// @Summary Delete a quiz
// @Tags Quizzes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Quiz ID"
// @Success 204 "No Content"
// @Router /quizzes/{id} [delete]
func (h *QuizHandler) Delete(c *gin.Context) {
	if err := h.quizzes.Delete(c.Request.Context(), c.Param("id"), callerRole(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Get godoc
// @Summary Get a quiz
// @Tags Quizzes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Quiz ID"
// @Success 200 {object} response.Envelope
// @Router /quizzes/{id} [get]
func (h *QuizHandler) Get(c *gin.Context) {
	quiz, err := h.quizzes.Get(c.Request.Context(), c.Param("id"), callerRole(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quiz, nil)
}

// ListByCourse godoc
// @Summary List a course's quizzes
// @Tags Quizzes
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /quizzes/by-course/{courseId} [get]
func (h *QuizHandler) ListByCourse(c *gin.Context) {
	quizzes, err := h.quizzes.ListByCourse(c.Request.Context(), c.Param("courseId"), callerRole(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quizzes, nil)
}

// Submit godoc
// @Summary Submit quiz answers for grading
// @Tags Quizzes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Quiz ID"
// @Param payload body service.SubmitQuizRequest true "Answer vector"
// @Success 201 {object} response.Envelope
// @Router /quizzes/{id}/submit [post]
func (h *QuizHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SubmitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.quizzes.Submit(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// MyResults godoc
// @Summary List the caller's quiz results
// @Tags Quizzes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /quizzes/my-results [get]
func (h *QuizHandler) MyResults(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	results, err := h.quizzes.MyResults(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

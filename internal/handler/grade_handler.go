package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/campus-core-api/internal/service"
	appErrors "github.com/campuskit/campus-core-api/pkg/errors"
	"github.com/campuskit/campus-core-api/pkg/response"
)

// GradeHandler exposes assessment and grading endpoints.
type GradeHandler struct {
	grades *service.GradeService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades *service.GradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// ListAssessments godoc
// @Summary List a section's assessments
// @Tags Grading
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /sections/{id}/assessments [get]
func (h *GradeHandler) ListAssessments(c *gin.Context) {
	assessments, err := h.grades.ListAssessments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessments, nil)
}

// DefineAssessment godoc
// @Summary Add an assessment to a section
// @Tags Grading
// @Accept json
// @Produce json
// @Param id path string true "Section ID"
// @Param payload body service.DefineAssessmentRequest true "Assessment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope "Weightage budget exceeded"
// @Failure 409 {object} response.Envelope "Exam schedule conflict"
// @Router /sections/{id}/assessments [post]
func (h *GradeHandler) DefineAssessment(c *gin.Context) {
	var req service.DefineAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assessment, err := h.grades.DefineAssessment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assessment)
}

// DeleteAssessment godoc
// @Summary Delete an assessment and its recorded grades
// @Tags Grading
// @Param id path string true "Assessment ID"
// @Success 204
// @Router /assessments/{id} [delete]
func (h *GradeHandler) DeleteAssessment(c *gin.Context) {
	if err := h.grades.DeleteAssessment(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SubmitGrade godoc
// @Summary Record a student's score on an assessment
// @Tags Grading
// @Accept json
// @Produce json
// @Param payload body service.SubmitGradeRequest true "Grade payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope "Weightage budget exceeded"
// @Router /grades [post]
func (h *GradeHandler) SubmitGrade(c *gin.Context) {
	var req service.SubmitGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	grade, err := h.grades.SubmitGrade(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grade)
}

// BulkSubmitGrades godoc
// @Summary Record several grades in one call
// @Tags Grading
// @Accept json
// @Produce json
// @Param payload body service.BulkSubmitGradesRequest true "Bulk grade payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope "Weightage budget exceeded"
// @Router /grades/bulk [post]
func (h *GradeHandler) BulkSubmitGrades(c *gin.Context) {
	var req service.BulkSubmitGradesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	grades, err := h.grades.BulkSubmitGrades(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grades)
}

// ReportCard godoc
// @Summary Enrollment report card
// @Tags Grading
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/report-card [get]
func (h *GradeHandler) ReportCard(c *gin.Context) {
	card, err := h.grades.ReportCard(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}

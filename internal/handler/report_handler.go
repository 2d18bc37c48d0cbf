package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/campus-core-api/internal/service"
	appErrors "github.com/campuskit/campus-core-api/pkg/errors"
	"github.com/campuskit/campus-core-api/pkg/response"
)

// ReportHandler exposes downloadable report endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// ReportCard godoc
// @Summary Download an enrollment's report card
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Enrollment ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /reports/enrollments/{id} [get]
func (h *ReportHandler) ReportCard(c *gin.Context) {
	id := c.Param("id")
	switch c.DefaultQuery("format", "csv") {
	case "csv":
		payload, name, err := h.reports.ReportCardCSV(c.Request.Context(), id)
		if err != nil {
			response.Error(c, err)
			return
		}
		serveAttachment(c, "text/csv", name, payload)
	case "pdf":
		payload, name, err := h.reports.ReportCardPDF(c.Request.Context(), id)
		if err != nil {
			response.Error(c, err)
			return
		}
		serveAttachment(c, "application/pdf", name, payload)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	}
}

// OccurrenceSheet godoc
// @Summary Download a section's meeting schedule
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Section ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /reports/sections/{id}/occurrences [get]
func (h *ReportHandler) OccurrenceSheet(c *gin.Context) {
	id := c.Param("id")
	switch c.DefaultQuery("format", "csv") {
	case "csv":
		payload, name, err := h.reports.OccurrenceSheetCSV(c.Request.Context(), id)
		if err != nil {
			response.Error(c, err)
			return
		}
		serveAttachment(c, "text/csv", name, payload)
	case "pdf":
		payload, name, err := h.reports.OccurrenceSheetPDF(c.Request.Context(), id)
		if err != nil {
			response.Error(c, err)
			return
		}
		serveAttachment(c, "application/pdf", name, payload)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	}
}

// ExportReportCard godoc
// @Summary Persist an enrollment's report card and get a signed download token
// @Tags Reports
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 201 {object} response.Envelope
// @Router /reports/enrollments/{id}/export [post]
func (h *ReportHandler) ExportReportCard(c *gin.Context) {
	artifact, err := h.reports.ExportReportCard(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, artifact)
}

// ExportOccurrenceSheet godoc
// @Summary Persist a section's meeting schedule and get a signed download token
// @Tags Reports
// @Produce json
// @Param id path string true "Section ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 201 {object} response.Envelope
// @Router /reports/sections/{id}/occurrences/export [post]
func (h *ReportHandler) ExportOccurrenceSheet(c *gin.Context) {
	artifact, err := h.reports.ExportOccurrenceSheet(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, artifact)
}

// Download godoc
// @Summary Download a previously exported report by signed token
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Router /reports/downloads/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	file, name, contentType, err := h.reports.Download(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "stat export file"))
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
	})
}

func serveAttachment(c *gin.Context, contentType, filename string, payload []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coem-edu/sga-api/internal/service"
	"github.com/coem-edu/sga-api/pkg/response"
)

// ReportHandler exposes academic report endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// StudentReport godoc
// @Summary Build a student's full academic report
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student id"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/report [get]
func (h *ReportHandler) StudentReport(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	report, err := h.reports.BuildStudentReport(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ReportCardPDF godoc
// @Summary Download a student's report card as PDF
// @Tags Reports
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Student id"
// @Success 200 {file} file
// @Router /students/{id}/report/pdf [get]
func (h *ReportHandler) ReportCardPDF(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	payload, err := h.reports.RenderReportCardPDF(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="report-card.pdf"`)
	c.Data(http.StatusOK, "application/pdf", payload)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coem-edu/sga-api/internal/models"
	"github.com/coem-edu/sga-api/internal/service"
	appErrors "github.com/coem-edu/sga-api/pkg/errors"
	"github.com/coem-edu/sga-api/pkg/response"
)

// ClassHandler exposes class offering endpoints.
type ClassHandler struct {
	classes *service.ClassService
}

// NewClassHandler constructs handler.
func NewClassHandler(classes *service.ClassService) *ClassHandler {
	return &ClassHandler{classes: classes}
}

// Create godoc
// @Summary Register a class offering
// @Tags Classes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var req service.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.classes.Create(c.Request.Context(), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// List godoc
// @Summary List class offerings
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name, location or teacher search"
// @Param teacher_id query string false "Filter by owning teacher"
// @Param active query string false "true, false or all"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	page, pageSize, sortBy, sortOrder := queryPagination(c)
	active, includeAll := queryActive(c)
	filter := models.ClassFilter{
		Search:     c.Query("search"),
		TeacherID:  c.Query("teacher_id"),
		Active:     active,
		IncludeAll: includeAll,
		Page:       page,
		PageSize:   pageSize,
		SortBy:     sortBy,
		SortOrder:  sortOrder,
	}
	classes, total, err := h.classes.List(c.Request.Context(), p, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, pagination(page, pageSize, total))
}

// Get godoc
// @Summary Get one class offering
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class id"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	class, err := h.classes.GetByID(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Update godoc
// @Summary Update a class offering
// @Tags Classes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class id"
// @Param payload body service.UpdateClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	var req service.UpdateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.classes.Update(c.Request.Context(), actorID(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Toggle godoc
// @Summary Flip a class's active status
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class id"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/toggle [patch]
func (h *ClassHandler) Toggle(c *gin.Context) {
	class, err := h.classes.ToggleActive(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Roster godoc
// @Summary List enrolled students with their grades
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class id"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/roster [get]
func (h *ClassHandler) Roster(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	roster, err := h.classes.Roster(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// RosterCSV godoc
// @Summary Download the roster as CSV
// @Tags Classes
// @Produce text/csv
// @Security BearerAuth
// @Param id path string true "Class id"
// @Success 200 {file} file
// @Router /classes/{id}/roster/export [get]
func (h *ClassHandler) RosterCSV(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	payload, err := h.classes.ExportRosterCSV(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="roster.csv"`)
	c.Data(http.StatusOK, "text/csv", payload)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coem-edu/sga-api/internal/models"
	"github.com/coem-edu/sga-api/internal/service"
	appErrors "github.com/coem-edu/sga-api/pkg/errors"
	"github.com/coem-edu/sga-api/pkg/response"
)

// ParentHandler exposes guardian management endpoints.
type ParentHandler struct {
	parents  *service.ParentService
	students *service.StudentService
}

// NewParentHandler constructs handler.
func NewParentHandler(parents *service.ParentService, students *service.StudentService) *ParentHandler {
	return &ParentHandler{parents: parents, students: students}
}

// Create godoc
// @Summary Register a parent with its login account
// @Tags Parents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateParentRequest true "Parent payload"
// @Success 201 {object} response.Envelope
// @Router /parents [post]
func (h *ParentHandler) Create(c *gin.Context) {
	var req service.CreateParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	parent, err := h.parents.Create(c.Request.Context(), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, parent)
}

// List godoc
// @Summary List parents
// @Tags Parents
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name or email search"
// @Param active query string false "true, false or all"
// @Success 200 {object} response.Envelope
// @Router /parents [get]
func (h *ParentHandler) List(c *gin.Context) {
	page, pageSize, sortBy, sortOrder := queryPagination(c)
	active, includeAll := queryActive(c)
	filter := models.ParentFilter{
		Search:     c.Query("search"),
		Active:     active,
		IncludeAll: includeAll,
		Page:       page,
		PageSize:   pageSize,
		SortBy:     sortBy,
		SortOrder:  sortOrder,
	}
	parents, total, err := h.parents.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, parents, pagination(page, pageSize, total))
}

// Get godoc
// @Summary Get one parent
// @Tags Parents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Parent id"
// @Success 200 {object} response.Envelope
// @Router /parents/{id} [get]
func (h *ParentHandler) Get(c *gin.Context) {
	parent, err := h.parents.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, parent, nil)
}

// Update godoc
// @Summary Update a parent's profile and account fields
// @Tags Parents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Parent id"
// @Param payload body service.UpdateParentRequest true "Parent payload"
// @Success 200 {object} response.Envelope
// @Router /parents/{id} [put]
func (h *ParentHandler) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.UpdateParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	parent, err := h.parents.Update(c.Request.Context(), p, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, parent, nil)
}

// Toggle godoc
// @Summary Flip a parent's active status
// @Tags Parents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Parent id"
// @Success 200 {object} response.Envelope
// @Router /parents/{id}/toggle [patch]
func (h *ParentHandler) Toggle(c *gin.Context) {
	parent, err := h.parents.ToggleActive(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, parent, nil)
}

// Delete godoc
// @Summary Delete a parent without student links
// @Tags Parents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Parent id"
// @Success 204
// @Router /parents/{id} [delete]
func (h *ParentHandler) Delete(c *gin.Context) {
	if err := h.parents.Delete(c.Request.Context(), actorID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Students godoc
// @Summary List the students linked to the calling parent
// @Tags Parents
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /parents/me/students [get]
func (h *ParentHandler) Students(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	page, pageSize, sortBy, sortOrder := queryPagination(c)
	filter := models.StudentFilter{
		Page:      page,
		PageSize:  pageSize,
		SortBy:    sortBy,
		SortOrder: sortOrder,
	}
	students, total, err := h.students.List(c.Request.Context(), p, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination(page, pageSize, total))
}

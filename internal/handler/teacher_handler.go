package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coem-edu/sga-api/internal/models"
	"github.com/coem-edu/sga-api/internal/service"
	appErrors "github.com/coem-edu/sga-api/pkg/errors"
	"github.com/coem-edu/sga-api/pkg/response"
)

// TeacherHandler exposes teacher management endpoints.
type TeacherHandler struct {
	teachers *service.TeacherService
	classes  *service.ClassService
}

// NewTeacherHandler constructs handler.
func NewTeacherHandler(teachers *service.TeacherService, classes *service.ClassService) *TeacherHandler {
	return &TeacherHandler{teachers: teachers, classes: classes}
}

// Create godoc
// @Summary Register a teacher with its login account
// @Tags Teachers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateTeacherRequest true "Teacher payload"
// @Success 201 {object} response.Envelope
// @Router /teachers [post]
func (h *TeacherHandler) Create(c *gin.Context) {
	var req service.CreateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	teacher, err := h.teachers.Create(c.Request.Context(), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, teacher)
}

// List godoc
// @Summary List teachers
// @Tags Teachers
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name or email search"
// @Param active query string false "true, false or all"
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *TeacherHandler) List(c *gin.Context) {
	page, pageSize, sortBy, sortOrder := queryPagination(c)
	active, includeAll := queryActive(c)
	filter := models.TeacherFilter{
		Search:     c.Query("search"),
		Active:     active,
		IncludeAll: includeAll,
		Page:       page,
		PageSize:   pageSize,
		SortBy:     sortBy,
		SortOrder:  sortOrder,
	}
	teachers, total, err := h.teachers.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, pagination(page, pageSize, total))
}

// Get godoc
// @Summary Get one teacher
// @Tags Teachers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Teacher id"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [get]
func (h *TeacherHandler) Get(c *gin.Context) {
	teacher, err := h.teachers.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// Update godoc
// @Summary Update a teacher's account fields
// @Tags Teachers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Teacher id"
// @Param payload body service.UpdateTeacherRequest true "Teacher payload"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [put]
func (h *TeacherHandler) Update(c *gin.Context) {
	var req service.UpdateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	teacher, err := h.teachers.Update(c.Request.Context(), actorID(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// Toggle godoc
// @Summary Flip a teacher's active status
// @Tags Teachers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Teacher id"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/toggle [patch]
func (h *TeacherHandler) Toggle(c *gin.Context) {
	teacher, err := h.teachers.ToggleActive(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// Classes godoc
// @Summary List the classes owned by a teacher
// @Tags Teachers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Teacher id"
// @Param active query string false "true, false or all"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/classes [get]
func (h *TeacherHandler) Classes(c *gin.Context) {
	active, includeAll := queryActive(c)
	activeOnly := !includeAll && (active == nil || *active)
	classes, err := h.classes.ListByTeacher(c.Request.Context(), c.Param("id"), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}

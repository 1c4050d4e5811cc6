package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/coem-edu/sga-api/internal/authz"
	"github.com/coem-edu/sga-api/internal/middleware"
	"github.com/coem-edu/sga-api/internal/models"
	appErrors "github.com/coem-edu/sga-api/pkg/errors"
	"github.com/coem-edu/sga-api/pkg/response"
)

// principal extracts the acting principal, writing a 401 when absent.
func principal(c *gin.Context) (authz.Principal, bool) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return authz.Principal{}, false
	}
	return p, true
}

// actorID returns the authenticated account id or the empty string.
func actorID(c *gin.Context) string {
	if claims, ok := middleware.CurrentClaims(c); ok {
		return claims.UserID
	}
	return ""
}

// queryPagination reads page/page_size/sort query parameters.
func queryPagination(c *gin.Context) (page, pageSize int, sortBy, sortOrder string) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize, c.Query("sort_by"), c.Query("sort_order")
}

// queryActive interprets the active query parameter: unset keeps the service
// default (active only), "all" disables the filter, anything else is parsed
// as a bool.
func queryActive(c *gin.Context) (active *bool, includeAll bool) {
	raw := c.Query("active")
	if raw == "" {
		return nil, false
	}
	if raw == "all" {
		return nil, true
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, false
	}
	return &value, false
}

func pagination(page, pageSize, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}

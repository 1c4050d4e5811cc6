package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/coem-edu/sga-api/internal/middleware"
	"github.com/coem-edu/sga-api/internal/models"
	"github.com/coem-edu/sga-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth      *AuthHandler
	Teachers  *TeacherHandler
	Parents   *ParentHandler
	Students  *StudentHandler
	Classes   *ClassHandler
	Grades    *GradeHandler
	Reports   *ReportHandler
	Dashboard *DashboardHandler
}

// RegisterRoutes mounts the API under the configured prefix. Admin-only
// surfaces are gated by role middleware; ownership-scoped reads are decided
// deeper down by the guard.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, auth *service.AuthService, dashboard *service.DashboardService, audits middleware.AuditWriter) {
	api := r.Group(prefix)

	authed := middleware.JWT(auth)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	adminOrTeacher := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	adminOrParent := middleware.RequireRoles(models.RoleAdmin, models.RoleParent)

	// Mutations that change active counts drop the cached dashboard summary.
	invalidateDashboard := func(c *gin.Context) {
		c.Next()
		if c.Writer.Status() < 400 {
			dashboard.Invalidate(c.Request.Context())
		}
	}

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.POST("/logout", authed, h.Auth.Logout)
		authGroup.PUT("/password", authed, h.Auth.ChangePassword)
		authGroup.GET("/me", authed, h.Auth.Me)
	}

	teachers := api.Group("/teachers", authed, adminOnly)
	{
		teachers.POST("", invalidateDashboard, h.Teachers.Create)
		teachers.GET("", h.Teachers.List)
		teachers.GET("/:id", h.Teachers.Get)
		teachers.PUT("/:id", h.Teachers.Update)
		teachers.PATCH("/:id/toggle", invalidateDashboard, h.Teachers.Toggle)
		teachers.GET("/:id/classes", h.Teachers.Classes)
	}

	parents := api.Group("/parents", authed)
	{
		parents.POST("", adminOnly, invalidateDashboard, h.Parents.Create)
		parents.GET("", adminOnly, h.Parents.List)
		parents.GET("/me/students", middleware.RequireRoles(models.RoleParent), h.Parents.Students)
		parents.GET("/:id", adminOnly, h.Parents.Get)
		parents.PUT("/:id", adminOrParent, h.Parents.Update)
		parents.PATCH("/:id/toggle", adminOnly, invalidateDashboard, h.Parents.Toggle)
		parents.DELETE("/:id", adminOnly, invalidateDashboard, h.Parents.Delete)
	}

	students := api.Group("/students", authed)
	{
		students.POST("", adminOnly, invalidateDashboard, h.Students.Create)
		students.GET("", adminOrParent, h.Students.List)
		students.GET("/:id", adminOrParent, h.Students.Get)
		students.PUT("/:id", adminOnly, h.Students.Update)
		students.PUT("/:id/parents", adminOnly, h.Students.SetParents)
		students.PUT("/:id/enrollments", adminOnly, h.Students.SetEnrollments)
		students.PATCH("/:id/toggle", adminOnly, invalidateDashboard, h.Students.Toggle)
		students.GET("/:id/grades", adminOrParent, h.Grades.ListByStudent)
		students.GET("/:id/report", adminOrParent, h.Reports.StudentReport)
		// Exported personal data keeps an access trail.
		students.GET("/:id/report/pdf", adminOrParent, middleware.Audit(audits, models.AuditActionExport, "report_card"), h.Reports.ReportCardPDF)
	}

	classes := api.Group("/classes", authed)
	{
		classes.POST("", adminOnly, invalidateDashboard, h.Classes.Create)
		classes.GET("", adminOrTeacher, h.Classes.List)
		classes.GET("/:id", adminOrTeacher, h.Classes.Get)
		classes.PUT("/:id", adminOnly, h.Classes.Update)
		classes.PATCH("/:id/toggle", adminOnly, invalidateDashboard, h.Classes.Toggle)
		classes.GET("/:id/roster", adminOrTeacher, h.Classes.Roster)
		classes.GET("/:id/roster/export", adminOrTeacher, middleware.Audit(audits, models.AuditActionExport, "roster"), h.Classes.RosterCSV)
	}

	grades := api.Group("/grades", authed, adminOrTeacher)
	{
		grades.POST("", h.Grades.Create)
		grades.PUT("/:id", h.Grades.Update)
		grades.DELETE("/:id", h.Grades.Delete)
	}

	api.GET("/dashboard", authed, adminOnly, h.Dashboard.Summary)
}

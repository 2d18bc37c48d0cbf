package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campuskit/campus-core-api/internal/middleware"
	"github.com/campuskit/campus-core-api/internal/models"
	"github.com/campuskit/campus-core-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth        *AuthHandler
	Users       *UserHandler
	Sections    *SectionHandler
	Enrollments *EnrollmentHandler
	Grades      *GradeHandler
	Reports     *ReportHandler
	Metrics     *MetricsHandler
}

// RegisterRoutes mounts the API surface under the given prefix. Staff roles
// manage sections and assessments; students reach their own read endpoints
// through the shared authenticated group.
func RegisterRoutes(r *gin.Engine, prefix string, authService *service.AuthService, h Handlers) {
	staffOnly := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)
	staffOrTeacher := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher)

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Health)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)

	api.POST("/auth/login", h.Auth.Login)

	// The signed token is the credential here, so the route stays outside
	// the JWT group.
	api.GET("/reports/downloads/:token", h.Reports.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))

	authed.GET("/auth/me", h.Auth.Me)
	authed.PUT("/auth/password", h.Auth.ChangePassword)

	authed.GET("/users", staffOnly, h.Users.List)
	authed.GET("/users/:id", staffOnly, h.Users.Get)
	authed.POST("/users", staffOnly, h.Users.Create)
	authed.PUT("/users/:id", staffOnly, h.Users.Update)
	authed.DELETE("/users/:id", staffOnly, h.Users.Delete)

	authed.GET("/sections", h.Sections.List)
	authed.GET("/sections/:id", h.Sections.Get)
	authed.GET("/sections/:id/occurrences", h.Sections.Occurrences)
	authed.POST("/sections", staffOnly, h.Sections.Create)
	authed.PUT("/sections/:id/schedule", staffOnly, h.Sections.Reschedule)
	authed.DELETE("/sections/:id", staffOnly, h.Sections.Delete)

	authed.GET("/sections/:id/assessments", h.Grades.ListAssessments)
	authed.POST("/sections/:id/assessments", staffOrTeacher, h.Grades.DefineAssessment)
	authed.DELETE("/assessments/:id", staffOrTeacher, h.Grades.DeleteAssessment)

	authed.GET("/enrollments", h.Enrollments.List)
	authed.GET("/enrollments/:id", h.Enrollments.Get)
	authed.POST("/enrollments", staffOnly, h.Enrollments.Create)
	authed.POST("/enrollments/:id/start", staffOnly, h.Enrollments.Start)
	authed.POST("/enrollments/:id/withdraw", staffOnly, h.Enrollments.Withdraw)
	authed.POST("/enrollments/:id/complete", staffOrTeacher, h.Enrollments.Complete)
	authed.DELETE("/enrollments/:id", staffOnly, h.Enrollments.Delete)

	authed.POST("/grades", staffOrTeacher, h.Grades.SubmitGrade)
	authed.POST("/grades/bulk", staffOrTeacher, h.Grades.BulkSubmitGrades)
	authed.GET("/enrollments/:id/report-card", h.Grades.ReportCard)

	authed.GET("/reports/enrollments/:id", h.Reports.ReportCard)
	authed.POST("/reports/enrollments/:id/export", staffOrTeacher, h.Reports.ExportReportCard)
	authed.GET("/reports/sections/:id/occurrences", staffOrTeacher, h.Reports.OccurrenceSheet)
	authed.POST("/reports/sections/:id/occurrences/export", staffOrTeacher, h.Reports.ExportOccurrenceSheet)
}

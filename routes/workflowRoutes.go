package routes

import (
	"nagarseva-be/controllers"
	"nagarseva-be/middlewares"

	"github.com/gin-gonic/gin"
)

// WorkflowRoutes sets up the staff-side workflow routes. Fine-grained
// authorization (which staff member may act on which issue) lives in the
// services layer; the middleware only keeps citizens out.
func WorkflowRoutes(r *gin.Engine, wc *controllers.WorkflowController) {
	staff := middlewares.RequireUserType(
		"area_super_admin", "department_admin", "contractor", "admin",
	)

	issue := r.Group("/api/issue")
	issue.Use(middlewares.AuthMiddleware())
	{
		issue.GET("/:id/assignments", wc.ListAssignments)
		issue.GET("/:id/work", wc.ListWork)
		issue.GET("/:id/tender", wc.ListTenders)

		issue.POST("/:id/assign-area", staff, wc.AssignArea)
		issue.POST("/:id/assign-department", staff, wc.AssignDepartment)
		issue.POST("/:id/tender", staff, wc.CreateTender)
		issue.POST("/:id/tender/:tenderId/award", staff, wc.AwardTender)
		issue.POST("/:id/start", staff, wc.StartWork)
		issue.POST("/:id/work", staff, wc.SubmitWork)
	}

	work := r.Group("/api/work")
	work.Use(middlewares.AuthMiddleware(), staff)
	{
		work.POST("/:id/review", wc.ReviewWork)
	}
}

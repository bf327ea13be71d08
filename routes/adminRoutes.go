package routes

import (
	"nagarseva-be/controllers"
	"nagarseva-be/middlewares"

	"github.com/gin-gonic/gin"
)

// AdminRoutes sets up the administrative directory routes
func AdminRoutes(r *gin.Engine, ac *controllers.AdminController) {
	admin := r.Group("/api/admin")
	admin.Use(middlewares.AuthMiddleware(), middlewares.RequireUserType("admin"))
	{
		admin.POST("/areas", ac.CreateArea)
		admin.GET("/areas", ac.ListAreas)
		admin.POST("/departments", ac.CreateDepartment)
		admin.GET("/departments", ac.ListDepartments)
		admin.POST("/users", ac.CreateStaffUser)
	}
}

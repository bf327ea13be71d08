package routes

import (
	"nagarseva-be/controllers"
	"nagarseva-be/middlewares"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the citizen-facing issue routes
func IssueRoutes(r *gin.Engine, ic *controllers.IssueController) {
	issue := r.Group("/api/issue")
	issue.Use(middlewares.AuthMiddleware())
	{
		issue.POST("/create", middlewares.IssueRateLimiter(5), ic.CreateIssue)
		issue.GET("", ic.GetAllIssues)
		issue.GET("/mine", ic.GetMyIssues)
		issue.GET("/analytics", ic.GetIssueAnalytics)
		issue.GET("/:id", ic.GetIssue)
		issue.POST("/:id/vote", ic.HandleVoteOnIssue)
	}
}

package routes

import (
	"net/http"
	"os"
	"strings"

	"nagarseva-be/controllers"
	"nagarseva-be/services"
	"nagarseva-be/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter wires the stores, services and controllers into a gin engine.
func SetupRouter(st store.Store, emitter services.Emitter) *gin.Engine {
	engine := services.NewWorkflowEngine(st, emitter)
	tracker := &services.WorkProgressTracker{Store: st, Engine: engine}

	authController := &controllers.AuthController{Store: st}
	issueController := &controllers.IssueController{Store: st, Engine: engine}
	workflowController := &controllers.WorkflowController{Store: st, Engine: engine, Tracker: tracker}
	adminController := &controllers.AdminController{Store: st}

	r := gin.Default()

	origins := []string{"http://localhost:3000"}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		origins = strings.Split(env, ",")
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	AuthRoutes(r, authController)
	IssueRoutes(r, issueController)
	WorkflowRoutes(r, workflowController)
	AdminRoutes(r, adminController)

	return r
}

package routes

import (
	"net/http"
	"time"

	"brokerage-backoffice-api/controllers"
	"brokerage-backoffice-api/middleware"

	"github.com/gin-gonic/gin"
)

// Role IDs as seeded in the roles table.
const (
	RoleAdmin    = 1
	RoleOperator = 2
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine) {
	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	api := r.Group("/api/v1")
	{
		// Public routes
		api.POST("/login", controllers.Login)

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			protected.GET("/profile", controllers.GetProfile)
			protected.POST("/change-password", controllers.ChangePassword)

			// Bulk client base imports. Operators can run and watch
			// imports; listing history is open to both roles too.
			imports := protected.Group("/imports")
			imports.Use(middleware.RequireRole(RoleAdmin, RoleOperator))
			{
				imports.POST("", controllers.CreateImport)
				imports.GET("", controllers.ListImportRuns)
				imports.GET("/:id", controllers.GetImportRun)
				imports.GET("/:id/progress", controllers.GetImportProgress)
				imports.GET("/:id/result", controllers.GetImportResult)
				imports.POST("/:id/cancel", controllers.CancelImport)
			}
		}
	}
}

package routes

import (
	"training-management-api/controllers"
	"training-management-api/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine) {
	// Webhook receiver lives outside /api/v1: the remote system authenticates
	// with the HMAC signature, not a JWT.
	router.POST("/webhooks/remote", controllers.ReceiveRemoteWebhook)

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(200, gin.H{
					"status":  "ok",
					"message": "Training Management API is running",
				})
			})
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// Integration administration (admin only)
			admin := protected.Group("/admin")
			admin.Use(middleware.RequireRole(middleware.RoleAdmin))
			{
				// Sync orchestration
				admin.POST("/sync/:entity_type", controllers.TriggerSync)
				admin.GET("/sync/:entity_type/status", controllers.GetSyncStatus)
				admin.GET("/sync/:entity_type/runs", controllers.ListSyncRuns)

				// Webhook dead-letter management
				admin.GET("/webhooks/dead-letter", controllers.ListDeadLetterWebhooks)
				admin.POST("/webhooks/:id/replay", controllers.ReplayWebhookEvent)

				// Outbound push
				admin.POST("/:entity_type/:id/push", controllers.PushEntityToRemote)
			}
		}
	}
}

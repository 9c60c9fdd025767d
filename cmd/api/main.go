package main

import (
	"context"
	"log"
	"os"

	"training-management-api/config"
	"training-management-api/middleware"
	"training-management-api/routes"
	"training-management-api/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Create logs directory if not exists
	if err := os.MkdirAll("./logs", os.ModePerm); err != nil {
		log.Printf("Warning: Failed to create logs directory: %v", err)
	}
	logFile, _ := config.InitLogging()
	if logFile != nil {
		defer logFile.Close()
	}

	// Initialize database
	config.InitDB()

	// Set Gin mode
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Add logging middleware
	router.Use(gin.Logger())

	// Add recovery middleware
	router.Use(gin.Recovery())

	// Add security headers middleware
	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Next()
	})

	// Add CORS middleware
	router.Use(middleware.CORSMiddleware())

	// Setup routes
	routes.SetupRoutes(router)

	// Start background integration workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.LoadIntegrationConfig()

	webhooks := services.DefaultWebhookService()
	webhooks.Start(ctx, cfg.WebhookWorkers)
	webhooks.StartSweeper(ctx, 0)

	services.StartSyncScheduler(ctx, nil, services.SchedulerIntervalFromConfig(cfg))

	// Start server
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("🚀 Server starting on port %s", port)
	log.Printf("📊 Database connected successfully")
	log.Printf("🔔 Webhook workers: %d", cfg.WebhookWorkers)
	if cfg.SyncScheduleEvery > 0 {
		log.Printf("⏱️ Scheduled sync every %s", cfg.SyncScheduleEvery)
	} else {
		log.Printf("⏱️ Scheduled sync disabled")
	}

	if err := router.Run(":" + port); err != nil {
		log.Fatal("❌ Failed to start server:", err)
	}
}

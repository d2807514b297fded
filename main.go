package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/Lupao-eth/triptask-backend/chat"
	"github.com/Lupao-eth/triptask-backend/config"
	"github.com/Lupao-eth/triptask-backend/hub"
	"github.com/Lupao-eth/triptask-backend/lifecycle"
	"github.com/Lupao-eth/triptask-backend/middleware"
	"github.com/Lupao-eth/triptask-backend/observability"
	"github.com/Lupao-eth/triptask-backend/routes"
	"github.com/Lupao-eth/triptask-backend/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	// Set Gin mode
	mode := os.Getenv("GIN_MODE")
	if mode == "" {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database
	config.InitDB()

	store, err := storage.New(config.UploadDir, config.UploadSignSecret)
	if err != nil {
		log.Fatal("Failed to prepare upload storage:", err)
	}

	metrics := observability.NewMetrics("triptask")
	bus := hub.New(metrics)
	engine := lifecycle.New(config.DB, bus, metrics)
	chatLog := chat.NewLog(config.DB, bus, store)

	// Create Gin router with default middleware (logger + recovery)
	r := gin.Default()

	// CORS middleware for frontend integration
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	// Coarse guard over all traffic; per-route classes are stricter.
	global := middleware.NewLimiter("global", 100, time.Minute, metrics)
	r.Use(global.Handler())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "TripTask API",
			"version": "1.0.0",
		})
	})

	r.GET("/metrics", gin.WrapH(observability.MetricsHandler()))

	// Register all routes
	routes.SetupRoutes(r, routes.Deps{
		DB:             config.DB,
		Engine:         engine,
		Hub:            bus,
		Chat:           chatLog,
		Store:          store,
		Metrics:        metrics,
		AllowAnyOrigin: os.Getenv("ALLOW_ANY_ORIGIN") == "true",
	})

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}
	log.Printf("✅ Server running on http://0.0.0.0:%s", port)
	if err := r.Run("0.0.0.0:" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

package routes

import (
	"time"

	"github.com/Lupao-eth/triptask-backend/chat"
	"github.com/Lupao-eth/triptask-backend/handlers"
	"github.com/Lupao-eth/triptask-backend/hub"
	"github.com/Lupao-eth/triptask-backend/lifecycle"
	"github.com/Lupao-eth/triptask-backend/middleware"
	"github.com/Lupao-eth/triptask-backend/models"
	"github.com/Lupao-eth/triptask-backend/observability"
	"github.com/Lupao-eth/triptask-backend/storage"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps carries the wired components the routes expose.
type Deps struct {
	DB             *gorm.DB
	Engine         *lifecycle.Engine
	Hub            *hub.Hub
	Chat           *chat.Log
	Store          *storage.Store
	Metrics        *observability.Metrics
	AllowAnyOrigin bool
}

// Route-class budgets mirror the abuse guard's fixed windows: auth and
// destructive/creative routes are strict, updates a little looser, and
// one coarse window over everything.
const window = time.Minute

func SetupRoutes(r *gin.Engine, d Deps) {
	authH := &handlers.AuthHandler{DB: d.DB}
	taskH := &handlers.TaskHandler{Engine: d.Engine}
	chatH := &handlers.ChatHandler{Log: d.Chat}
	uploadH := &handlers.UploadHandler{Store: d.Store}
	statusH := &handlers.StatusHandler{DB: d.DB, Hub: d.Hub}
	userH := &handlers.UserHandler{DB: d.DB}
	wsH := &handlers.WSHandler{Hub: d.Hub, AllowAnyOrigin: d.AllowAnyOrigin}

	authLimiter := middleware.NewLimiter("auth", 5, window, d.Metrics)
	createLimiter := middleware.NewLimiter("task-create", 5, window, d.Metrics)
	updateLimiter := middleware.NewLimiter("task-update", 10, window, d.Metrics)
	deleteLimiter := middleware.NewLimiter("task-delete", 5, window, d.Metrics)
	uploadLimiter := middleware.NewLimiter("upload", 5, window, d.Metrics)

	online := middleware.ServiceOnline(d.DB)

	// ── Auth ───────────────────────────────────────────────────────
	auth := r.Group("/auth")
	{
		auth.POST("/register", authLimiter.Handler(), authH.Register)
		auth.POST("/login", authLimiter.Handler(), authH.Login)
		auth.POST("/refresh", authLimiter.Handler(), authH.Refresh)
		auth.POST("/logout", authH.Logout)
		auth.GET("/me", middleware.AuthRequired(), authH.Me)
	}

	// ── Tasks ──────────────────────────────────────────────────────
	tasks := r.Group("/tasks")
	tasks.Use(middleware.AuthRequired())
	{
		tasks.GET("", taskH.ListMine)
		tasks.GET("/available", taskH.ListAvailable)
		tasks.GET("/active", taskH.ListActive)
		tasks.GET("/history", taskH.ListHistory)
		tasks.GET("/:id", taskH.Get)
		tasks.POST("", online, createLimiter.Handler(), taskH.Create)
		tasks.PUT("/:id", online, updateLimiter.Handler(), taskH.Update)
		tasks.DELETE("/:id", online, deleteLimiter.Handler(), taskH.Delete)
	}

	// ── Chats ──────────────────────────────────────────────────────
	chats := r.Group("/chats")
	chats.Use(middleware.AuthRequired())
	{
		chats.GET("/:taskId", chatH.History)
		chats.POST("", online, chatH.Post)
	}

	// ── Uploads ────────────────────────────────────────────────────
	r.POST("/uploads", middleware.AuthRequired(), online, uploadLimiter.Handler(), uploadH.Upload)
	// Downloads are gated by the signed URL itself, not a session.
	r.GET("/uploads/*path", uploadH.Download)

	// ── Users (admin) ──────────────────────────────────────────────
	r.GET("/users", middleware.AuthRequired(), middleware.RoleRequired(models.RoleAdmin), userH.List)

	// ── Public info ────────────────────────────────────────────────
	// State machine info (great for docs/Postman)
	r.GET("/state-machine", handlers.GetStateMachineInfo)

	// ── Service status ─────────────────────────────────────────────
	r.GET("/service-status", statusH.Get)
	r.PUT("/service-status", middleware.AuthRequired(), statusH.Put)

	// ── Realtime ───────────────────────────────────────────────────
	r.GET("/ws", wsH.Serve)
}

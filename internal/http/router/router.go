package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-backend/internal/config"
	"github.com/ignatzorin/escrow-backend/internal/http/handlers"
	"github.com/ignatzorin/escrow-backend/internal/http/middleware"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

// SetupRouter собирает все маршруты приложения.
func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	projectHandler *handlers.ProjectHandler,
	milestoneHandler *handlers.MilestoneHandler,
	disputeHandler *handlers.DisputeHandler,
	paymentHandler *handlers.PaymentHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	api.GET("/ws", wsHandler.Handle)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/auth/me", authHandler.Me)

		protected.POST("/projects", projectHandler.CreateProject)
		protected.GET("/projects", projectHandler.ListProjects)
		protected.GET("/projects/:id", middleware.UUIDValidator("id"), projectHandler.GetProject)
		protected.POST("/projects/:id/milestones", middleware.UUIDValidator("id"), projectHandler.AddMilestone)
		protected.GET("/dashboard", projectHandler.Dashboard)

		protected.GET("/milestones/:id", middleware.UUIDValidator("id"), milestoneHandler.GetMilestone)
		protected.POST("/milestones/:id/submit", middleware.UUIDValidator("id"), milestoneHandler.Submit)
		protected.POST("/milestones/:id/approve", middleware.UUIDValidator("id"), milestoneHandler.Approve)
		protected.POST("/milestones/:id/reject", middleware.UUIDValidator("id"), milestoneHandler.Reject)
		protected.GET("/milestones/:id/escrow", middleware.UUIDValidator("id"), paymentHandler.GetEscrowEntry)

		protected.POST("/disputes", disputeHandler.OpenDispute)
		protected.GET("/disputes", disputeHandler.ListMyDisputes)
		protected.GET("/disputes/:id", middleware.UUIDValidator("id"), disputeHandler.GetDispute)
		protected.POST("/disputes/:id/mediator", middleware.UUIDValidator("id"), disputeHandler.AssignMediator)
		protected.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), disputeHandler.Resolve)
		protected.POST("/disputes/:id/messages", middleware.UUIDValidator("id"), disputeHandler.PostMessage)
		protected.GET("/disputes/:id/messages", middleware.UUIDValidator("id"), disputeHandler.ListMessages)

		protected.GET("/balance", paymentHandler.GetBalance)
		protected.POST("/balance/deposit", paymentHandler.Deposit)
		protected.GET("/transactions", paymentHandler.ListTransactions)
	}

	return r
}

package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/sam-thetutor/herlock/internal/ledger"
	"github.com/sam-thetutor/herlock/internal/middleware"
	"github.com/sam-thetutor/herlock/internal/services"
	"github.com/sam-thetutor/herlock/internal/session"
)

// Router handles HTTP routing setup
type Router struct {
	authHandler        *AuthHandler
	accountHandler     *AccountHandler
	inheritanceHandler *InheritanceHandler
	healthHandler      *HealthHandler
	sessions           *services.SessionService
	manager            *session.Manager
}

// NewRouter creates a new Router instance with all handlers
func NewRouter(ledgerClient *ledger.Client, sessions *services.SessionService, manager *session.Manager, healthHandler *HealthHandler) *Router {
	return &Router{
		authHandler:        NewAuthHandler(ledgerClient, sessions, manager),
		accountHandler:     NewAccountHandler(),
		inheritanceHandler: NewInheritanceHandler(),
		healthHandler:      healthHandler,
		sessions:           sessions,
		manager:            manager,
	}
}

// SetupRoutes configures all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	api := engine.Group("/api")

	api.POST("/auth/login", r.authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware(r.sessions, r.manager))
	{
		authed.POST("/auth/logout", r.authHandler.Logout)

		account := authed.Group("/account")
		{
			account.GET("/profile", r.accountHandler.GetProfile)
			account.GET("/status", r.accountHandler.GetUserStatus)
			account.GET("/balance", r.accountHandler.GetBalance)
			account.GET("/address", r.accountHandler.GetBitcoinAddress)
			account.POST("/address", r.accountHandler.GenerateAddress)
			account.GET("/utxos", r.accountHandler.GetAddressUtxos)
			account.POST("/send", r.accountHandler.SendBitcoin)
		}

		inheritance := authed.Group("/inheritance")
		{
			inheritance.GET("/countdown", r.inheritanceHandler.GetInactivityStatus)
			inheritance.GET("/countdown/stream", r.inheritanceHandler.StreamCountdown)
			inheritance.POST("/heartbeat", r.inheritanceHandler.Heartbeat)
			inheritance.PUT("/period", r.inheritanceHandler.SetInactivityPeriod)
			inheritance.POST("/check", r.inheritanceHandler.TriggerCheck)
		}

		heirs := authed.Group("/heirs")
		{
			heirs.GET("", r.inheritanceHandler.ListHeirs)
			heirs.POST("", r.inheritanceHandler.AddHeir)
			heirs.DELETE("/:id", r.inheritanceHandler.RemoveHeir)
			heirs.GET("/balance", r.inheritanceHandler.GetHeirBalance)
			heirs.GET("/allocation", r.inheritanceHandler.GetTotalAllocation)
		}
	}
}

// SetupHealthRoutes configures health check routes
func (r *Router) SetupHealthRoutes(engine *gin.Engine) {
	health := engine.Group("/health")
	{
		health.GET("", r.healthHandler.GetHealth)
		health.GET("/live", r.healthHandler.GetLiveness)
		health.GET("/ready", r.healthHandler.GetReadiness)
	}
	engine.GET("/metrics", r.healthHandler.GetMetrics)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sam-thetutor/herlock/internal/ledger"
	"github.com/sam-thetutor/herlock/internal/middleware"
	"github.com/sam-thetutor/herlock/internal/models"
	"github.com/sam-thetutor/herlock/internal/services"
	"github.com/sam-thetutor/herlock/internal/session"
	"github.com/sam-thetutor/herlock/pkg/logger"
)

// AuthHandler handles login and logout
type AuthHandler struct {
	ledger   *ledger.Client
	sessions *services.SessionService
	manager  *session.Manager
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(ledgerClient *ledger.Client, sessions *services.SessionService, manager *session.Manager) *AuthHandler {
	return &AuthHandler{
		ledger:   ledgerClient,
		sessions: sessions,
		manager:  manager,
	}
}

// LoginResponse carries the session token and the ledger profile
// established at login
type LoginResponse struct {
	Token   string             `json:"token"`
	Profile models.UserProfile `json:"profile"`
}

// Login handles POST /api/auth/login. The identity assertion is
// forwarded to the ledger, which creates the account on first contact;
// a session record and bearer token come back.
func (h *AuthHandler) Login(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := models.NewAppErrorWithDetails(
			models.ErrorCodeMalformedJSON,
			"Invalid JSON format",
			err.Error(),
		)
		models.HandleError(c, appErr, log)
		return
	}
	if req.IdentityAssertion == "" {
		models.HandleError(c, models.NewValidationError("Identity assertion is required", ""), log)
		return
	}

	profile, err := h.ledger.Login(c.Request.Context(), req.IdentityAssertion)
	if err != nil {
		log.Error("Ledger login failed", zap.Error(err))
		respondError(c, err, log)
		return
	}

	_, token, err := h.sessions.CreateSession(c.Request.Context(), profile.Principal, req.IdentityAssertion)
	if err != nil {
		log.Error("Session creation failed", zap.Error(err))
		models.HandleError(c, models.NewAppErrorWithCause(models.ErrorCodeDatabaseError, "Could not create session", err), log)
		return
	}

	log.Info("Login successful", zap.String("principal", profile.Principal))
	c.JSON(http.StatusOK, LoginResponse{Token: token, Profile: profile})
}

// Logout handles POST /api/auth/logout, revoking the session and
// dropping its cache
func (h *AuthHandler) Logout(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	record, ok := middleware.SessionFrom(c)
	if !ok {
		models.HandleError(c, models.NewAppError(models.ErrorCodeNotAuthenticated, "No session attached to request"), log)
		return
	}

	if err := h.sessions.RevokeSession(c.Request.Context(), record.ID); err != nil {
		log.Error("Session revocation failed", zap.Error(err))
		models.HandleError(c, models.NewAppErrorWithCause(models.ErrorCodeDatabaseError, "Could not revoke session", err), log)
		return
	}
	h.manager.Release(record.ID)

	log.Info("Logout successful", zap.String("principal", record.Principal))
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sam-thetutor/herlock/internal/models"
	"github.com/sam-thetutor/herlock/internal/services"
	"github.com/sam-thetutor/herlock/internal/session"
	"github.com/sam-thetutor/herlock/pkg/logger"
)

// Context keys set by AuthMiddleware for downstream handlers
const (
	ContextKeySession        = "session"
	ContextKeySessionContext = "session_context"
)

// AuthMiddleware validates the bearer session token, loads the session
// record, and attaches the session's live context for handlers
func AuthMiddleware(sessions *services.SessionService, manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.GetLogger().WithContext(c.Request.Context())

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			appErr := models.NewAppErrorWithDetails(
				models.ErrorCodeNotAuthenticated,
				"Session token is required",
				"Provide a bearer token in the Authorization header",
			)
			models.HandleError(c, appErr, log)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authHeader)
		if strings.HasPrefix(strings.ToLower(token), "bearer") {
			token = strings.TrimSpace(token[6:])
		}
		if token == "" {
			models.HandleError(c, models.NewAppError(models.ErrorCodeInvalidToken, "Session token is empty"), log)
			c.Abort()
			return
		}

		record, err := sessions.ValidateToken(token)
		if err != nil {
			log.Warn("Session validation failed",
				zap.Error(err),
				zap.String("client_ip", c.ClientIP()),
			)

			var appErr *models.AppError
			switch err {
			case services.ErrInvalidToken:
				appErr = models.NewAppError(models.ErrorCodeInvalidToken, "Invalid session token")
			case services.ErrSessionNotFound, services.ErrSessionInactive:
				appErr = models.NewAppError(models.ErrorCodeSessionExpired, "Session is no longer valid")
			case services.ErrDatabaseError:
				appErr = models.NewAppErrorWithCause(models.ErrorCodeDatabaseError, "Session store unavailable", err)
			default:
				appErr = models.NewAppErrorWithCause(models.ErrorCodeNotAuthenticated, "Authentication failed", err)
			}
			models.HandleError(c, appErr, log)
			c.Abort()
			return
		}

		sc := manager.Acquire(record)
		c.Set(ContextKeySession, record)
		c.Set(ContextKeySessionContext, sc)

		ctx := logger.ContextWithPrincipal(c.Request.Context(), record.Principal)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// SessionFrom extracts the session record set by AuthMiddleware
func SessionFrom(c *gin.Context) (*models.Session, bool) {
	v, ok := c.Get(ContextKeySession)
	if !ok {
		return nil, false
	}
	record, ok := v.(*models.Session)
	return record, ok
}

// SessionContextFrom extracts the live session context set by AuthMiddleware
func SessionContextFrom(c *gin.Context) (*session.Context, bool) {
	v, ok := c.Get(ContextKeySessionContext)
	if !ok {
		return nil, false
	}
	sc, ok := v.(*session.Context)
	return sc, ok
}

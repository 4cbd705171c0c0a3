package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/sam-thetutor/herlock/internal/ledger"
	"github.com/sam-thetutor/herlock/internal/middleware"
	"github.com/sam-thetutor/herlock/internal/models"
	"github.com/sam-thetutor/herlock/internal/session"
	"github.com/sam-thetutor/herlock/internal/validation"
	"github.com/sam-thetutor/herlock/pkg/logger"
)

// respondError maps domain errors onto the error response envelope.
// Validation rejections keep their user-facing message; everything else
// collapses into the transport/internal taxonomy.
func respondError(c *gin.Context, err error, log *logger.Logger) {
	var rejection *validation.RejectionError
	var appErr *models.AppError

	switch {
	case errors.As(err, &appErr):
		// already classified
	case errors.As(err, &rejection):
		appErr = models.NewValidationError(rejection.Message, "")
	case errors.Is(err, session.ErrMutationPending):
		appErr = models.NewAppError(models.ErrorCodeMutationPending, "The same operation is already in progress")
	case errors.Is(err, ledger.ErrNotAuthenticated):
		appErr = models.NewAppError(models.ErrorCodeNotAuthenticated, "Ledger rejected the session")
	case ledger.IsTimeout(err):
		appErr = models.NewAppErrorWithCause(models.ErrorCodeLedgerTimeout, "Ledger did not respond in time", err)
	default:
		appErr = models.NewLedgerError("Ledger request failed", err)
	}

	models.HandleError(c, appErr, log)
}

// sessionContext pulls the authenticated session context or fails the
// request; AuthMiddleware guarantees presence on protected routes
func sessionContext(c *gin.Context, log *logger.Logger) (*session.Context, bool) {
	sc, ok := middleware.SessionContextFrom(c)
	if !ok {
		models.HandleError(c, models.NewAppError(models.ErrorCodeNotAuthenticated, "No session attached to request"), log)
		return nil, false
	}
	return sc, true
}

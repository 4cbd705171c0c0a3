package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sam-thetutor/herlock/internal/format"
	"github.com/sam-thetutor/herlock/internal/models"
	"github.com/sam-thetutor/herlock/internal/validation"
	"github.com/sam-thetutor/herlock/pkg/logger"
)

// InheritanceHandler serves the heir roster, allocation, and the
// inactivity countdown
type InheritanceHandler struct{}

// NewInheritanceHandler creates a new InheritanceHandler instance
func NewInheritanceHandler() *InheritanceHandler {
	return &InheritanceHandler{}
}

// InactivityResponse is the countdown view: the ledger snapshot plus
// the locally compensated remaining time
type InactivityResponse struct {
	Status             models.InactivityStatus `json:"status"`
	RemainingSeconds   *int64                  `json:"remaining_seconds,omitempty"`
	RemainingDisplay   string                  `json:"remaining_display,omitempty"`
	EligibleForTrigger bool                    `json:"eligible_for_trigger"`
}

// GetInactivityStatus handles GET /api/inheritance/countdown
func (h *InheritanceHandler) GetInactivityStatus(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())
	sc, ok := sessionContext(c, log)
	if !ok {
		return
	}

	countdown, status, known, err := sc.Countdown(c.Request.Context())
	if err != nil {
		respondError(c, err, log)
		return
	}
	if !known {
		c.JSON(http.StatusOK, gin.H{"status": nil})
		return
	}

	now := time.Now()
	resp := InactivityResponse{
		Status:             status,
		EligibleForTrigger: countdown.Eligible(now),
	}
	if remaining, ok := countdown.Remaining(now); ok {
		resp.RemainingSeconds = &remaining
		resp.RemainingDisplay = format.TimeRemaining(remaining)
	}
	c.JSON(http.StatusOK, resp)
}

// StreamCountdown handles GET /api/inheritance/countdown/stream. It
// pushes one server-sent event per second with the compensated
// remaining time, until the countdown hits zero or the client
// disconnects.
func (h *InheritanceHandler) StreamCountdown(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())
	sc, ok := sessionContext(c, log)
	if !ok {
		return
	}

	countdown, _, known, err := sc.Countdown(c.Request.Context())
	if err != nil {
		respondError(c, err, log)
		return
	}
	if !known {
		c.JSON(http.StatusOK, gin.H{"status": nil})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	// the channel closes when the countdown reaches zero or the client
	// disconnects and cancels the request context
	for remaining := range countdown.Watch(c.Request.Context(), time.Second) {
		c.SSEvent("countdown", gin.H{
			"remaining_seconds": remaining,
			"remaining_display": format.TimeRemaining(remaining),
		})
		c.Writer.Flush()
	}
}

// Heartbeat handles POST /api/inheritance/heartbeat
func (h *InheritanceHandler) Heartbeat(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())
	sc, ok := sessionContext(c, log)
	if !ok {
		return
	}

	if err := sc.Heartbeat(c.Request.Context()); err != nil {
		respondError(c, err, log)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// SetInactivityPeriod handles PUT /api/inheritance/period
func (h *InheritanceHandler) SetInactivityPeriod(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())
	sc, ok := sessionContext(c, log)
	if !ok {
		return
	}

	var req models.SetInactivityPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := models.NewAppErrorWithDetails(
			models.ErrorCodeMalformedJSON,
			"Invalid JSON format",
			err.Error(),
		)
		models.HandleError(c, appErr, log)
		return
	}

	if err := sc.SetInactivityPeriod(c.Request.Context(), req.Seconds); err != nil {
		respondError(c, err, log)
		return
	}

	log.Info("Inactivity period updated",
		zap.Int64("seconds", req.Seconds),
		zap.Int64("days", format.SecondsToDays(req.Seconds)),
	)
	c.JSON(http.StatusOK, gin.H{"seconds": req.Seconds})
}

// TriggerCheck handles POST /api/inheritance/check
func (h *InheritanceHandler) TriggerCheck(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())
	sc, ok := sessionContext(c, log)
	if !ok {
		return
	}

	if err := sc.TriggerInheritanceCheck(c.Request.Context()); err != nil {
		respondError(c, err, log)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "check_triggered"})
}

// HeirView decorates a ledger heir with display fields
type HeirView struct {
	models.Heir
	TruncatedAddress string `json:"truncated_address"`
}

// ListHeirs handles GET /api/heirs
func (h *InheritanceHandler) ListHeirs(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())
	sc, ok := sessionContext(c, log)
	if !ok {
		return
	}

	heirs, err := sc.Heirs(c.Request.Context())
	if err != nil {
		respondError(c, err, log)
		return
	}
	total, err := sc.TotalAllocation(c.Request.Context())
	if err != nil {
		respondError(c, err, log)
		return
	}

	views := make([]HeirView, 0, len(heirs))
	for _, heir := range heirs {
		views = append(views, HeirView{
			Heir:             heir,
			TruncatedAddress: format.TruncateAddress(heir.BitcoinAddress),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"heirs":            views,
		"total_allocation": total,
	})
}

// AddHeir handles POST /api/heirs
func (h *InheritanceHandler) AddHeir(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())
	sc, ok := sessionContext(c, log)
	if !ok {
		return
	}

	var req models.AddHeirRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := models.NewAppErrorWithDetails(
			models.ErrorCodeMalformedJSON,
			"Invalid JSON format",
			err.Error(),
		)
		models.HandleError(c, appErr, log)
		return
	}

	id, err := sc.AddHeir(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, log)
		return
	}

	log.Info("Heir added",
		zap.Uint64("heir_id", id),
		zap.Int("allocation", req.AllocationPercentage),
	)
	c.JSON(http.StatusCreated, gin.H{"heir_id": id})
}

// RemoveHeir handles DELETE /api/heirs/:id
func (h *InheritanceHandler) RemoveHeir(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())
	sc, ok := sessionContext(c, log)
	if !ok {
		return
	}

	heirID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		models.HandleError(c, models.NewValidationError("Heir id must be a number", ""), log)
		return
	}

	if err := sc.RemoveHeir(c.Request.Context(), heirID); err != nil {
		respondError(c, err, log)
		return
	}

	log.Info("Heir removed", zap.Uint64("heir_id", heirID))
	c.JSON(http.StatusOK, gin.H{"heir_id": heirID})
}

// GetHeirBalance handles GET /api/heirs/balance?address=<addr>
func (h *InheritanceHandler) GetHeirBalance(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())
	sc, ok := sessionContext(c, log)
	if !ok {
		return
	}

	address := c.Query("address")
	if !validation.IsValidAddress(address) {
		models.HandleError(c, models.NewValidationError("Invalid Bitcoin address format", ""), log)
		return
	}

	balance, err := sc.HeirBalance(c.Request.Context(), address)
	if err != nil {
		respondError(c, err, log)
		return
	}
	c.JSON(http.StatusOK, BalanceResponse{
		Satoshi: balance,
		BTC:     format.BTC(balance),
	})
}

// GetTotalAllocation handles GET /api/heirs/allocation
func (h *InheritanceHandler) GetTotalAllocation(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())
	sc, ok := sessionContext(c, log)
	if !ok {
		return
	}

	total, err := sc.TotalAllocation(c.Request.Context())
	if err != nil {
		respondError(c, err, log)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_allocation": total,
		"remaining":        100 - total,
	})
}

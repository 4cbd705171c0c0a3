package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sam-thetutor/herlock/internal/format"
	"github.com/sam-thetutor/herlock/internal/models"
	"github.com/sam-thetutor/herlock/internal/validation"
	"github.com/sam-thetutor/herlock/pkg/logger"
)

// AccountHandler serves profile, balance, and address reads for the
// authenticated principal
type AccountHandler struct{}

// NewAccountHandler creates a new AccountHandler instance
func NewAccountHandler() *AccountHandler {
	return &AccountHandler{}
}

// BalanceResponse pairs the raw satoshi balance with display values
type BalanceResponse struct {
	Satoshi     uint64 `json:"satoshi"`
	BTC         string `json:"btc"`
	MaxSendable uint64 `json:"max_sendable"`
}

// GetProfile handles GET /api/account/profile
func (h *AccountHandler) GetProfile(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())
	sc, ok := sessionContext(c, log)
	if !ok {
		return
	}

	profile, err := sc.Profile(c.Request.Context())
	if err != nil {
		respondError(c, err, log)
		return
	}
	if !profile.Present {
		c.JSON(http.StatusOK, gin.H{"profile": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile.Value})
}

// GetUserStatus handles GET /api/account/status
func (h *AccountHandler) GetUserStatus(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())
	sc, ok := sessionContext(c, log)
	if !ok {
		return
	}

	status, err := sc.UserStatus(c.Request.Context())
	if err != nil {
		respondError(c, err, log)
		return
	}
	if !status.Present {
		c.JSON(http.StatusOK, gin.H{"status": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status.Value})
}

// GetBalance handles GET /api/account/balance
func (h *AccountHandler) GetBalance(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())
	sc, ok := sessionContext(c, log)
	if !ok {
		return
	}

	balance, err := sc.Balance(c.Request.Context())
	if err != nil {
		respondError(c, err, log)
		return
	}

	c.JSON(http.StatusOK, BalanceResponse{
		Satoshi:     balance,
		BTC:         format.BTC(balance),
		MaxSendable: validation.MaxSendable(balance),
	})
}

// GetBitcoinAddress handles GET /api/account/address
func (h *AccountHandler) GetBitcoinAddress(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())
	sc, ok := sessionContext(c, log)
	if !ok {
		return
	}

	address, err := sc.BitcoinAddress(c.Request.Context())
	if err != nil {
		respondError(c, err, log)
		return
	}
	if !address.Present {
		c.JSON(http.StatusOK, gin.H{"address": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"address":   address.Value,
		"truncated": format.TruncateAddress(address.Value),
	})
}

// GenerateAddress handles POST /api/account/address
func (h *AccountHandler) GenerateAddress(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())
	sc, ok := sessionContext(c, log)
	if !ok {
		return
	}

	address, err := sc.GenerateAddress(c.Request.Context())
	if err != nil {
		respondError(c, err, log)
		return
	}

	log.Info("Generated custody address", zap.String("address", format.TruncateAddress(address)))
	c.JSON(http.StatusOK, gin.H{"address": address})
}

// GetAddressUtxos handles GET /api/account/utxos?address=<addr>
func (h *AccountHandler) GetAddressUtxos(c *gin.Context) {
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

	page, err := sc.AddressUtxos(c.Request.Context(), address)
	if err != nil {
		respondError(c, err, log)
		return
	}
	c.JSON(http.StatusOK, page)
}

// SendBitcoin handles POST /api/account/send
func (h *AccountHandler) SendBitcoin(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())
	sc, ok := sessionContext(c, log)
	if !ok {
		return
	}

	var req models.SendBitcoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := models.NewAppErrorWithDetails(
			models.ErrorCodeMalformedJSON,
			"Invalid JSON format",
			err.Error(),
		)
		models.HandleError(c, appErr, log)
		return
	}

	txid, err := sc.SendBitcoin(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, log)
		return
	}

	log.Info("Transfer accepted",
		zap.String("recipient", format.TruncateAddress(req.RecipientAddress)),
		zap.String("txid", txid),
	)
	c.JSON(http.StatusOK, gin.H{"txid": txid})
}

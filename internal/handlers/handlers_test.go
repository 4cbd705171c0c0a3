package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sam-thetutor/herlock/internal/config"
	"github.com/sam-thetutor/herlock/internal/ledger"
	"github.com/sam-thetutor/herlock/internal/middleware"
	"github.com/sam-thetutor/herlock/internal/models"
	"github.com/sam-thetutor/herlock/internal/session"
	"github.com/sam-thetutor/herlock/pkg/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Initialize(&logger.Config{Level: "error", Environment: "development"})
	os.Exit(m.Run())
}

// ledgerStub answers the ledger HTTP surface from fixed state
type ledgerStub struct {
	mu          sync.Mutex
	balance     uint64
	allocation  int
	heirs       []models.Heir
	countdown   int64
	unreachable bool
	server      *httptest.Server
}

func newLedgerStub() *ledgerStub {
	s := &ledgerStub{
		balance:    100_000,
		allocation: 40,
		heirs: []models.Heir{
			{ID: 1, BitcoinAddress: "1BoatSLRHtKNngkdXEeobR76b53LETtpyT", AllocationPercentage: 40},
		},
		countdown: 600,
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *ledgerStub) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unreachable {
		http.Error(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/v1/get_balance":
		json.NewEncoder(w).Encode(s.balance)
	case "/api/v1/get_heirs":
		json.NewEncoder(w).Encode(s.heirs)
	case "/api/v1/get_total_allocation":
		json.NewEncoder(w).Encode(s.allocation)
	case "/api/v1/get_profile":
		json.NewEncoder(w).Encode(models.UserProfile{
			Principal:     "test-principal",
			AccountStatus: models.AccountStatusActive,
		})
	case "/api/v1/get_inactivity_status":
		json.NewEncoder(w).Encode(models.InactivityStatus{
			IsActive:                true,
			SecondsSinceActivity:    100,
			SecondsUntilInheritance: &s.countdown,
		})
	case "/api/v1/get_bitcoin_address":
		w.Write([]byte(`null`))
	case "/api/v1/heartbeat":
		w.Write([]byte(`{}`))
	case "/api/v1/set_inactivity_period":
		w.Write([]byte(`{"ok":{}}`))
	default:
		http.NotFound(w, r)
	}
}

// newTestRouter builds a gin engine with a pre-authenticated session
// context, skipping token validation
func newTestRouter(t *testing.T, stub *ledgerStub) *gin.Engine {
	t.Helper()

	ledgerCfg := &config.LedgerConfig{
		Endpoint:   stub.server.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 0,
		RetryDelay: time.Millisecond,
	}
	cacheCfg := &config.CacheConfig{
		ProfileStaleTime:    time.Hour,
		BalanceStaleTime:    time.Hour,
		HeirsStaleTime:      time.Hour,
		AllocationStaleTime: time.Hour,
		CountdownStaleTime:  time.Hour,
		AddressStaleTime:    time.Hour,
	}

	client := ledger.NewClient(ledgerCfg, nil).WithToken("stub-token")
	sc := session.New("test-principal", client, cacheCfg, nil, nil)
	t.Cleanup(sc.Close)

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set(middleware.ContextKeySessionContext, sc)
		c.Set(middleware.ContextKeySession, &models.Session{ID: "s1", Principal: "test-principal"})
	})

	account := NewAccountHandler()
	inheritance := NewInheritanceHandler()

	engine.GET("/api/account/balance", account.GetBalance)
	engine.GET("/api/account/address", account.GetBitcoinAddress)
	engine.POST("/api/account/send", account.SendBitcoin)
	engine.GET("/api/heirs", inheritance.ListHeirs)
	engine.GET("/api/inheritance/countdown", inheritance.GetInactivityStatus)
	engine.GET("/api/inheritance/countdown/stream", inheritance.StreamCountdown)
	engine.POST("/api/inheritance/heartbeat", inheritance.Heartbeat)
	engine.PUT("/api/inheritance/period", inheritance.SetInactivityPeriod)

	return engine
}

func TestGetBalanceEndpoint(t *testing.T) {
	stub := newLedgerStub()
	defer stub.server.Close()
	engine := newTestRouter(t, stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/account/balance", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp BalanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint64(100_000), resp.Satoshi)
	assert.Equal(t, "0.00100000", resp.BTC)
	assert.Equal(t, uint64(90_000), resp.MaxSendable)
}

func TestGetAddressEndpointAbsent(t *testing.T) {
	stub := newLedgerStub()
	defer stub.server.Close()
	engine := newTestRouter(t, stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/account/address", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp["address"])
}

func TestListHeirsEndpoint(t *testing.T) {
	stub := newLedgerStub()
	defer stub.server.Close()
	engine := newTestRouter(t, stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/heirs", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Heirs           []HeirView `json:"heirs"`
		TotalAllocation int        `json:"total_allocation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Heirs, 1)
	assert.Equal(t, 40, resp.TotalAllocation)
	assert.Equal(t, "1BoatSLR...3LETtpyT", resp.Heirs[0].TruncatedAddress)
}

func TestCountdownEndpoint(t *testing.T) {
	stub := newLedgerStub()
	defer stub.server.Close()
	engine := newTestRouter(t, stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/inheritance/countdown", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp InactivityResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.RemainingSeconds)
	assert.InDelta(t, 600, float64(*resp.RemainingSeconds), 2)
	assert.False(t, resp.EligibleForTrigger)
	assert.NotEmpty(t, resp.RemainingDisplay)
}

func TestCountdownStreamEndpoint(t *testing.T) {
	stub := newLedgerStub()
	defer stub.server.Close()
	engine := newTestRouter(t, stub)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/inheritance/countdown/stream", nil).WithContext(ctx)
	engine.ServeHTTP(w, req)

	// at least the first tick lands before the client goes away
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "event:countdown"))
	assert.True(t, strings.Contains(body, "remaining_seconds"))
}

func TestGetBalanceEndpointLedgerDown(t *testing.T) {
	stub := newLedgerStub()
	stub.unreachable = true
	defer stub.server.Close()
	engine := newTestRouter(t, stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/account/balance", nil)
	engine.ServeHTTP(w, req)

	// a ledger outage is a gateway failure, never a zero balance
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), `"satoshi":0`)
}

func TestSendBitcoinEndpointRejection(t *testing.T) {
	stub := newLedgerStub()
	defer stub.server.Close()
	engine := newTestRouter(t, stub)

	body, _ := json.Marshal(models.SendBitcoinRequest{
		RecipientAddress: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
		Amount:           "0.00095",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/account/send", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ErrorCodeValidationFailed, resp.Error.Code)
	assert.Equal(t, "Insufficient balance. Required: 105000, Available: 100000", resp.Error.Message)
}

func TestSetInactivityPeriodEndpoint(t *testing.T) {
	stub := newLedgerStub()
	defer stub.server.Close()
	engine := newTestRouter(t, stub)

	t.Run("BoundsRejectedBeforeLedger", func(t *testing.T) {
		body, _ := json.Marshal(models.SetInactivityPeriodRequest{Seconds: 10})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/inheritance/period", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Accepted", func(t *testing.T) {
		body, _ := json.Marshal(models.SetInactivityPeriodRequest{Seconds: 86_400})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/inheritance/period", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestHeartbeatEndpoint(t *testing.T) {
	stub := newLedgerStub()
	defer stub.server.Close()
	engine := newTestRouter(t, stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/inheritance/heartbeat", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sam-thetutor/herlock/internal/config"
	"github.com/sam-thetutor/herlock/internal/ledger"
	"github.com/sam-thetutor/herlock/internal/models"
	"github.com/sam-thetutor/herlock/internal/validation"
)

// fakeLedger is an in-memory stand-in for the remote ledger, serving
// the same HTTP surface the real client speaks
type fakeLedger struct {
	mu         sync.Mutex
	balance    uint64
	heirs      []models.Heir
	allocation int
	status     models.AccountStatus
	failing    bool
	calls      map[string]int
	server     *httptest.Server
}

func newFakeLedger() *fakeLedger {
	f := &fakeLedger{
		balance:    100_000,
		heirs:      []models.Heir{},
		status:     models.AccountStatusActive,
		calls:      make(map[string]int),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeLedger) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	op := r.URL.Path[len("/api/v1/"):]
	f.calls[op]++

	if f.failing {
		http.Error(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch op {
	case "get_balance":
		json.NewEncoder(w).Encode(f.balance)
	case "get_heirs":
		json.NewEncoder(w).Encode(f.heirs)
	case "get_total_allocation":
		json.NewEncoder(w).Encode(f.allocation)
	case "get_profile":
		json.NewEncoder(w).Encode(models.UserProfile{
			Principal:               "test-principal",
			InactivityPeriodSeconds: 86_400,
			AccountStatus:           f.status,
		})
	case "get_bitcoin_address":
		w.Write([]byte(`[]`))
	case "add_heir":
		var req models.AddHeirRequest
		json.NewDecoder(r.Body).Decode(&req)
		heir := models.Heir{
			ID:                   uint64(len(f.heirs) + 1),
			BitcoinAddress:       req.BitcoinAddress,
			AllocationPercentage: req.AllocationPercentage,
		}
		f.heirs = append(f.heirs, heir)
		f.allocation += req.AllocationPercentage
		json.NewEncoder(w).Encode(map[string]uint64{"ok": heir.ID})
	case "send_bitcoin":
		var req struct {
			Amount uint64 `json:"amount"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		f.balance -= req.Amount + 10_000
		json.NewEncoder(w).Encode(map[string]string{"ok": "txid-1"})
	case "heartbeat":
		w.Write([]byte(`{}`))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeLedger) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

func (f *fakeLedger) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeLedger) close() {
	f.server.Close()
}

func newTestContext(t *testing.T, f *fakeLedger) *Context {
	t.Helper()
	ledgerCfg := &config.LedgerConfig{
		Endpoint:   f.server.URL,
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
	client := ledger.NewClient(ledgerCfg, nil).WithToken("test-token")
	sc := New("test-principal", client, cacheCfg, nil, nil)
	t.Cleanup(sc.Close)
	return sc
}

func TestContextReads(t *testing.T) {
	f := newFakeLedger()
	defer f.close()
	sc := newTestContext(t, f)
	ctx := context.Background()

	t.Run("BalanceServedFromCache", func(t *testing.T) {
		balance, err := sc.Balance(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(100_000), balance)

		_, err = sc.Balance(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, f.callCount("get_balance"))
	})

	t.Run("AbsentAddressIsNone", func(t *testing.T) {
		address, err := sc.BitcoinAddress(ctx)
		require.NoError(t, err)
		assert.False(t, address.Present)
	})

	t.Run("UnknownKeyRefused", func(t *testing.T) {
		_, err := sc.Read(ctx, "no-such-key")
		assert.Error(t, err)
	})
}

func TestContextAddHeir(t *testing.T) {
	const address = "1BoatSLRHtKNngkdXEeobR76b53LETtpyT"

	t.Run("AcceptedAndRefetched", func(t *testing.T) {
		f := newFakeLedger()
		defer f.close()
		sc := newTestContext(t, f)
		ctx := context.Background()

		heirs, err := sc.Heirs(ctx)
		require.NoError(t, err)
		assert.Empty(t, heirs)

		id, err := sc.AddHeir(ctx, models.AddHeirRequest{
			BitcoinAddress:       address,
			AllocationPercentage: 40,
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), id)

		// the heirs entry was invalidated and the next read refetches
		heirs, err = sc.Heirs(ctx)
		require.NoError(t, err)
		require.Len(t, heirs, 1)
		assert.Equal(t, address, heirs[0].BitcoinAddress)
		assert.Equal(t, 2, f.callCount("get_heirs"))
	})

	t.Run("LocalAllocationCapRejectsWithoutLedgerCall", func(t *testing.T) {
		f := newFakeLedger()
		f.allocation = 80
		defer f.close()
		sc := newTestContext(t, f)
		ctx := context.Background()

		_, err := sc.AddHeir(ctx, models.AddHeirRequest{
			BitcoinAddress:       address,
			AllocationPercentage: 30,
		})
		require.Error(t, err)
		assert.Equal(t, "Total allocation would be 110%. Maximum is 100%.", err.Error())
		assert.Equal(t, 0, f.callCount("add_heir"))
	})
}

func TestContextSendBitcoin(t *testing.T) {
	const recipient = "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"

	t.Run("AcceptedTransfer", func(t *testing.T) {
		f := newFakeLedger()
		defer f.close()
		sc := newTestContext(t, f)
		ctx := context.Background()

		txid, err := sc.SendBitcoin(ctx, models.SendBitcoinRequest{
			RecipientAddress: recipient,
			Amount:           "0.0005", // 50,000 sats against 100,000 balance
		})
		require.NoError(t, err)
		assert.Equal(t, "txid-1", txid)

		// balance was invalidated; the refetch sees the debit
		balance, err := sc.Balance(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(40_000), balance)
	})

	t.Run("InsufficientBalanceRejectedLocally", func(t *testing.T) {
		f := newFakeLedger()
		defer f.close()
		sc := newTestContext(t, f)
		ctx := context.Background()

		_, err := sc.SendBitcoin(ctx, models.SendBitcoinRequest{
			RecipientAddress: recipient,
			Amount:           "0.00095", // 95,000 + fee exceeds 100,000
		})
		require.Error(t, err)
		var rej *validation.RejectionError
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, "Insufficient balance. Required: 105000, Available: 100000", rej.Message)
		assert.Equal(t, 0, f.callCount("send_bitcoin"))
	})

	t.Run("BlockedAccountRejected", func(t *testing.T) {
		f := newFakeLedger()
		f.status = models.AccountStatusFrozen
		defer f.close()
		sc := newTestContext(t, f)
		ctx := context.Background()

		_, err := sc.SendBitcoin(ctx, models.SendBitcoinRequest{
			RecipientAddress: recipient,
			Amount:           "0.0001",
		})
		require.Error(t, err)
		assert.Equal(t, "Account is frozen. Cannot send Bitcoin.", err.Error())
		assert.Equal(t, 0, f.callCount("send_bitcoin"))
	})

	t.Run("MalformedAmountRejected", func(t *testing.T) {
		f := newFakeLedger()
		defer f.close()
		sc := newTestContext(t, f)

		_, err := sc.SendBitcoin(context.Background(), models.SendBitcoinRequest{
			RecipientAddress: recipient,
			Amount:           "half a coin",
		})
		require.Error(t, err)
		var rej *validation.RejectionError
		assert.ErrorAs(t, err, &rej)
	})
}

func TestContextHeartbeat(t *testing.T) {
	f := newFakeLedger()
	defer f.close()
	sc := newTestContext(t, f)
	ctx := context.Background()

	// prime the profile entry, then heartbeat must dirty it
	_, err := sc.Profile(ctx)
	require.NoError(t, err)

	require.NoError(t, sc.Heartbeat(ctx))

	_, err = sc.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.callCount("get_profile"))
	assert.Equal(t, 1, f.callCount("heartbeat"))
}

func TestContextTransportFailure(t *testing.T) {
	const recipient = "1BoatSLRHtKNngkdXEeobR76b53LETtpyT"

	t.Run("BalanceSurfacesError", func(t *testing.T) {
		f := newFakeLedger()
		f.failing = true
		defer f.close()
		sc := newTestContext(t, f)

		balance, err := sc.Balance(context.Background())
		require.Error(t, err)
		assert.Zero(t, balance)
	})

	t.Run("SendBitcoinIsNotARejection", func(t *testing.T) {
		f := newFakeLedger()
		f.failing = true
		defer f.close()
		sc := newTestContext(t, f)

		// an unreachable ledger must not read as "insufficient balance"
		_, err := sc.SendBitcoin(context.Background(), models.SendBitcoinRequest{
			RecipientAddress: recipient,
			Amount:           "0.0005",
		})
		require.Error(t, err)
		var rej *validation.RejectionError
		assert.False(t, errors.As(err, &rej))
		assert.Equal(t, 0, f.callCount("send_bitcoin"))
	})

	t.Run("LastGoodDataSurvivesOutage", func(t *testing.T) {
		f := newFakeLedger()
		defer f.close()
		sc := newTestContext(t, f)
		ctx := context.Background()

		balance, err := sc.Balance(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(100_000), balance)

		f.setFailing(true)
		sc.Queries().Invalidate(KeyBalance)

		balance, err = sc.Balance(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(100_000), balance)
	})
}

func TestContextStandingSubscriptions(t *testing.T) {
	f := newFakeLedger()
	defer f.close()

	ledgerCfg := &config.LedgerConfig{
		Endpoint:   f.server.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 0,
		RetryDelay: time.Millisecond,
	}
	cacheCfg := &config.CacheConfig{
		ProfileStaleTime:      time.Hour,
		BalanceStaleTime:      time.Hour,
		HeirsStaleTime:        time.Hour,
		AllocationStaleTime:   time.Hour,
		CountdownStaleTime:    time.Hour,
		AddressStaleTime:      time.Hour,
		CountdownRefetchEvery: time.Hour,
	}
	client := ledger.NewClient(ledgerCfg, nil).WithToken("test-token")
	sc := New("test-principal", client, cacheCfg, nil, nil)
	t.Cleanup(sc.Close)

	// the countdown key has a refetch interval, so the session holds a
	// standing subscription for it; keys without one stay on demand
	assert.Equal(t, 1, sc.Queries().Subscribers(KeyInactivityStatus))
	assert.Equal(t, 0, sc.Queries().Subscribers(KeyBalance))
	assert.Equal(t, 0, sc.Queries().Subscribers(KeyBitcoinAddress))
}

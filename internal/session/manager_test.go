package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sam-thetutor/herlock/internal/config"
	"github.com/sam-thetutor/herlock/internal/ledger"
	"github.com/sam-thetutor/herlock/internal/models"
	"github.com/sam-thetutor/herlock/pkg/query"
)

func newTestManager(f *fakeLedger) *Manager {
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
	return NewManager(ledger.NewClient(ledgerCfg, nil), cacheCfg, nil, nil)
}

func sessionRecord(id, principal string) *models.Session {
	return &models.Session{
		ID:          id,
		Principal:   principal,
		LedgerToken: "token-" + id,
		Active:      true,
	}
}

func TestManagerAcquire(t *testing.T) {
	f := newFakeLedger()
	defer f.close()
	m := newTestManager(f)
	defer m.CloseAll()

	sc := m.Acquire(sessionRecord("s1", "alice"))
	require.NotNil(t, sc)
	assert.Equal(t, "alice", sc.Principal())

	// the same session id reuses the live context
	assert.Same(t, sc, m.Acquire(sessionRecord("s1", "alice")))
	assert.Equal(t, 1, m.Active())
}

func TestManagerRelease(t *testing.T) {
	f := newFakeLedger()
	defer f.close()
	m := newTestManager(f)
	defer m.CloseAll()

	sc := m.Acquire(sessionRecord("s1", "alice"))
	m.Release("s1")

	assert.Equal(t, 0, m.Active())
	_, err := sc.Read(context.Background(), KeyBalance)
	assert.ErrorIs(t, err, query.ErrClosed)
}

func TestManagerEvictExcept(t *testing.T) {
	f := newFakeLedger()
	defer f.close()
	m := newTestManager(f)
	defer m.CloseAll()

	kept := m.Acquire(sessionRecord("s1", "alice"))
	reaped := m.Acquire(sessionRecord("s2", "bob"))
	require.Equal(t, 2, m.Active())

	evicted := m.EvictExcept(func(id string) bool { return id == "s1" })
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, m.Active())

	// the reaped context is torn down, the surviving one still serves
	_, err := reaped.Read(context.Background(), KeyBalance)
	assert.ErrorIs(t, err, query.ErrClosed)

	balance, err := kept.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), balance)
}

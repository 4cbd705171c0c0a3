package session

import (
	"sync"

	"github.com/sam-thetutor/herlock/internal/config"
	"github.com/sam-thetutor/herlock/internal/ledger"
	"github.com/sam-thetutor/herlock/internal/models"
	"github.com/sam-thetutor/herlock/pkg/logger"
	"github.com/sam-thetutor/herlock/pkg/metrics"
)

// Manager owns the live session contexts, keyed by session id. A
// context is created lazily on the first authenticated request and
// reused until logout or eviction; its cache and pollers are private
// to that session.
type Manager struct {
	mu      sync.Mutex
	active  map[string]*Context
	base    *ledger.Client
	cache   *config.CacheConfig
	metrics *metrics.Collector
	log     *logger.Logger
}

// NewManager creates a session manager over the shared base ledger client
func NewManager(base *ledger.Client, cacheCfg *config.CacheConfig, collector *metrics.Collector, log *logger.Logger) *Manager {
	return &Manager{
		active:  make(map[string]*Context),
		base:    base,
		cache:   cacheCfg,
		metrics: collector,
		log:     log,
	}
}

// Acquire returns the live context for a session record, creating it
// on first use
func (m *Manager) Acquire(record *models.Session) *Context {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sc, ok := m.active[record.ID]; ok {
		return sc
	}
	sc := New(record.Principal, m.base.WithToken(record.LedgerToken), m.cache, m.metrics, m.log)
	m.active[record.ID] = sc
	return sc
}

// Release tears down one session's context, stopping its pollers
func (m *Manager) Release(sessionID string) {
	m.mu.Lock()
	sc, ok := m.active[sessionID]
	delete(m.active, sessionID)
	m.mu.Unlock()

	if ok {
		sc.Close()
	}
}

// Active returns the number of live session contexts
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// EvictExcept drops every context whose session id the keep predicate
// rejects; used by the periodic sweep to reap contexts whose session
// records were cleaned up.
func (m *Manager) EvictExcept(keep func(sessionID string) bool) int {
	m.mu.Lock()
	var evicted []*Context
	for id, sc := range m.active {
		if !keep(id) {
			evicted = append(evicted, sc)
			delete(m.active, id)
		}
	}
	m.mu.Unlock()

	for _, sc := range evicted {
		sc.Close()
	}
	return len(evicted)
}

// CloseAll tears down every live context
func (m *Manager) CloseAll() {
	m.mu.Lock()
	contexts := make([]*Context, 0, len(m.active))
	for _, sc := range m.active {
		contexts = append(contexts, sc)
	}
	m.active = make(map[string]*Context)
	m.mu.Unlock()

	for _, sc := range contexts {
		sc.Close()
	}
}

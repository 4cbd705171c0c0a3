package session

import (
	"context"
	"errors"
	"sync"

	"github.com/sam-thetutor/herlock/internal/models"
	"github.com/sam-thetutor/herlock/internal/validation"
	"github.com/sam-thetutor/herlock/pkg/metrics"
	"github.com/sam-thetutor/herlock/pkg/query"
)

// Command identifies a state-changing ledger operation. Admission is
// tracked per command: two different commands may overlap, a second
// instance of the same command is refused while the first is in flight.
type Command string

const (
	CommandAddHeir                 Command = "add-heir"
	CommandRemoveHeir              Command = "remove-heir"
	CommandSendBitcoin             Command = "send-bitcoin"
	CommandHeartbeat               Command = "heartbeat"
	CommandSetInactivityPeriod     Command = "set-inactivity-period"
	CommandGenerateAddress         Command = "generate-address"
	CommandTriggerInheritanceCheck Command = "trigger-inheritance-check"
)

// ErrMutationPending is returned when the same command is already in flight
var ErrMutationPending = errors.New("mutation already in flight")

// invalidationSets maps each command to the fixed set of cache keys it
// dirties on success. The sets are static: membership depends on what
// the ledger operation can change, never on the observed response.
var invalidationSets = map[Command][]query.Key{
	CommandAddHeir:                 {KeyHeirs, KeyTotalAllocation},
	CommandRemoveHeir:              {KeyHeirs, KeyTotalAllocation},
	CommandSendBitcoin:             {KeyBalance, KeyProfile, KeyInactivityStatus, KeyUserStatus},
	CommandHeartbeat:               {KeyInactivityStatus, KeyUserStatus, KeyProfile},
	CommandSetInactivityPeriod:     {KeyProfile, KeyInactivityStatus, KeyUserStatus},
	CommandGenerateAddress:         {KeyBitcoinAddress, KeyProfile},
	CommandTriggerInheritanceCheck: {KeyInactivityStatus, KeyUserStatus, KeyProfile, KeyBalance},
}

// InvalidationSet returns the cache keys a command dirties on success
func InvalidationSet(cmd Command) []query.Key {
	keys := invalidationSets[cmd]
	out := make([]query.Key, len(keys))
	copy(out, keys)
	return out
}

// Mutator serializes state-changing operations for one session and
// applies each command's invalidation set when it settles successfully.
// Transport failures and ledger rejections leave the cache untouched:
// stale-but-consistent data beats a refetch storm against a service
// that just failed.
type Mutator struct {
	mu      sync.Mutex
	pending map[Command]bool
	queries *query.Client
	metrics *metrics.Collector
}

// NewMutator creates a mutator over the session's query client
func NewMutator(queries *query.Client, collector *metrics.Collector) *Mutator {
	return &Mutator{
		pending: make(map[Command]bool),
		queries: queries,
		metrics: collector,
	}
}

// Pending reports whether a command is currently in flight
func (m *Mutator) Pending(cmd Command) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending[cmd]
}

// admit reserves the command slot or refuses a duplicate
func (m *Mutator) admit(cmd Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending[cmd] {
		return ErrMutationPending
	}
	m.pending[cmd] = true
	return nil
}

func (m *Mutator) release(cmd Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, cmd)
}

// settle applies the command's invalidation set after an accepted outcome
func (m *Mutator) settle(cmd Command) {
	if m.metrics != nil {
		m.metrics.RecordMutation()
	}
	m.queries.Invalidate(invalidationSets[cmd]...)
}

// RunRes executes a command whose ledger outcome is a Res envelope.
// An accepted outcome returns the payload and invalidates; a rejected
// outcome surfaces as a RejectionError and leaves the cache alone.
func RunRes[T any](ctx context.Context, m *Mutator, cmd Command, op func(context.Context) (models.Res[T], error)) (T, error) {
	var zero T
	if err := m.admit(cmd); err != nil {
		return zero, err
	}
	defer m.release(cmd)

	res, err := op(ctx)
	if err != nil {
		return zero, err
	}
	if res.IsErr() {
		if m.metrics != nil {
			m.metrics.RecordMutationRejection()
		}
		return zero, &validation.RejectionError{Message: res.Err}
	}

	m.settle(cmd)
	return res.OK, nil
}

// Run executes a command with no application-level outcome; any error
// is a transport failure
func (m *Mutator) Run(ctx context.Context, cmd Command, op func(context.Context) error) error {
	if err := m.admit(cmd); err != nil {
		return err
	}
	defer m.release(cmd)

	if err := op(ctx); err != nil {
		return err
	}
	m.settle(cmd)
	return nil
}

package session

import (
	"context"

	"github.com/sam-thetutor/herlock/internal/config"
	"github.com/sam-thetutor/herlock/internal/ledger"
	"github.com/sam-thetutor/herlock/internal/models"
	"github.com/sam-thetutor/herlock/internal/services"
	"github.com/sam-thetutor/herlock/internal/validation"
	"github.com/sam-thetutor/herlock/pkg/logger"
	"github.com/sam-thetutor/herlock/pkg/metrics"
	"github.com/sam-thetutor/herlock/pkg/query"
)

// Context is the per-principal working set: a token-scoped ledger
// handle, the session's private query cache, and the mutation gate.
// One Context lives for the duration of a dashboard session; Close
// tears down its pollers.
type Context struct {
	principal string
	ledger    *ledger.Client
	queries   *query.Client
	mutator   *Mutator
	cache     *config.CacheConfig
	log       *logger.Logger
}

// New builds a session context for a principal using a token-scoped
// ledger client
func New(principal string, ledgerClient *ledger.Client, cacheCfg *config.CacheConfig, collector *metrics.Collector, log *logger.Logger) *Context {
	queries := query.NewClient(collector)
	c := &Context{
		principal: principal,
		ledger:    ledgerClient,
		queries:   queries,
		mutator:   NewMutator(queries, collector),
		cache:     cacheCfg,
		log:       log,
	}

	// standing subscriptions: keys with a configured refetch interval
	// stay warm for the whole session, so the countdown and account
	// snapshots keep refreshing between dashboard requests
	for _, key := range []query.Key{KeyProfile, KeyBalance, KeyHeirs, KeyInactivityStatus, KeyUserStatus} {
		if _, opts, ok := c.Binding(key); ok && opts.RefetchInterval > 0 {
			c.Subscribe(key)
		}
	}
	return c
}

// Principal returns the session's principal identifier
func (s *Context) Principal() string {
	return s.principal
}

// Queries exposes the session's query client
func (s *Context) Queries() *query.Client {
	return s.queries
}

// Close stops pollers and drops all cached entries
func (s *Context) Close() {
	s.queries.Close()
}

// optFetcher adapts a ledger optional read into a cache fetcher
func optFetcher[T any](read func(context.Context) (models.Opt[T], error)) query.Fetcher {
	return func(ctx context.Context) (query.Value, error) {
		opt, err := read(ctx)
		if err != nil {
			return query.Value{}, err
		}
		if !opt.Present {
			return query.None(), nil
		}
		return query.Some(opt.Value), nil
	}
}

// valueFetcher adapts a plain ledger read into a cache fetcher
func valueFetcher[T any](read func(context.Context) (T, error)) query.Fetcher {
	return func(ctx context.Context) (query.Value, error) {
		v, err := read(ctx)
		if err != nil {
			return query.Value{}, err
		}
		return query.Some(v), nil
	}
}

// dataErr surfaces a fetch failure for a key that has never produced
// data. Once a value has landed, failures keep the last good snapshot
// and the cached value is served instead.
func dataErr(result query.Result) error {
	if !result.Fetched && result.Err != nil {
		return result.Err
	}
	return nil
}

// Binding returns the fetcher and cache policy for a key, so callers
// can Read and Subscribe through one registry. The second return is
// false for keys this session does not serve.
func (s *Context) Binding(key query.Key) (query.Fetcher, query.Options, bool) {
	switch key {
	case KeyProfile:
		return optFetcher(s.ledger.GetProfile),
			query.Options{StaleTime: s.cache.ProfileStaleTime, RefetchInterval: s.cache.ProfileRefetchInterval}, true
	case KeyBalance:
		return valueFetcher(s.ledger.GetBalance),
			query.Options{StaleTime: s.cache.BalanceStaleTime, RefetchInterval: s.cache.BalanceRefetchInterval}, true
	case KeyHeirs:
		return valueFetcher(s.ledger.GetHeirs),
			query.Options{StaleTime: s.cache.HeirsStaleTime, RefetchInterval: s.cache.HeirsRefetchInterval}, true
	case KeyTotalAllocation:
		return valueFetcher(s.ledger.GetTotalAllocation),
			query.Options{StaleTime: s.cache.AllocationStaleTime, RefetchInterval: s.cache.HeirsRefetchInterval}, true
	case KeyInactivityStatus:
		return optFetcher(s.ledger.GetInactivityStatus),
			query.Options{StaleTime: s.cache.CountdownStaleTime, RefetchInterval: s.cache.CountdownRefetchEvery}, true
	case KeyUserStatus:
		return optFetcher(s.ledger.GetUserStatus),
			query.Options{StaleTime: s.cache.BalanceStaleTime, RefetchInterval: s.cache.StatusRefetchInterval}, true
	case KeyBitcoinAddress:
		return optFetcher(s.ledger.GetBitcoinAddress),
			query.Options{StaleTime: s.cache.AddressStaleTime}, true
	}

	if arg, ok := query.ChildArg(keyHeirBalancePrefix, key); ok {
		return valueFetcher(func(ctx context.Context) (uint64, error) {
				return s.ledger.GetAddressBalance(ctx, arg)
			}),
			query.Options{StaleTime: s.cache.BalanceStaleTime, RefetchInterval: s.cache.BalanceRefetchInterval}, true
	}
	if arg, ok := query.ChildArg(keyAddressUtxosPrefix, key); ok {
		return valueFetcher(func(ctx context.Context) (models.UtxosPage, error) {
				return s.ledger.GetAddressUtxos(ctx, arg)
			}),
			query.Options{StaleTime: s.cache.BalanceStaleTime}, true
	}

	return nil, query.Options{}, false
}

// Read serves one key through the cache
func (s *Context) Read(ctx context.Context, key query.Key) (query.Result, error) {
	fetcher, opts, ok := s.Binding(key)
	if !ok {
		return query.Result{}, query.ErrUnknownKey
	}
	return s.queries.Read(ctx, key, fetcher, opts)
}

// Subscribe registers interest in a key, enabling its background poller
func (s *Context) Subscribe(key query.Key) (*query.Subscription, error) {
	fetcher, opts, ok := s.Binding(key)
	if !ok {
		return nil, query.ErrUnknownKey
	}
	return s.queries.Subscribe(key, fetcher, opts), nil
}

// Profile reads the cached profile; absent means the ledger has not
// seen this principal yet
func (s *Context) Profile(ctx context.Context) (models.Opt[models.UserProfile], error) {
	result, err := s.Read(ctx, KeyProfile)
	if err != nil {
		return models.NoneOf[models.UserProfile](), err
	}
	if err := dataErr(result); err != nil {
		return models.NoneOf[models.UserProfile](), err
	}
	if result.Absent {
		return models.NoneOf[models.UserProfile](), nil
	}
	profile, ok := query.DataAs[models.UserProfile](result)
	if !ok {
		return models.NoneOf[models.UserProfile](), nil
	}
	return models.SomeOf(profile), nil
}

// Balance reads the cached balance in satoshi
func (s *Context) Balance(ctx context.Context) (uint64, error) {
	result, err := s.Read(ctx, KeyBalance)
	if err != nil {
		return 0, err
	}
	if err := dataErr(result); err != nil {
		return 0, err
	}
	balance, _ := query.DataAs[uint64](result)
	return balance, nil
}

// Heirs reads the cached beneficiary list
func (s *Context) Heirs(ctx context.Context) ([]models.Heir, error) {
	result, err := s.Read(ctx, KeyHeirs)
	if err != nil {
		return nil, err
	}
	if err := dataErr(result); err != nil {
		return nil, err
	}
	heirs, ok := query.DataAs[[]models.Heir](result)
	if !ok {
		return []models.Heir{}, nil
	}
	return heirs, nil
}

// TotalAllocation reads the cached allocation sum in percent
func (s *Context) TotalAllocation(ctx context.Context) (int, error) {
	result, err := s.Read(ctx, KeyTotalAllocation)
	if err != nil {
		return 0, err
	}
	if err := dataErr(result); err != nil {
		return 0, err
	}
	total, _ := query.DataAs[int](result)
	return total, nil
}

// UserStatus reads the cached activity summary
func (s *Context) UserStatus(ctx context.Context) (models.Opt[models.UserStatus], error) {
	result, err := s.Read(ctx, KeyUserStatus)
	if err != nil {
		return models.NoneOf[models.UserStatus](), err
	}
	if err := dataErr(result); err != nil {
		return models.NoneOf[models.UserStatus](), err
	}
	status, ok := query.DataAs[models.UserStatus](result)
	if !ok || result.Absent {
		return models.NoneOf[models.UserStatus](), nil
	}
	return models.SomeOf(status), nil
}

// BitcoinAddress reads the cached custody address, absent until generated
func (s *Context) BitcoinAddress(ctx context.Context) (models.Opt[string], error) {
	result, err := s.Read(ctx, KeyBitcoinAddress)
	if err != nil {
		return models.NoneOf[string](), err
	}
	if err := dataErr(result); err != nil {
		return models.NoneOf[string](), err
	}
	address, ok := query.DataAs[string](result)
	if !ok || result.Absent {
		return models.NoneOf[string](), nil
	}
	return models.SomeOf(address), nil
}

// HeirBalance reads one heir address's balance through its own cache entry
func (s *Context) HeirBalance(ctx context.Context, address string) (uint64, error) {
	result, err := s.Read(ctx, HeirBalanceKey(address))
	if err != nil {
		return 0, err
	}
	if err := dataErr(result); err != nil {
		return 0, err
	}
	balance, _ := query.DataAs[uint64](result)
	return balance, nil
}

// AddressUtxos reads one address's unspent outputs
func (s *Context) AddressUtxos(ctx context.Context, address string) (models.UtxosPage, error) {
	result, err := s.Read(ctx, AddressUtxosKey(address))
	if err != nil {
		return models.UtxosPage{}, err
	}
	if err := dataErr(result); err != nil {
		return models.UtxosPage{}, err
	}
	page, _ := query.DataAs[models.UtxosPage](result)
	return page, nil
}

// Countdown builds a drift-compensated countdown from the cached
// inactivity snapshot. The second return is false when the ledger has
// not reported inactivity data for this principal.
func (s *Context) Countdown(ctx context.Context) (*services.Countdown, models.InactivityStatus, bool, error) {
	result, err := s.Read(ctx, KeyInactivityStatus)
	if err != nil {
		return nil, models.InactivityStatus{}, false, err
	}
	if err := dataErr(result); err != nil {
		return nil, models.InactivityStatus{}, false, err
	}
	status, ok := query.DataAs[models.InactivityStatus](result)
	if !ok || result.Absent {
		return nil, models.InactivityStatus{}, false, nil
	}
	return services.NewCountdown(status, result.FetchedAt), status, true, nil
}

// AddHeir validates locally against the cached allocation total, then
// submits and returns the new heir id
func (s *Context) AddHeir(ctx context.Context, req models.AddHeirRequest) (uint64, error) {
	total, err := s.TotalAllocation(ctx)
	if err != nil {
		return 0, err
	}
	if err := validation.ValidateHeir(req.BitcoinAddress, req.AllocationPercentage, total); err != nil {
		return 0, err
	}

	return RunRes(ctx, s.mutator, CommandAddHeir, func(ctx context.Context) (models.Res[uint64], error) {
		return s.ledger.AddHeir(ctx, req)
	})
}

// RemoveHeir deletes a beneficiary by id
func (s *Context) RemoveHeir(ctx context.Context, heirID uint64) error {
	_, err := RunRes(ctx, s.mutator, CommandRemoveHeir, func(ctx context.Context) (models.Res[struct{}], error) {
		return s.ledger.RemoveHeir(ctx, heirID)
	})
	return err
}

// SendBitcoin parses the BTC amount, runs the full transfer precondition
// check against cached status and balance, then submits. The accepted
// outcome is the ledger's transaction id.
func (s *Context) SendBitcoin(ctx context.Context, req models.SendBitcoinRequest) (string, error) {
	amountSats, err := validation.ParseBTC(req.Amount)
	if err != nil {
		return "", &validation.RejectionError{Message: err.Error()}
	}

	profile, err := s.Profile(ctx)
	if err != nil {
		return "", err
	}
	status := models.AccountStatusActive
	if profile.Present {
		status = profile.Value.AccountStatus
	}

	balance, err := s.Balance(ctx)
	if err != nil {
		return "", err
	}

	if err := validation.ValidateTransfer(status, req.RecipientAddress, amountSats, balance); err != nil {
		return "", err
	}

	return RunRes(ctx, s.mutator, CommandSendBitcoin, func(ctx context.Context) (models.Res[string], error) {
		return s.ledger.SendBitcoin(ctx, req.RecipientAddress, amountSats)
	})
}

// Heartbeat resets the activity clock and refreshes the affected keys
func (s *Context) Heartbeat(ctx context.Context) error {
	return s.mutator.Run(ctx, CommandHeartbeat, s.ledger.Heartbeat)
}

// SetInactivityPeriod validates the threshold bounds and submits
func (s *Context) SetInactivityPeriod(ctx context.Context, seconds int64) error {
	if err := validation.ValidateInactivityPeriod(seconds); err != nil {
		return &validation.RejectionError{Message: err.Error()}
	}
	_, err := RunRes(ctx, s.mutator, CommandSetInactivityPeriod, func(ctx context.Context) (models.Res[struct{}], error) {
		return s.ledger.SetInactivityPeriod(ctx, seconds)
	})
	return err
}

// GenerateAddress derives a custody address for the principal
func (s *Context) GenerateAddress(ctx context.Context) (string, error) {
	var address string
	err := s.mutator.Run(ctx, CommandGenerateAddress, func(ctx context.Context) error {
		var err error
		address, err = s.ledger.GenerateBitcoinAddress(ctx)
		return err
	})
	if err != nil {
		return "", err
	}
	return address, nil
}

// TriggerInheritanceCheck asks the ledger to evaluate inheritance now
func (s *Context) TriggerInheritanceCheck(ctx context.Context) error {
	return s.mutator.Run(ctx, CommandTriggerInheritanceCheck, s.ledger.TriggerInheritanceCheck)
}

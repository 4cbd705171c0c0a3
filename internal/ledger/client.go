package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sam-thetutor/herlock/internal/config"
	"github.com/sam-thetutor/herlock/internal/models"
	"github.com/sam-thetutor/herlock/pkg/metrics"
)

// ErrNotAuthenticated is returned when the ledger rejects the session's
// principal token
var ErrNotAuthenticated = errors.New("ledger: not authenticated")

// Client is an HTTP client for the RemoteLedgerService. All operations
// are network-bound and context-aware; transport failures are retried
// with linear backoff, application-level rejections come back inside
// Res envelopes and are never retried.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	config     *config.LedgerConfig
	metrics    *metrics.Collector
}

// NewClient creates an unauthenticated base client
func NewClient(cfg *config.LedgerConfig, collector *metrics.Collector) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   cfg.Endpoint,
		config:     cfg,
		metrics:    collector,
	}
}

// WithToken returns a session-scoped handle carrying the principal token
func (c *Client) WithToken(token string) *Client {
	scoped := *c
	scoped.token = token
	return &scoped
}

// statusError carries a non-2xx response from the ledger
type statusError struct {
	op     string
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ledger %s: status %d: %s", e.op, e.status, e.body)
}

// IsTimeout reports whether the error was a deadline expiry
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// call executes one ledger operation with retry. Only transport-level
// failures (network errors, 5xx) are retried; 4xx responses and
// context cancellation return immediately.
func (c *Client) call(ctx context.Context, op string, payload interface{}, out interface{}) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("ledger %s: encode request: %w", op, err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		start := time.Now()
		err := c.doOnce(attemptCtx, op, body, out)
		cancel()

		if c.metrics != nil {
			c.metrics.RecordLedgerCall(time.Since(start), err == nil)
		}

		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt < c.config.MaxRetries {
			select {
			case <-time.After(c.config.RetryDelay * time.Duration(attempt+1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("ledger %s failed after %d attempts: %w", op, c.config.MaxRetries+1, lastErr)
}

// doOnce performs a single HTTP round trip for one operation
func (c *Client) doOnce(ctx context.Context, op string, body []byte, out interface{}) error {
	url := c.endpoint + "/api/v1/" + op

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return fmt.Errorf("ledger %s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ledger %s: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ledger %s: read response: %w", op, err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrNotAuthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{op: op, status: resp.StatusCode, body: string(respBody)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("ledger %s: decode response: %w", op, err)
		}
	}
	return nil
}

// retryable reports whether an attempt error is worth retrying
func retryable(err error) bool {
	if errors.Is(err, ErrNotAuthenticated) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= 500
	}
	// network errors and timeouts
	return true
}

// callOpt executes an operation whose result the ledger encodes as
// "value or absent". The wire carries either the bare value, a
// zero-or-one element array, or null; all three normalize into an
// explicit Opt before entering the cache.
func callOpt[T any](ctx context.Context, c *Client, op string, payload interface{}) (models.Opt[T], error) {
	var raw json.RawMessage
	if err := c.call(ctx, op, payload, &raw); err != nil {
		return models.NoneOf[T](), err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return models.NoneOf[T](), nil
	}

	if trimmed[0] == '[' {
		var list []T
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return models.NoneOf[T](), fmt.Errorf("ledger %s: decode optional: %w", op, err)
		}
		if len(list) == 0 {
			return models.NoneOf[T](), nil
		}
		return models.SomeOf(list[0]), nil
	}

	var value T
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return models.NoneOf[T](), fmt.Errorf("ledger %s: decode optional: %w", op, err)
	}
	return models.SomeOf(value), nil
}

// Login establishes the principal with the ledger, creating the account
// on first contact. The identity assertion is opaque to the gateway.
func (c *Client) Login(ctx context.Context, assertion string) (models.UserProfile, error) {
	var profile models.UserProfile
	payload := map[string]string{"identity_assertion": assertion}
	if err := c.call(ctx, "login", payload, &profile); err != nil {
		return models.UserProfile{}, err
	}
	return profile, nil
}

// GetProfile returns the caller's profile, or absent for a new principal
func (c *Client) GetProfile(ctx context.Context) (models.Opt[models.UserProfile], error) {
	return callOpt[models.UserProfile](ctx, c, "get_profile", nil)
}

// GetUserStatus returns the combined activity/balance summary
func (c *Client) GetUserStatus(ctx context.Context) (models.Opt[models.UserStatus], error) {
	return callOpt[models.UserStatus](ctx, c, "get_user_status", nil)
}

// GenerateBitcoinAddress derives a fresh address for the caller
func (c *Client) GenerateBitcoinAddress(ctx context.Context) (string, error) {
	var address string
	if err := c.call(ctx, "generate_bitcoin_address", nil, &address); err != nil {
		return "", err
	}
	return address, nil
}

// GetBitcoinAddress returns the caller's address, absent until generated
func (c *Client) GetBitcoinAddress(ctx context.Context) (models.Opt[string], error) {
	return callOpt[string](ctx, c, "get_bitcoin_address", nil)
}

// GetBalance returns the caller's balance in satoshi
func (c *Client) GetBalance(ctx context.Context) (uint64, error) {
	var balance uint64
	if err := c.call(ctx, "get_balance", nil, &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// GetAddressBalance returns the balance of any address in satoshi
func (c *Client) GetAddressBalance(ctx context.Context, address string) (uint64, error) {
	var balance uint64
	payload := map[string]string{"address": address}
	if err := c.call(ctx, "get_address_balance", payload, &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// GetAddressUtxos returns one page of unspent outputs for an address
func (c *Client) GetAddressUtxos(ctx context.Context, address string) (models.UtxosPage, error) {
	var page models.UtxosPage
	payload := map[string]string{"address": address}
	if err := c.call(ctx, "get_address_utxos", payload, &page); err != nil {
		return models.UtxosPage{}, err
	}
	return page, nil
}

// AddHeir registers a beneficiary; the ledger enforces the allocation
// invariant authoritatively and answers with the new heir id
func (c *Client) AddHeir(ctx context.Context, req models.AddHeirRequest) (models.Res[uint64], error) {
	var res models.Res[uint64]
	if err := c.call(ctx, "add_heir", req, &res); err != nil {
		return models.Res[uint64]{}, err
	}
	return res, nil
}

// RemoveHeir deletes a beneficiary by id
func (c *Client) RemoveHeir(ctx context.Context, heirID uint64) (models.Res[struct{}], error) {
	var res models.Res[struct{}]
	payload := map[string]uint64{"heir_id": heirID}
	if err := c.call(ctx, "remove_heir", payload, &res); err != nil {
		return models.Res[struct{}]{}, err
	}
	return res, nil
}

// GetHeirs lists the caller's beneficiaries
func (c *Client) GetHeirs(ctx context.Context) ([]models.Heir, error) {
	var heirs []models.Heir
	if err := c.call(ctx, "get_heirs", nil, &heirs); err != nil {
		return nil, err
	}
	if heirs == nil {
		heirs = []models.Heir{}
	}
	return heirs, nil
}

// GetTotalAllocation returns the caller's allocated percentage sum
func (c *Client) GetTotalAllocation(ctx context.Context) (int, error) {
	var total int
	if err := c.call(ctx, "get_total_allocation", nil, &total); err != nil {
		return 0, err
	}
	return total, nil
}

// SetInactivityPeriod updates the inactivity threshold in seconds.
// The ledger accepts 30..31,536,000.
func (c *Client) SetInactivityPeriod(ctx context.Context, seconds int64) (models.Res[struct{}], error) {
	var res models.Res[struct{}]
	payload := map[string]int64{"seconds": seconds}
	if err := c.call(ctx, "set_inactivity_period", payload, &res); err != nil {
		return models.Res[struct{}]{}, err
	}
	return res, nil
}

// GetInactivityStatus returns the inactivity timer answer, absent until
// the ledger has seen the principal
func (c *Client) GetInactivityStatus(ctx context.Context) (models.Opt[models.InactivityStatus], error) {
	return callOpt[models.InactivityStatus](ctx, c, "get_inactivity_status", nil)
}

// Heartbeat resets the caller's activity clock
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.call(ctx, "heartbeat", nil, nil)
}

// TriggerInheritanceCheck asks the ledger to evaluate inheritance
// conditions now. Unlike Heartbeat it does not reset activity.
func (c *Client) TriggerInheritanceCheck(ctx context.Context) error {
	return c.call(ctx, "trigger_inheritance_check", nil, nil)
}

// SendBitcoin submits a transfer; the accepted outcome is a transaction id
func (c *Client) SendBitcoin(ctx context.Context, recipient string, amount uint64) (models.Res[string], error) {
	var res models.Res[string]
	payload := map[string]interface{}{
		"recipient_address": recipient,
		"amount":            amount,
	}
	if err := c.call(ctx, "send_bitcoin", payload, &res); err != nil {
		return models.Res[string]{}, err
	}
	return res, nil
}

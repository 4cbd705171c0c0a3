package models

// Satoshi is the base currency unit; 1 BTC = 100,000,000 satoshi. All
// monetary fields exchanged with the ledger are unsigned 64-bit satoshi.
// Timestamps are milliseconds since epoch.

// AccountStatus is the ledger-side lifecycle state of an account
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusInactive  AccountStatus = "inactive"
	AccountStatusInherited AccountStatus = "inherited"
	AccountStatusFrozen    AccountStatus = "frozen"
)

// Blocked reports whether the account can no longer submit transfers
func (s AccountStatus) Blocked() bool {
	return s == AccountStatusInherited || s == AccountStatusFrozen
}

// UserProfile is the ledger's authoritative record for one principal.
// The gateway only ever holds a transient, possibly-stale projection.
type UserProfile struct {
	Principal               string        `json:"principal"`
	BitcoinAddress          *string       `json:"bitcoin_address,omitempty"`
	InactivityPeriodSeconds int64         `json:"inactivity_period_seconds"`
	CreatedAt               int64         `json:"created_at"`
	LastLogin               int64         `json:"last_login"`
	LastActivity            int64         `json:"last_activity"`
	LastBitcoinActivity     *int64        `json:"last_bitcoin_activity,omitempty"`
	AccountStatus           AccountStatus `json:"account_status"`
}

// InactivityStatus is the ledger's point-in-time answer about the
// inactivity timer. SecondsUntilInheritance is present only while the
// account is active and not yet eligible for the inheritance trigger.
type InactivityStatus struct {
	IsActive                bool   `json:"is_active"`
	SecondsSinceActivity    int64  `json:"seconds_since_activity"`
	SecondsUntilInheritance *int64 `json:"seconds_until_inheritance,omitempty"`
	CanTriggerInheritance   bool   `json:"can_trigger_inheritance"`
}

// Heir is one beneficiary allocation. The per-owner sum of allocation
// percentages never exceeds 100.
type Heir struct {
	ID                   uint64 `json:"id"`
	BitcoinAddress       string `json:"bitcoin_address"`
	AddedAt              int64  `json:"added_at"`
	AllocationPercentage int    `json:"allocation_percentage"`
}

// UserStatus is the ledger's combined activity/balance summary
type UserStatus struct {
	Profile              UserProfile `json:"profile"`
	DaysSinceActivity    int64       `json:"days_since_activity"`
	IsInactive           bool        `json:"is_inactive"`
	DaysUntilInheritance *int64      `json:"days_until_inheritance,omitempty"`
	BitcoinBalance       *uint64     `json:"bitcoin_balance,omitempty"`
}

// OutPoint identifies one transaction output
type OutPoint struct {
	Txid string `json:"txid"`
	Vout uint32 `json:"vout"`
}

// Utxo is one unspent transaction output tracked by the ledger
type Utxo struct {
	Outpoint OutPoint `json:"outpoint"`
	Value    uint64   `json:"value"`
	Height   uint32   `json:"height"`
}

// UtxosPage is one page of UTXOs for an address
type UtxosPage struct {
	TipHeight    uint32  `json:"tip_height"`
	TipBlockHash string  `json:"tip_block_hash"`
	Utxos        []Utxo  `json:"utxos"`
	NextPage     *string `json:"next_page,omitempty"`
}

// AddHeirRequest is the payload for adding a beneficiary
type AddHeirRequest struct {
	BitcoinAddress       string `json:"bitcoin_address"`
	AllocationPercentage int    `json:"allocation_percentage"`
}

// SendBitcoinRequest is the dashboard payload for a transfer. Amount is
// the user-entered BTC decimal string; it is parsed to satoshi without
// loss of the 8-decimal fractional precision before validation.
type SendBitcoinRequest struct {
	RecipientAddress string `json:"recipient_address"`
	Amount           string `json:"amount"`
}

// SetInactivityPeriodRequest carries the new inactivity threshold
type SetInactivityPeriodRequest struct {
	Seconds int64 `json:"seconds"`
}

// LoginRequest carries the opaque assertion produced by the external
// identity provider. The gateway never inspects it beyond forwarding.
type LoginRequest struct {
	IdentityAssertion string `json:"identity_assertion"`
}

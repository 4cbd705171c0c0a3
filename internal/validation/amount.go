package validation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// SatoshiPerBTC is the fixed conversion factor
	SatoshiPerBTC = 100_000_000

	// EstimatedFeeSatoshi is the flat fee estimate applied to every
	// outbound transfer before the ledger quotes the real fee
	EstimatedFeeSatoshi uint64 = 10_000

	// MinInactivitySeconds and MaxInactivitySeconds bound the
	// configurable inactivity threshold (30 seconds to 365 days)
	MinInactivitySeconds int64 = 30
	MaxInactivitySeconds int64 = 31_536_000
)

var (
	ErrAmountNotPositive = errors.New("amount must be greater than zero")
	ErrAmountPrecision   = errors.New("amount has more than 8 decimal places")
	ErrAmountOverflow    = errors.New("amount exceeds representable range")
	ErrAmountMalformed   = errors.New("amount is not a valid number")
)

var satoshiFactor = decimal.NewFromInt(SatoshiPerBTC)

// ParseBTC converts a decimal BTC string into satoshi. All downstream
// arithmetic is integer-only; this is the single point where fractional
// input exists. Amounts with sub-satoshi precision are rejected rather
// than rounded.
func ParseBTC(amount string) (uint64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, ErrAmountMalformed
	}
	if d.Sign() <= 0 {
		return 0, ErrAmountNotPositive
	}

	sats := d.Mul(satoshiFactor)
	if !sats.IsInteger() {
		return 0, ErrAmountPrecision
	}
	big := sats.BigInt()
	if !big.IsUint64() {
		return 0, ErrAmountOverflow
	}
	return big.Uint64(), nil
}

// MaxSendable returns the largest amount a balance can cover after the
// fee estimate, clamped at zero
func MaxSendable(balance uint64) uint64 {
	if balance <= EstimatedFeeSatoshi {
		return 0
	}
	return balance - EstimatedFeeSatoshi
}

// ValidateInactivityPeriod checks the configurable threshold bounds
func ValidateInactivityPeriod(seconds int64) error {
	if seconds < MinInactivitySeconds || seconds > MaxInactivitySeconds {
		return fmt.Errorf("inactivity period must be between %d and %d seconds", MinInactivitySeconds, MaxInactivitySeconds)
	}
	return nil
}

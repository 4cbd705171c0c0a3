package validation

import (
	"fmt"

	"github.com/sam-thetutor/herlock/internal/models"
)

// RejectionError is a user-facing validation rejection. It is distinct
// from transport and internal failures: the message is safe to render
// verbatim in the dashboard.
type RejectionError struct {
	Message string
}

func (e *RejectionError) Error() string {
	return e.Message
}

func reject(format string, args ...interface{}) error {
	return &RejectionError{Message: fmt.Sprintf(format, args...)}
}

// ValidateTransfer performs the full precondition check for an outbound
// transfer: account status, recipient shape, amount sign, and fee-adjusted
// balance sufficiency. Status is checked first so a blocked account gets
// the status message regardless of what else is wrong with the request.
// The ledger remains authoritative; passing here only admits the command.
func ValidateTransfer(status models.AccountStatus, recipient string, amountSats, balanceSats uint64) error {
	switch status {
	case models.AccountStatusInherited:
		return reject("Account has been inherited. Cannot send Bitcoin.")
	case models.AccountStatusFrozen:
		return reject("Account is frozen. Cannot send Bitcoin.")
	}

	if !IsValidAddress(recipient) {
		return reject("Invalid Bitcoin address format")
	}
	if amountSats == 0 {
		return reject("Amount must be greater than zero")
	}

	required := amountSats + EstimatedFeeSatoshi
	if required < amountSats {
		return reject("Amount exceeds representable range")
	}
	if required > balanceSats {
		return reject("Insufficient balance. Required: %d, Available: %d", required, balanceSats)
	}
	return nil
}

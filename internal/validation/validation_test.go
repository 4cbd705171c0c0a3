package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sam-thetutor/herlock/internal/models"
)

func TestClassifyAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		class   AddressClass
	}{
		{"Legacy", "1BoatSLRHtKNngkdXEeobR76b53LETtpyT", AddressClassLegacy},
		{"ScriptHash", "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy", AddressClassScriptHash},
		{"Segwit", "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", AddressClassSegwit},
		{"TestnetLegacy", "mipcBbFg9gMiCh81Kj8tqqdgoZub1ZJRfn", AddressClassLegacy},
		{"TestnetScriptHash", "2MzQwSSnBHWHqSAqtTVQ6v47XtaisrJa1Vc", AddressClassScriptHash},
		{"TestnetSegwit", "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx", AddressClassSegwit},
		{"Empty", "", AddressClassInvalid},
		{"WrongPrefix", "4BoatSLRHtKNngkdXEeobR76b53LETtpyT", AddressClassInvalid},
		{"TooShort", "1BoatSLR", AddressClassInvalid},
		{"ForbiddenChars", "1BoatSLRHtKNngkdXOeobR76b53lIO0py0", AddressClassInvalid},
		{"UppercaseBech32", "BC1QAR0SRRR7XFKVY5L643LYDNW9RE59GTZZWF5MDQ", AddressClassInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.class, ClassifyAddress(tt.address))
		})
	}
}

func TestParseBTC(t *testing.T) {
	t.Run("WholeAndFractional", func(t *testing.T) {
		sats, err := ParseBTC("1")
		require.NoError(t, err)
		assert.Equal(t, uint64(100_000_000), sats)

		sats, err = ParseBTC("0.00000001")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), sats)

		sats, err = ParseBTC("0.5")
		require.NoError(t, err)
		assert.Equal(t, uint64(50_000_000), sats)

		sats, err = ParseBTC("21.12345678")
		require.NoError(t, err)
		assert.Equal(t, uint64(2_112_345_678), sats)
	})

	t.Run("RejectsSubSatoshiPrecision", func(t *testing.T) {
		_, err := ParseBTC("0.000000001")
		assert.ErrorIs(t, err, ErrAmountPrecision)
	})

	t.Run("RejectsNonPositive", func(t *testing.T) {
		_, err := ParseBTC("0")
		assert.ErrorIs(t, err, ErrAmountNotPositive)

		_, err = ParseBTC("-0.5")
		assert.ErrorIs(t, err, ErrAmountNotPositive)
	})

	t.Run("RejectsMalformed", func(t *testing.T) {
		for _, input := range []string{"", "abc", "1.2.3", "1e", "--1"} {
			_, err := ParseBTC(input)
			assert.ErrorIs(t, err, ErrAmountMalformed, "input %q", input)
		}
	})

	t.Run("RejectsOverflow", func(t *testing.T) {
		_, err := ParseBTC("200000000000")
		assert.ErrorIs(t, err, ErrAmountOverflow)
	})
}

func TestMaxSendable(t *testing.T) {
	assert.Equal(t, uint64(90_000), MaxSendable(100_000))
	assert.Equal(t, uint64(0), MaxSendable(10_000))
	assert.Equal(t, uint64(0), MaxSendable(5_000))
	assert.Equal(t, uint64(0), MaxSendable(0))
	assert.Equal(t, uint64(1), MaxSendable(10_001))
}

func TestValidateTransfer(t *testing.T) {
	const recipient = "1BoatSLRHtKNngkdXEeobR76b53LETtpyT"

	t.Run("FeeAdjustedSufficiency", func(t *testing.T) {
		// balance 100,000 at a 10,000 fee: 95,000 is too much, 50,000 passes
		err := ValidateTransfer(models.AccountStatusActive, recipient, 95_000, 100_000)
		require.Error(t, err)
		assert.Equal(t, "Insufficient balance. Required: 105000, Available: 100000", err.Error())

		assert.NoError(t, ValidateTransfer(models.AccountStatusActive, recipient, 50_000, 100_000))
		assert.NoError(t, ValidateTransfer(models.AccountStatusActive, recipient, 90_000, 100_000))
		assert.Error(t, ValidateTransfer(models.AccountStatusActive, recipient, 90_001, 100_000))
	})

	t.Run("BlockedStatusWinsOverOtherFaults", func(t *testing.T) {
		// even with a bad address and impossible amount, the status message is returned
		err := ValidateTransfer(models.AccountStatusInherited, "not-an-address", 0, 0)
		require.Error(t, err)
		assert.Equal(t, "Account has been inherited. Cannot send Bitcoin.", err.Error())

		err = ValidateTransfer(models.AccountStatusFrozen, recipient, 1_000, 100_000)
		require.Error(t, err)
		assert.Equal(t, "Account is frozen. Cannot send Bitcoin.", err.Error())
	})

	t.Run("InactiveMayStillSend", func(t *testing.T) {
		assert.NoError(t, ValidateTransfer(models.AccountStatusInactive, recipient, 1_000, 100_000))
	})

	t.Run("RejectsBadRecipientAndZeroAmount", func(t *testing.T) {
		assert.Error(t, ValidateTransfer(models.AccountStatusActive, "nonsense", 1_000, 100_000))
		assert.Error(t, ValidateTransfer(models.AccountStatusActive, recipient, 0, 100_000))
	})

	t.Run("RejectionIsTyped", func(t *testing.T) {
		err := ValidateTransfer(models.AccountStatusActive, recipient, 95_000, 100_000)
		var rej *RejectionError
		assert.ErrorAs(t, err, &rej)
	})
}

func TestValidateHeir(t *testing.T) {
	const address = "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"

	t.Run("AllocationBounds", func(t *testing.T) {
		assert.NoError(t, ValidateHeir(address, 1, 0))
		assert.NoError(t, ValidateHeir(address, 100, 0))
		assert.Error(t, ValidateHeir(address, 0, 0))
		assert.Error(t, ValidateHeir(address, 101, 0))
	})

	t.Run("AggregateCap", func(t *testing.T) {
		assert.NoError(t, ValidateHeir(address, 40, 60))

		err := ValidateHeir(address, 41, 60)
		require.Error(t, err)
		assert.Equal(t, "Total allocation would be 101%. Maximum is 100%.", err.Error())
	})

	t.Run("RejectsBadAddress", func(t *testing.T) {
		assert.Error(t, ValidateHeir("oops", 10, 0))
	})
}

func TestValidateInactivityPeriod(t *testing.T) {
	assert.NoError(t, ValidateInactivityPeriod(30))
	assert.NoError(t, ValidateInactivityPeriod(31_536_000))
	assert.Error(t, ValidateInactivityPeriod(29))
	assert.Error(t, ValidateInactivityPeriod(31_536_001))
	assert.Error(t, ValidateInactivityPeriod(-1))
}

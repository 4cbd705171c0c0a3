// Package format renders ledger quantities for the dashboard. All
// conversions are integer-only; satoshi values never pass through
// floating point.
package format

import "fmt"

const satoshiPerBTC = 100_000_000

// BTC renders a satoshi amount as a BTC decimal string with exactly
// eight fractional digits
func BTC(sats uint64) string {
	whole := sats / satoshiPerBTC
	frac := sats % satoshiPerBTC
	return fmt.Sprintf("%d.%08d", whole, frac)
}

// TimeRemaining renders a second count as a compact countdown label,
// using the two most significant units
func TimeRemaining(seconds int64) string {
	if seconds <= 0 {
		return "0s"
	}

	days := seconds / 86_400
	hours := (seconds % 86_400) / 3_600
	minutes := (seconds % 3_600) / 60
	secs := seconds % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

// TruncateAddress shortens a bitcoin address or principal for display,
// keeping the identifying prefix and suffix
func TruncateAddress(address string) string {
	if len(address) <= 16 {
		return address
	}
	return address[:8] + "..." + address[len(address)-8:]
}

// SecondsToDays converts an inactivity threshold to whole days,
// rounding down
func SecondsToDays(seconds int64) int64 {
	if seconds < 0 {
		return 0
	}
	return seconds / 86_400
}

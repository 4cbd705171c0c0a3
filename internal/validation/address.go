package validation

import "regexp"

// AddressClass is the syntactic family of a bitcoin address
type AddressClass string

const (
	AddressClassLegacy     AddressClass = "legacy"
	AddressClassScriptHash AddressClass = "script-hash"
	AddressClassSegwit     AddressClass = "segwit"
	AddressClassInvalid    AddressClass = "invalid"
)

var (
	legacyPattern     = regexp.MustCompile(`^1[a-km-zA-HJ-NP-Z1-9]{25,34}$`)
	scriptHashPattern = regexp.MustCompile(`^3[a-km-zA-HJ-NP-Z1-9]{25,34}$`)
	testnetPattern    = regexp.MustCompile(`^[mn2][a-km-zA-HJ-NP-Z1-9]{25,34}$`)
	segwitPattern     = regexp.MustCompile(`^bc1[a-z0-9]{39,59}$`)
	testnetBechSuffix = regexp.MustCompile(`^tb1[a-z0-9]{39,59}$`)
)

// ClassifyAddress determines the syntactic class of a bitcoin address.
// Classification is shape-only; no checksum verification is performed.
// Testnet forms are recognized as valid shapes and classified by their
// mainnet analog.
func ClassifyAddress(address string) AddressClass {
	switch {
	case legacyPattern.MatchString(address):
		return AddressClassLegacy
	case scriptHashPattern.MatchString(address):
		return AddressClassScriptHash
	case segwitPattern.MatchString(address), testnetBechSuffix.MatchString(address):
		return AddressClassSegwit
	case testnetPattern.MatchString(address):
		if address[0] == '2' {
			return AddressClassScriptHash
		}
		return AddressClassLegacy
	default:
		return AddressClassInvalid
	}
}

// IsValidAddress reports whether the address matches any accepted shape
func IsValidAddress(address string) bool {
	return ClassifyAddress(address) != AddressClassInvalid
}

package validation

// ValidateHeir checks a beneficiary registration: address shape,
// per-heir percentage bounds, and the aggregate allocation cap.
// currentTotal is the sum of existing allocations in percent.
func ValidateHeir(address string, allocation, currentTotal int) error {
	if !IsValidAddress(address) {
		return reject("Invalid Bitcoin address format")
	}
	if allocation < 1 || allocation > 100 {
		return reject("Allocation must be between 1 and 100 percent")
	}

	wouldBe := currentTotal + allocation
	if wouldBe > 100 {
		return reject("Total allocation would be %d%%. Maximum is 100%%.", wouldBe)
	}
	return nil
}

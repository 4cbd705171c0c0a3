package session

import "github.com/sam-thetutor/herlock/pkg/query"

// Cache keys for the per-session query client. Parameterized keys are
// derived with query.ChildKey so an address's entry is independent of
// its siblings.
const (
	KeyProfile          query.Key = "profile"
	KeyBalance          query.Key = "balance"
	KeyHeirs            query.Key = "heirs"
	KeyTotalAllocation  query.Key = "total-allocation"
	KeyInactivityStatus query.Key = "inactivity-status"
	KeyUserStatus       query.Key = "user-status"
	KeyBitcoinAddress   query.Key = "bitcoin-address"

	keyHeirBalancePrefix  query.Key = "heir-balance"
	keyAddressUtxosPrefix query.Key = "address-utxos"
)

// HeirBalanceKey is the cache key for one heir address's balance
func HeirBalanceKey(address string) query.Key {
	return query.ChildKey(keyHeirBalancePrefix, address)
}

// AddressUtxosKey is the cache key for one address's unspent outputs
func AddressUtxosKey(address string) query.Key {
	return query.ChildKey(keyAddressUtxosPrefix, address)
}

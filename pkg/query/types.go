package query

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrUnknownKey is returned by registries that serve a fixed key set
var ErrUnknownKey = errors.New("unknown cache key")

// Key names one logical remote value ("profile", "balance",
// "heir-balance:<address>"). Equality is structural.
type Key string

// ChildKey builds a parameterized key such as "heir-balance:<address>"
func ChildKey(prefix Key, arg string) Key {
	return Key(string(prefix) + ":" + arg)
}

// ChildArg recovers the argument of a parameterized key. The second
// return is false when key was not built from prefix.
func ChildArg(prefix Key, key Key) (string, bool) {
	arg, found := strings.CutPrefix(string(key), string(prefix)+":")
	if !found || arg == "" {
		return "", false
	}
	return arg, true
}

// Value is the normalized outcome of a fetch. A remote read that
// semantically represents "absent" (no address generated yet, no profile
// yet) is carried as Absent=true, which is distinct both from "not yet
// fetched" and from a fetch error.
type Value struct {
	Data   interface{}
	Absent bool
}

// Some wraps a present fetch result
func Some(data interface{}) Value {
	return Value{Data: data}
}

// None marks a fetch result the server reported as absent
func None() Value {
	return Value{Absent: true}
}

// Fetcher loads one remote value. It must be safe to call repeatedly;
// the client guarantees at most one invocation in flight per key.
type Fetcher func(ctx context.Context) (Value, error)

// Options control staleness and polling for a key
type Options struct {
	// StaleTime is how long a fetched value is served without refetching.
	// Zero means every read refetches.
	StaleTime time.Duration

	// RefetchInterval re-triggers the fetch on a timer while at least one
	// subscriber is attached. Zero disables polling.
	RefetchInterval time.Duration
}

// Result is a point-in-time snapshot of a cache entry
type Result struct {
	// Data is the last successfully fetched value, nil until the first
	// success or when the server reported the value absent
	Data interface{}

	// Absent reports that the most recent successful fetch returned no
	// value (as opposed to no fetch having completed yet)
	Absent bool

	// Fetched reports that at least one fetch has completed successfully
	Fetched bool

	// Loading reports a fetch in flight with no previous data to show
	Loading bool

	// Err is the error from the most recent fetch, nil after any success
	Err error

	// FetchedAt is the completion time of the most recent successful fetch
	FetchedAt time.Time
}

// DataAs extracts a typed value from a result snapshot
func DataAs[T any](r Result) (T, bool) {
	var zero T
	if !r.Fetched || r.Absent || r.Data == nil {
		return zero, false
	}
	v, ok := r.Data.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

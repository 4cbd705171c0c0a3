package models

import "encoding/json"

// Opt normalizes the ledger's "array-or-absent" optional encodings into
// an explicit Present/Absent value before anything enters the cache, so
// "no data yet" never blurs into "server says none".
type Opt[T any] struct {
	Value   T
	Present bool
}

// SomeOf wraps a present value
func SomeOf[T any](v T) Opt[T] {
	return Opt[T]{Value: v, Present: true}
}

// NoneOf is the explicit absent marker
func NoneOf[T any]() Opt[T] {
	return Opt[T]{}
}

// Get returns the value and whether it is present
func (o Opt[T]) Get() (T, bool) {
	return o.Value, o.Present
}

// Res is the ledger's application-level outcome envelope: a structurally
// successful call that the service accepted ({ok}) or refused ({err}).
// Transport failures never appear here; they surface as Go errors.
type Res[T any] struct {
	OK    T
	HasOK bool
	Err   string
}

// OkRes wraps an accepted outcome
func OkRes[T any](v T) Res[T] {
	return Res[T]{OK: v, HasOK: true}
}

// ErrRes wraps an application-level rejection message
func ErrRes[T any](msg string) Res[T] {
	return Res[T]{Err: msg}
}

// IsErr reports an application-level rejection
func (r Res[T]) IsErr() bool {
	return !r.HasOK
}

// UnmarshalJSON decodes the wire form {"ok": ...} | {"err": "..."}
func (r *Res[T]) UnmarshalJSON(b []byte) error {
	var raw struct {
		OK  *json.RawMessage `json:"ok"`
		Err *string          `json:"err"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Err != nil {
		r.Err = *raw.Err
		r.HasOK = false
		return nil
	}
	r.HasOK = true
	if raw.OK != nil && string(*raw.OK) != "null" {
		return json.Unmarshal(*raw.OK, &r.OK)
	}
	return nil
}

// MarshalJSON re-encodes the envelope verbatim for the dashboard
func (r Res[T]) MarshalJSON() ([]byte, error) {
	if r.IsErr() {
		return json.Marshal(map[string]string{"err": r.Err})
	}
	return json.Marshal(map[string]interface{}{"ok": r.OK})
}

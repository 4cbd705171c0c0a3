package models

import "time"

// Session is one authenticated dashboard session. Sessions are created
// at login from the identity provider's opaque assertion and torn down
// at logout; records live in the sessions collection.
type Session struct {
	ID          string    `bson:"_id" json:"id"`
	Principal   string    `bson:"principal" json:"principal"`
	LedgerToken string    `bson:"ledger_token" json:"-"`
	Active      bool      `bson:"active" json:"active"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	LastSeen    time.Time `bson:"last_seen" json:"last_seen"`
}

package model

import "time"

// Profile holds the economy-relevant slice of a user: level and spendable EXP.
// Identity itself lives with the upstream gateway; user IDs arrive trusted.
type Profile struct {
	UserID     int64     `json:"user_id"`
	Level      int       `json:"level"`
	CurrentExp int       `json:"current_exp"`
	CreatedAt  time.Time `json:"created_at"`
}

// LedgerReason classifies an EXP ledger delta.
type LedgerReason string

const (
	ReasonRedemption  LedgerReason = "redemption"
	ReasonRefund      LedgerReason = "refund"
	ReasonGrant       LedgerReason = "grant"
	ReasonAdminAdjust LedgerReason = "admin_adjust"
)

// LedgerEntry is one append-only EXP delta. CurrentExp on the profile always
// equals the running sum of a user's entries; corrections are new entries,
// never edits.
type LedgerEntry struct {
	ID        int64        `json:"id"`
	UserID    int64        `json:"user_id"`
	Delta     int          `json:"delta"`
	Reason    LedgerReason `json:"reason"`
	CreatedAt time.Time    `json:"created_at"`
}

// Entitlement records a user's ownership of a digital item.
type Entitlement struct {
	UserID    int64     `json:"user_id"`
	ItemID    string    `json:"item_id"`
	GrantedAt time.Time `json:"granted_at"`
}

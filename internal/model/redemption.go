package model

import "time"

// Status is a redemption's position in the fulfillment lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusReceived   Status = "received"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusProcessing, StatusShipped,
		StatusDelivered, StatusReceived, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	switch s {
	case StatusReceived, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Redemption is the audit record of one exchange of EXP for a reward.
//
// RewardName, RewardType, RewardImageURL and ExpCost are snapshots taken at
// redemption time; later catalog edits never rewrite history. Rows are never
// deleted, only stamped into a new status.
type Redemption struct {
	ID              string     `json:"id"`
	UserID          int64      `json:"user_id"`
	RewardID        int64      `json:"reward_id"`
	ItemID          string     `json:"item_id"`
	RewardType      RewardType `json:"reward_type"`
	RewardName      string     `json:"reward_name"`
	RewardImageURL  string     `json:"reward_image_url,omitempty"`
	ExpCost         int        `json:"exp_cost"`
	Status          Status     `json:"status"`
	ShippingAddress string     `json:"shipping_address,omitempty"`
	TrackingNumber  string     `json:"tracking_number,omitempty"`
	ActivatedAt     *time.Time `json:"activated_at,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	CancelReason    string     `json:"cancel_reason,omitempty"`
	AdminNotes      string     `json:"admin_notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// BoostActive reports whether a boost redemption is active at the given time.
// Boost expiry is a lazy read; nothing flips a flag when the window ends.
func (r *Redemption) BoostActive(at time.Time) bool {
	if r.RewardType != RewardBoost || r.Status != StatusDelivered {
		return false
	}
	if r.ActivatedAt == nil || r.ExpiresAt == nil {
		return false
	}
	return !at.Before(*r.ActivatedAt) && at.Before(*r.ExpiresAt)
}

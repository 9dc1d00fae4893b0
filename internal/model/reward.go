package model

import "time"

// RewardType tags a catalog entry with its fulfillment shape.
type RewardType string

const (
	RewardAvatar     RewardType = "avatar"
	RewardAccessory  RewardType = "accessory"
	RewardTitleBadge RewardType = "title_badge"
	RewardBadge      RewardType = "badge"
	RewardBoost      RewardType = "boost"
	RewardPhysical   RewardType = "physical"
)

// DigitalRewardTypes lists every type fulfilled by a data-only entitlement grant.
var DigitalRewardTypes = []RewardType{
	RewardAvatar, RewardAccessory, RewardTitleBadge, RewardBadge, RewardBoost,
}

// Valid reports whether t is a known reward type.
func (t RewardType) Valid() bool {
	switch t {
	case RewardAvatar, RewardAccessory, RewardTitleBadge, RewardBadge, RewardBoost, RewardPhysical:
		return true
	}
	return false
}

// Digital reports whether the type is fulfilled synchronously by an
// entitlement grant rather than a shipping workflow.
func (t RewardType) Digital() bool {
	return t.Valid() && t != RewardPhysical
}

// Reward is a catalog entry that can be exchanged for EXP.
//
// Stock is nil for unlimited inventory. ItemID is the stable entitlement key
// granted to the user on digital redemption; it is distinct from the catalog
// row ID so catalog edits never orphan granted items.
type Reward struct {
	ID                   int64      `json:"id"`
	ItemID               string     `json:"item_id"`
	Type                 RewardType `json:"type"`
	Name                 string     `json:"name"`
	Description          string     `json:"description"`
	ImageURL             string     `json:"image_url"`
	PriceExp             int        `json:"price_exp"`
	Stock                *int       `json:"stock"`
	RequiredLevel        *int       `json:"required_level,omitempty"`
	LimitPerUser         *int       `json:"limit_per_user,omitempty"`
	BoostDurationMinutes *int       `json:"boost_duration_minutes,omitempty"`
	BoostMultiplier      *float64   `json:"boost_multiplier,omitempty"`
	Active               bool       `json:"active"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// RequiresShipping reports whether fulfillment needs a shipping address and
// the manual status progression.
func (r *Reward) RequiresShipping() bool {
	return r.Type == RewardPhysical
}

// BoostDuration returns the boost's active window. Zero for non-boost rewards.
func (r *Reward) BoostDuration() time.Duration {
	if r.Type != RewardBoost || r.BoostDurationMinutes == nil {
		return 0
	}
	return time.Duration(*r.BoostDurationMinutes) * time.Minute
}

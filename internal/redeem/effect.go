package redeem

import (
	"time"

	"github.com/calluna/rewardbox/internal/model"
)

// Effect is the fulfillment side effect a redemption commits alongside the
// debit. One variant per fulfillment shape; each carries only the fields its
// shape needs, so the engine switches on the concrete type instead of probing
// a bag of optional columns.
type Effect interface {
	effect()
}

// GrantItem adds the item to the user's entitlement set. Used by every
// digital type except boosts.
type GrantItem struct {
	ItemID string
}

// GrantBoost adds the item and opens a timed multiplier window starting at
// the commit instant.
type GrantBoost struct {
	ItemID     string
	Duration   time.Duration
	Multiplier float64
}

// ShipItem defers fulfillment to the manual shipping workflow. It grants
// nothing at commit time.
type ShipItem struct{}

func (GrantItem) effect()  {}
func (GrantBoost) effect() {}
func (ShipItem) effect()   {}

// EffectOf maps a catalog entry's type tag to its fulfillment effect.
func EffectOf(r *model.Reward) Effect {
	switch r.Type {
	case model.RewardBoost:
		var mult float64
		if r.BoostMultiplier != nil {
			mult = *r.BoostMultiplier
		}
		return GrantBoost{ItemID: r.ItemID, Duration: r.BoostDuration(), Multiplier: mult}
	case model.RewardPhysical:
		return ShipItem{}
	default:
		return GrantItem{ItemID: r.ItemID}
	}
}

package redeem

import "github.com/calluna/rewardbox/internal/model"

// Validate runs the pre-commit eligibility checks in order, failing on the
// first violation: active, level, balance, stock, per-user limit.
// redeemedCount is the user's prior redemptions of this reward that still
// consume a limit slot.
//
// This is a pure read over already-loaded state. It exists for early, friendly
// rejection; the redeem transaction re-enforces balance and stock at commit
// time, so passing here is no guarantee of success.
func Validate(profile *model.Profile, reward *model.Reward, redeemedCount int) error {
	if !reward.Active {
		return ErrRewardInactive
	}
	if reward.RequiredLevel != nil && profile.Level < *reward.RequiredLevel {
		return ErrInsufficientLevel
	}
	if profile.CurrentExp < reward.PriceExp {
		return ErrInsufficientBalance
	}
	if reward.Stock != nil && *reward.Stock <= 0 {
		return ErrOutOfStock
	}
	if reward.LimitPerUser != nil && redeemedCount >= *reward.LimitPerUser {
		return ErrLimitExceeded
	}
	return nil
}

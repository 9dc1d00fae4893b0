package redeem

import "github.com/calluna/rewardbox/internal/model"

// forward is the administrative fulfillment chain for shipped rewards.
// Digital redemptions are created directly in delivered and never walk it.
var forward = map[model.Status]model.Status{
	model.StatusPending:    model.StatusApproved,
	model.StatusApproved:   model.StatusProcessing,
	model.StatusProcessing: model.StatusShipped,
	model.StatusShipped:    model.StatusDelivered,
	model.StatusDelivered:  model.StatusReceived,
}

// CanTransition reports whether a redemption may move from one status to
// another. Allowed moves: each forward step, pending → cancelled, and any
// non-terminal status → refunded.
func CanTransition(from, to model.Status) bool {
	if from.Terminal() {
		return false
	}
	if to == model.StatusRefunded {
		return true
	}
	if to == model.StatusCancelled {
		return from == model.StatusPending
	}
	return forward[from] == to
}

// InitialStatus returns the status a new redemption is created in. Digital
// entitlements are granted in the same transaction as the insert, so their
// redemptions begin — and for the happy path end — at delivered.
func InitialStatus(t model.RewardType) model.Status {
	if t.Digital() {
		return model.StatusDelivered
	}
	return model.StatusPending
}

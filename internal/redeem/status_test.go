package redeem

import (
	"testing"

	"github.com/calluna/rewardbox/internal/model"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to model.Status
		want     bool
	}{
		// Forward chain.
		{model.StatusPending, model.StatusApproved, true},
		{model.StatusApproved, model.StatusProcessing, true},
		{model.StatusProcessing, model.StatusShipped, true},
		{model.StatusShipped, model.StatusDelivered, true},
		{model.StatusDelivered, model.StatusReceived, true},

		// No skipping steps, no going backward.
		{model.StatusPending, model.StatusShipped, false},
		{model.StatusApproved, model.StatusDelivered, false},
		{model.StatusShipped, model.StatusProcessing, false},
		{model.StatusDelivered, model.StatusPending, false},

		// Cancellation only from pending.
		{model.StatusPending, model.StatusCancelled, true},
		{model.StatusApproved, model.StatusCancelled, false},
		{model.StatusShipped, model.StatusCancelled, false},

		// Refund from any non-terminal status.
		{model.StatusPending, model.StatusRefunded, true},
		{model.StatusProcessing, model.StatusRefunded, true},
		{model.StatusDelivered, model.StatusRefunded, true},

		// Terminal statuses admit nothing.
		{model.StatusReceived, model.StatusRefunded, false},
		{model.StatusCancelled, model.StatusPending, false},
		{model.StatusRefunded, model.StatusRefunded, false},
		{model.StatusCancelled, model.StatusRefunded, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestInitialStatus(t *testing.T) {
	for _, typ := range model.DigitalRewardTypes {
		if got := InitialStatus(typ); got != model.StatusDelivered {
			t.Errorf("InitialStatus(%s) = %s, want delivered", typ, got)
		}
	}
	if got := InitialStatus(model.RewardPhysical); got != model.StatusPending {
		t.Errorf("InitialStatus(physical) = %s, want pending", got)
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := map[model.Status]bool{
		model.StatusReceived:  true,
		model.StatusCancelled: true,
		model.StatusRefunded:  true,
	}
	all := []model.Status{
		model.StatusPending, model.StatusApproved, model.StatusProcessing,
		model.StatusShipped, model.StatusDelivered, model.StatusReceived,
		model.StatusCancelled, model.StatusRefunded,
	}
	for _, s := range all {
		if got := s.Terminal(); got != terminal[s] {
			t.Errorf("%s.Terminal() = %v, want %v", s, got, terminal[s])
		}
	}
}

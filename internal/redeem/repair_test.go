package redeem

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/calluna/rewardbox/internal/model"
)

// seedStranded inserts a redemption row directly, the way imported history
// arrives: paid for, but stuck before fulfillment.
func seedStranded(t *testing.T, env *engineTestEnv, userID int64, reward *model.Reward, status model.Status) *model.Redemption {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	red := &model.Redemption{
		ID:         uuid.NewString(),
		UserID:     userID,
		RewardID:   reward.ID,
		ItemID:     reward.ItemID,
		RewardType: reward.Type,
		RewardName: reward.Name,
		ExpCost:    reward.PriceExp,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := env.redemptions.Insert(red); err != nil {
		t.Fatalf("seed redemption: %v", err)
	}
	return red
}

func TestRepair(t *testing.T) {
	env := setupEngine(t, ":memory:")
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env.engine.now = func() time.Time { return start }

	env.fundUser(t, 1, 0)
	avatar := env.createReward(t, model.Reward{
		ItemID: "avatar_fox", Type: model.RewardAvatar, Name: "Fox Avatar", PriceExp: 100, Active: true,
	})
	boost := env.createReward(t, model.Reward{
		ItemID: "boost_double", Type: model.RewardBoost, Name: "Double EXP",
		PriceExp: 200, BoostDurationMinutes: intPtr(60), BoostMultiplier: floatPtr(2.0), Active: true,
	})
	plush := env.createReward(t, model.Reward{
		ItemID: "plush_fox", Type: model.RewardPhysical, Name: "Fox Plushie", PriceExp: 500, Active: true,
	})

	strandedAvatar := seedStranded(t, env, 1, avatar, model.StatusApproved)
	strandedBoost := seedStranded(t, env, 1, boost, model.StatusApproved)
	physicalApproved := seedStranded(t, env, 1, plush, model.StatusApproved) // normal fulfillment state
	healthy := seedStranded(t, env, 1, avatar, model.StatusDelivered)

	ctx := context.Background()

	// Dry run counts but touches nothing.
	result, err := env.engine.Repair(ctx, true)
	if err != nil {
		t.Fatalf("dry-run repair: %v", err)
	}
	if result.Scanned != 2 || len(result.Corrected) != 0 || !result.DryRun {
		t.Fatalf("dry-run result = %+v, want scanned 2, corrected 0", result)
	}
	got, _ := env.redemptions.GetByID(strandedAvatar.ID)
	if got.Status != model.StatusApproved {
		t.Fatalf("dry run mutated redemption to %q", got.Status)
	}

	// Real run corrects both digital rows.
	result, err = env.engine.Repair(ctx, false)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if result.Scanned != 2 || len(result.Corrected) != 2 {
		t.Fatalf("result = %+v, want scanned 2, corrected 2", result)
	}
	if !slices.Contains(result.Corrected, strandedAvatar.ID) || !slices.Contains(result.Corrected, strandedBoost.ID) {
		t.Errorf("corrected = %v, want both stranded IDs", result.Corrected)
	}

	fixedAvatar, _ := env.redemptions.GetByID(strandedAvatar.ID)
	if fixedAvatar.Status != model.StatusDelivered {
		t.Errorf("avatar status = %q, want delivered", fixedAvatar.Status)
	}
	if fixedAvatar.AdminNotes != "auto-corrected" {
		t.Errorf("avatar admin_notes = %q, want %q", fixedAvatar.AdminNotes, "auto-corrected")
	}
	has, err := env.profiles.HasEntitlement(1, "avatar_fox")
	if err != nil {
		t.Fatalf("check entitlement: %v", err)
	}
	if !has {
		t.Error("repair should grant the missing entitlement")
	}

	// The boost gets a fresh activation window from the repair instant.
	fixedBoost, _ := env.redemptions.GetByID(strandedBoost.ID)
	if fixedBoost.ActivatedAt == nil || !fixedBoost.ActivatedAt.Equal(start) {
		t.Errorf("boost activated_at = %v, want %v", fixedBoost.ActivatedAt, start)
	}
	if fixedBoost.ExpiresAt == nil || !fixedBoost.ExpiresAt.Equal(start.Add(time.Hour)) {
		t.Errorf("boost expires_at = %v, want %v", fixedBoost.ExpiresAt, start.Add(time.Hour))
	}

	// Untouched rows stay untouched.
	stillPhysical, _ := env.redemptions.GetByID(physicalApproved.ID)
	if stillPhysical.Status != model.StatusApproved {
		t.Errorf("physical status = %q, want approved (not a repair target)", stillPhysical.Status)
	}
	stillHealthy, _ := env.redemptions.GetByID(healthy.ID)
	if stillHealthy.AdminNotes != "" {
		t.Errorf("healthy row notes = %q, want empty", stillHealthy.AdminNotes)
	}

	// Second run finds nothing left to fix.
	result, err = env.engine.Repair(ctx, false)
	if err != nil {
		t.Fatalf("second repair: %v", err)
	}
	if result.Scanned != 0 || len(result.Corrected) != 0 {
		t.Errorf("second run = %+v, want scanned 0, corrected 0", result)
	}
}

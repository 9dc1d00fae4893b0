package store

import (
	"database/sql"
	"testing"

	"github.com/calluna/rewardbox/internal/database"
	"github.com/calluna/rewardbox/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func intPtr(v int) *int         { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestRewardCRUD(t *testing.T) {
	rs := NewRewardStore(setupTestDB(t))

	// Create
	reward, err := rs.Create(model.Reward{
		ItemID:      "avatar_fox",
		Type:        model.RewardAvatar,
		Name:        "Fox Avatar",
		Description: "A sly profile picture",
		PriceExp:    150,
		Stock:       intPtr(10),
		Active:      true,
	})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	if reward.ID == 0 {
		t.Fatal("expected non-zero reward ID")
	}
	if reward.Name != "Fox Avatar" {
		t.Errorf("name = %q, want %q", reward.Name, "Fox Avatar")
	}
	if reward.Stock == nil || *reward.Stock != 10 {
		t.Errorf("stock = %v, want 10", reward.Stock)
	}

	// Get
	got, err := rs.GetByID(reward.ID)
	if err != nil {
		t.Fatalf("get reward: %v", err)
	}
	if got == nil {
		t.Fatal("expected reward, got nil")
	}
	if got.ItemID != "avatar_fox" {
		t.Errorf("item_id = %q, want %q", got.ItemID, "avatar_fox")
	}
	if got.Type != model.RewardAvatar {
		t.Errorf("type = %q, want %q", got.Type, model.RewardAvatar)
	}

	// Update
	updated := *got
	updated.Name = "Red Fox Avatar"
	updated.PriceExp = 200
	after, err := rs.Update(reward.ID, updated)
	if err != nil {
		t.Fatalf("update reward: %v", err)
	}
	if after.Name != "Red Fox Avatar" {
		t.Errorf("updated name = %q, want %q", after.Name, "Red Fox Avatar")
	}
	if after.PriceExp != 200 {
		t.Errorf("updated price_exp = %d, want 200", after.PriceExp)
	}

	// Deactivate (rows are never deleted)
	if err := rs.Deactivate(reward.ID); err != nil {
		t.Fatalf("deactivate reward: %v", err)
	}
	got, err = rs.GetByID(reward.ID)
	if err != nil {
		t.Fatalf("get after deactivate: %v", err)
	}
	if got == nil {
		t.Fatal("deactivated reward should still exist")
	}
	if got.Active {
		t.Error("reward should be inactive after Deactivate")
	}
}

func TestRewardGetMissing(t *testing.T) {
	rs := NewRewardStore(setupTestDB(t))

	got, err := rs.GetByID(9999)
	if err != nil {
		t.Fatalf("get missing reward: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing reward, got %+v", got)
	}
}

func TestRewardNullableFields(t *testing.T) {
	rs := NewRewardStore(setupTestDB(t))

	// Unlimited stock, no gates: every optional column NULL.
	plain, err := rs.Create(model.Reward{
		ItemID:   "badge_star",
		Type:     model.RewardBadge,
		Name:     "Star Badge",
		PriceExp: 50,
		Active:   true,
	})
	if err != nil {
		t.Fatalf("create plain reward: %v", err)
	}
	if plain.Stock != nil {
		t.Errorf("stock = %v, want nil (unlimited)", *plain.Stock)
	}
	if plain.RequiredLevel != nil || plain.LimitPerUser != nil {
		t.Error("expected nil gates on plain reward")
	}
	if plain.BoostDurationMinutes != nil || plain.BoostMultiplier != nil {
		t.Error("expected nil boost fields on non-boost reward")
	}

	// Boost with every optional field set.
	boost, err := rs.Create(model.Reward{
		ItemID:               "boost_double",
		Type:                 model.RewardBoost,
		Name:                 "Double EXP",
		PriceExp:             300,
		Stock:                intPtr(5),
		RequiredLevel:        intPtr(3),
		LimitPerUser:         intPtr(1),
		BoostDurationMinutes: intPtr(60),
		BoostMultiplier:      floatPtr(2.0),
		Active:               true,
	})
	if err != nil {
		t.Fatalf("create boost reward: %v", err)
	}
	if boost.RequiredLevel == nil || *boost.RequiredLevel != 3 {
		t.Errorf("required_level = %v, want 3", boost.RequiredLevel)
	}
	if boost.LimitPerUser == nil || *boost.LimitPerUser != 1 {
		t.Errorf("limit_per_user = %v, want 1", boost.LimitPerUser)
	}
	if boost.BoostDurationMinutes == nil || *boost.BoostDurationMinutes != 60 {
		t.Errorf("boost_duration_minutes = %v, want 60", boost.BoostDurationMinutes)
	}
	if boost.BoostMultiplier == nil || *boost.BoostMultiplier != 2.0 {
		t.Errorf("boost_multiplier = %v, want 2.0", boost.BoostMultiplier)
	}
}

func TestRewardListActive(t *testing.T) {
	rs := NewRewardStore(setupTestDB(t))

	active, err := rs.Create(model.Reward{
		ItemID: "avatar_owl", Type: model.RewardAvatar, Name: "Owl", PriceExp: 100, Active: true,
	})
	if err != nil {
		t.Fatalf("create active reward: %v", err)
	}
	if _, err := rs.Create(model.Reward{
		ItemID: "avatar_cat", Type: model.RewardAvatar, Name: "Cat", PriceExp: 100, Active: false,
	}); err != nil {
		t.Fatalf("create inactive reward: %v", err)
	}

	all, err := rs.List()
	if err != nil {
		t.Fatalf("list rewards: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List returned %d rewards, want 2", len(all))
	}

	visible, err := rs.ListActive()
	if err != nil {
		t.Fatalf("list active rewards: %v", err)
	}
	if len(visible) != 1 {
		t.Fatalf("ListActive returned %d rewards, want 1", len(visible))
	}
	if visible[0].ID != active.ID {
		t.Errorf("active reward ID = %d, want %d", visible[0].ID, active.ID)
	}
}

func TestRewardDuplicateItemID(t *testing.T) {
	rs := NewRewardStore(setupTestDB(t))

	if _, err := rs.Create(model.Reward{
		ItemID: "avatar_owl", Type: model.RewardAvatar, Name: "Owl", PriceExp: 100, Active: true,
	}); err != nil {
		t.Fatalf("create reward: %v", err)
	}
	if _, err := rs.Create(model.Reward{
		ItemID: "avatar_owl", Type: model.RewardAvatar, Name: "Owl Again", PriceExp: 120, Active: true,
	}); err == nil {
		t.Error("expected unique constraint error for duplicate item_id")
	}
}

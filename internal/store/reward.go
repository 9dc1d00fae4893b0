package store

import (
	"database/sql"
	"fmt"

	"github.com/calluna/rewardbox/internal/model"
)

type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var active int
	var stock, requiredLevel, limitPerUser, boostMinutes sql.NullInt64
	var boostMultiplier sql.NullFloat64

	err := scanner.Scan(
		&r.ID, &r.ItemID, &r.Type, &r.Name, &r.Description, &r.ImageURL,
		&r.PriceExp, &stock, &requiredLevel, &limitPerUser,
		&boostMinutes, &boostMultiplier, &active, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if stock.Valid {
		v := int(stock.Int64)
		r.Stock = &v
	}
	if requiredLevel.Valid {
		v := int(requiredLevel.Int64)
		r.RequiredLevel = &v
	}
	if limitPerUser.Valid {
		v := int(limitPerUser.Int64)
		r.LimitPerUser = &v
	}
	if boostMinutes.Valid {
		v := int(boostMinutes.Int64)
		r.BoostDurationMinutes = &v
	}
	if boostMultiplier.Valid {
		r.BoostMultiplier = &boostMultiplier.Float64
	}
	r.Active = active != 0
	return &r, nil
}

const rewardCols = `id, item_id, type, name, description, image_url, price_exp, stock, required_level, limit_per_user, boost_duration_minutes, boost_multiplier, active, created_at, updated_at`

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Create inserts a catalog entry and returns the stored row.
func (s *RewardStore) Create(r model.Reward) (*model.Reward, error) {
	result, err := s.db.Exec(
		`INSERT INTO rewards (item_id, type, name, description, image_url, price_exp, stock, required_level, limit_per_user, boost_duration_minutes, boost_multiplier, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ItemID, r.Type, r.Name, r.Description, r.ImageURL, r.PriceExp,
		nullInt(r.Stock), nullInt(r.RequiredLevel), nullInt(r.LimitPerUser),
		nullInt(r.BoostDurationMinutes), nullFloat(r.BoostMultiplier), boolToInt(r.Active),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) GetByID(id int64) (*model.Reward, error) {
	row := s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// List returns all rewards, active first, then by name.
func (s *RewardStore) List() ([]model.Reward, error) {
	rows, err := s.db.Query(`SELECT ` + rewardCols + ` FROM rewards ORDER BY active DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()
	return collectRewards(rows)
}

// ListActive returns only active rewards, ordered by name.
func (s *RewardStore) ListActive() ([]model.Reward, error) {
	rows, err := s.db.Query(`SELECT ` + rewardCols + ` FROM rewards WHERE active = 1 ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active rewards: %w", err)
	}
	defer rows.Close()
	return collectRewards(rows)
}

func collectRewards(rows *sql.Rows) ([]model.Reward, error) {
	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

// Update rewrites the mutable catalog fields. Redemption snapshots are
// unaffected; only future redemptions see the new values.
func (s *RewardStore) Update(id int64, r model.Reward) (*model.Reward, error) {
	_, err := s.db.Exec(
		`UPDATE rewards SET item_id = ?, type = ?, name = ?, description = ?, image_url = ?, price_exp = ?, stock = ?, required_level = ?, limit_per_user = ?, boost_duration_minutes = ?, boost_multiplier = ?, active = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		r.ItemID, r.Type, r.Name, r.Description, r.ImageURL, r.PriceExp,
		nullInt(r.Stock), nullInt(r.RequiredLevel), nullInt(r.LimitPerUser),
		nullInt(r.BoostDurationMinutes), nullFloat(r.BoostMultiplier), boolToInt(r.Active),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetByID(id)
}

// Deactivate hides a reward from the catalog. Rows are never deleted because
// redemption history references them.
func (s *RewardStore) Deactivate(id int64) error {
	_, err := s.db.Exec(`UPDATE rewards SET active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate reward: %w", err)
	}
	return nil
}

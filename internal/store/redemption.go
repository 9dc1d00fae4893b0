package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/calluna/rewardbox/internal/model"
)

type RedemptionStore struct {
	db *sql.DB
}

func NewRedemptionStore(db *sql.DB) *RedemptionStore {
	return &RedemptionStore{db: db}
}

func scanRedemption(scanner interface{ Scan(...any) error }) (*model.Redemption, error) {
	var r model.Redemption
	var activatedAt, expiresAt sql.NullTime

	err := scanner.Scan(
		&r.ID, &r.UserID, &r.RewardID, &r.ItemID, &r.RewardType, &r.RewardName,
		&r.RewardImageURL, &r.ExpCost, &r.Status, &r.ShippingAddress,
		&r.TrackingNumber, &activatedAt, &expiresAt, &r.CancelReason,
		&r.AdminNotes, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if activatedAt.Valid {
		r.ActivatedAt = &activatedAt.Time
	}
	if expiresAt.Valid {
		r.ExpiresAt = &expiresAt.Time
	}
	return &r, nil
}

const redemptionCols = `id, user_id, reward_id, item_id, reward_type, reward_name, reward_image_url, exp_cost, status, shipping_address, tracking_number, activated_at, expires_at, cancel_reason, admin_notes, created_at, updated_at`

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Insert writes a complete redemption row. The engine creates redemptions
// inside its own transactions; this standalone variant exists for seeding
// historical rows (migration tooling and tests).
func (s *RedemptionStore) Insert(r *model.Redemption) error {
	_, err := s.db.Exec(
		`INSERT INTO redemptions (`+redemptionCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.RewardID, r.ItemID, r.RewardType, r.RewardName,
		r.RewardImageURL, r.ExpCost, r.Status, r.ShippingAddress,
		r.TrackingNumber, nullTime(r.ActivatedAt), nullTime(r.ExpiresAt),
		r.CancelReason, r.AdminNotes, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert redemption: %w", err)
	}
	return nil
}

func (s *RedemptionStore) GetByID(id string) (*model.Redemption, error) {
	row := s.db.QueryRow(`SELECT `+redemptionCols+` FROM redemptions WHERE id = ?`, id)
	r, err := scanRedemption(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get redemption: %w", err)
	}
	return r, nil
}

// ListByUser returns a user's redemption history, newest first.
func (s *RedemptionStore) ListByUser(userID int64) ([]model.Redemption, error) {
	rows, err := s.db.Query(
		`SELECT `+redemptionCols+` FROM redemptions WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list redemptions by user: %w", err)
	}
	defer rows.Close()
	return collectRedemptions(rows)
}

// ListByStatus returns all redemptions in the given status, oldest first.
func (s *RedemptionStore) ListByStatus(status model.Status) ([]model.Redemption, error) {
	rows, err := s.db.Query(
		`SELECT `+redemptionCols+` FROM redemptions WHERE status = ? ORDER BY created_at ASC, id ASC`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("list redemptions by status: %w", err)
	}
	defer rows.Close()
	return collectRedemptions(rows)
}

// ListStrandedDigital returns digital-type redemptions stuck in the approved
// status. By construction the engine never produces such rows; they only come
// from imported history, and the repair job moves them to delivered.
func (s *RedemptionStore) ListStrandedDigital() ([]model.Redemption, error) {
	placeholders := make([]string, len(model.DigitalRewardTypes))
	args := make([]any, 0, len(model.DigitalRewardTypes)+1)
	args = append(args, model.StatusApproved)
	for i, t := range model.DigitalRewardTypes {
		placeholders[i] = "?"
		args = append(args, t)
	}

	rows, err := s.db.Query(
		`SELECT `+redemptionCols+` FROM redemptions WHERE status = ? AND reward_type IN (`+strings.Join(placeholders, ", ")+`) ORDER BY created_at ASC, id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list stranded digital redemptions: %w", err)
	}
	defer rows.Close()
	return collectRedemptions(rows)
}

// CountTowardLimit counts a user's redemptions of a reward that still consume
// a per-user-limit slot. Cancelled redemptions returned their unit and do not
// count; refunded ones kept the unit downstream and do.
func (s *RedemptionStore) CountTowardLimit(userID, rewardID int64) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM redemptions WHERE user_id = ? AND reward_id = ? AND status != ?`,
		userID, rewardID, model.StatusCancelled,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count redemptions: %w", err)
	}
	return n, nil
}

// ListActiveBoosts returns the user's delivered boost redemptions whose
// window contains the given instant.
func (s *RedemptionStore) ListActiveBoosts(userID int64, at time.Time) ([]model.Redemption, error) {
	rows, err := s.db.Query(
		`SELECT `+redemptionCols+` FROM redemptions
		 WHERE user_id = ? AND reward_type = ? AND status = ?
		   AND activated_at IS NOT NULL AND activated_at <= ?
		   AND expires_at IS NOT NULL AND expires_at > ?
		 ORDER BY expires_at ASC`,
		userID, model.RewardBoost, model.StatusDelivered, at, at,
	)
	if err != nil {
		return nil, fmt.Errorf("list active boosts: %w", err)
	}
	defer rows.Close()
	return collectRedemptions(rows)
}

func collectRedemptions(rows *sql.Rows) ([]model.Redemption, error) {
	var redemptions []model.Redemption
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		redemptions = append(redemptions, *r)
	}
	return redemptions, rows.Err()
}

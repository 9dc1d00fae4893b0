package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/calluna/rewardbox/internal/model"
)

// ErrBalanceNegative is returned when an EXP adjustment would take the
// balance below zero.
var ErrBalanceNegative = errors.New("balance would go negative")

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func scanProfile(scanner interface{ Scan(...any) error }) (*model.Profile, error) {
	var p model.Profile
	err := scanner.Scan(&p.UserID, &p.Level, &p.CurrentExp, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const profileCols = `user_id, level, current_exp, created_at`

func (s *ProfileStore) Get(userID int64) (*model.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE user_id = ?`, userID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Ensure creates a profile row with defaults if one does not exist yet and
// returns the current row either way.
func (s *ProfileStore) Ensure(userID int64) (*model.Profile, error) {
	_, err := s.db.Exec(
		`INSERT INTO profiles (user_id) VALUES (?) ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return s.Get(userID)
}

// SetLevel updates a user's level. Levels are earned upstream; this store
// only mirrors them for eligibility checks.
func (s *ProfileStore) SetLevel(userID int64, level int) (*model.Profile, error) {
	if _, err := s.Ensure(userID); err != nil {
		return nil, err
	}
	_, err := s.db.Exec(`UPDATE profiles SET level = ? WHERE user_id = ?`, level, userID)
	if err != nil {
		return nil, fmt.Errorf("set level: %w", err)
	}
	return s.Get(userID)
}

// GrantExp credits (or, for a negative delta, debits) EXP with a ledger entry
// in a single transaction. The balance guard in the UPDATE keeps the balance
// from ever going negative.
func (s *ProfileStore) GrantExp(userID int64, delta int, reason model.LedgerReason) (*model.Profile, error) {
	if _, err := s.Ensure(userID); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE profiles SET current_exp = current_exp + ? WHERE user_id = ? AND current_exp + ? >= 0`,
		delta, userID, delta,
	)
	if err != nil {
		return nil, fmt.Errorf("apply exp delta: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("apply exp delta: %w", ErrBalanceNegative)
	}

	if _, err := tx.Exec(
		`INSERT INTO exp_ledger (user_id, delta, reason) VALUES (?, ?, ?)`,
		userID, delta, reason,
	); err != nil {
		return nil, fmt.Errorf("append ledger: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.Get(userID)
}

func scanLedgerEntry(scanner interface{ Scan(...any) error }) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	err := scanner.Scan(&e.ID, &e.UserID, &e.Delta, &e.Reason, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Ledger returns a user's EXP history, newest first.
func (s *ProfileStore) Ledger(userID int64) ([]model.LedgerEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, delta, reason, created_at FROM exp_ledger WHERE user_id = ? ORDER BY id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// LedgerSum returns the running sum of a user's ledger deltas. Used to verify
// the balance invariant: it must always equal profiles.current_exp.
func (s *ProfileStore) LedgerSum(userID int64) (int, error) {
	var sum sql.NullInt64
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(delta), 0) FROM exp_ledger WHERE user_id = ?`,
		userID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum ledger: %w", err)
	}
	return int(sum.Int64), nil
}

// Entitlements returns the digital items a user owns, oldest grant first.
func (s *ProfileStore) Entitlements(userID int64) ([]model.Entitlement, error) {
	rows, err := s.db.Query(
		`SELECT user_id, item_id, granted_at FROM entitlements WHERE user_id = ? ORDER BY granted_at ASC, item_id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}
	defer rows.Close()

	var ents []model.Entitlement
	for rows.Next() {
		var e model.Entitlement
		if err := rows.Scan(&e.UserID, &e.ItemID, &e.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan entitlement: %w", err)
		}
		ents = append(ents, e)
	}
	return ents, rows.Err()
}

// HasEntitlement reports whether the user owns the given item.
func (s *ProfileStore) HasEntitlement(userID int64, itemID string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM entitlements WHERE user_id = ? AND item_id = ?`,
		userID, itemID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check entitlement: %w", err)
	}
	return n > 0, nil
}

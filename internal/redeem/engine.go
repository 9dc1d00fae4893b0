package redeem

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/calluna/rewardbox/internal/model"
	"github.com/calluna/rewardbox/internal/store"
)

const defaultRetries = 3

// Engine owns every economic mutation: redeem, cancel, refund, fulfillment
// advancement, and the consistency repair job. Each operation is a single
// transaction whose UPDATE statements carry their preconditions in the WHERE
// clause, so a stale read aborts instead of overwriting. Operations that can
// lose a race are retried a bounded number of times.
type Engine struct {
	db          *sql.DB
	rewards     *store.RewardStore
	profiles    *store.ProfileStore
	redemptions *store.RedemptionStore
	logger      *slog.Logger
	retries     uint64
	now         func() time.Time
}

// NewEngine wires the engine over the shared database. retries bounds how
// often a conflicted redeem/cancel is re-attempted before the conflict is
// surfaced as final; values < 1 fall back to the default.
func NewEngine(db *sql.DB, rewards *store.RewardStore, profiles *store.ProfileStore, redemptions *store.RedemptionStore, retries int, logger *slog.Logger) *Engine {
	r := uint64(defaultRetries)
	if retries >= 1 {
		r = uint64(retries)
	}
	return &Engine{
		db:          db,
		rewards:     rewards,
		profiles:    profiles,
		redemptions: redemptions,
		logger:      logger,
		retries:     r,
		now:         time.Now,
	}
}

// withRetry runs one attempt function under the engine's conflict budget.
// Only ErrConcurrentConflict is retried; every other outcome is final.
func (e *Engine) withRetry(ctx context.Context, attempt func(context.Context) error) error {
	backoff := retry.WithMaxRetries(e.retries, retry.NewConstant(25*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := attempt(ctx)
		if errors.Is(err, ErrConcurrentConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// Redeem exchanges EXP for a reward. Eligibility is validated up front, then
// debit, ledger entry, stock decrement, redemption insert, and (for digital
// rewards) the entitlement grant commit as one transaction, or not at all.
// The returned redemption is delivered for digital types and pending for
// physical ones.
func (e *Engine) Redeem(ctx context.Context, userID, rewardID int64, shippingAddress string) (*model.Redemption, error) {
	var red *model.Redemption
	err := e.withRetry(ctx, func(ctx context.Context) error {
		r, err := e.redeemOnce(ctx, userID, rewardID, shippingAddress)
		if err != nil {
			return err
		}
		red = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("redeemed reward",
		"redemption_id", red.ID, "user_id", userID, "reward_id", rewardID,
		"exp_cost", red.ExpCost, "status", red.Status)
	return red, nil
}

func (e *Engine) redeemOnce(ctx context.Context, userID, rewardID int64, shippingAddress string) (*model.Redemption, error) {
	reward, err := e.rewards.GetByID(rewardID)
	if err != nil {
		return nil, err
	}
	if reward == nil {
		return nil, ErrRewardNotFound
	}

	profile, err := e.profiles.Get(userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}

	redeemedCount, err := e.redemptions.CountTowardLimit(userID, rewardID)
	if err != nil {
		return nil, err
	}

	if err := Validate(profile, reward, redeemedCount); err != nil {
		return nil, err
	}

	shippingAddress = strings.TrimSpace(shippingAddress)
	if reward.RequiresShipping() && shippingAddress == "" {
		return nil, ErrShippingRequired
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, txErr("begin tx", err)
	}
	defer tx.Rollback()

	// Debit with the balance guard in the UPDATE itself. The pre-validation
	// read passed, so an untouched row here means a competing commit got in
	// first — abort and let the retry budget re-validate.
	res, err := tx.ExecContext(ctx,
		`UPDATE profiles SET current_exp = current_exp - ? WHERE user_id = ? AND current_exp >= ?`,
		reward.PriceExp, userID, reward.PriceExp,
	)
	if err != nil {
		return nil, txErr("debit balance", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return nil, ErrConcurrentConflict
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO exp_ledger (user_id, delta, reason) VALUES (?, ?, ?)`,
		userID, -reward.PriceExp, model.ReasonRedemption,
	); err != nil {
		return nil, txErr("append ledger", err)
	}

	if reward.Stock != nil {
		res, err := tx.ExecContext(ctx,
			`UPDATE rewards SET stock = stock - 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND stock > 0`,
			rewardID,
		)
		if err != nil {
			return nil, txErr("decrement stock", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		} else if n == 0 {
			return nil, ErrOutOfStock
		}
	}

	now := e.now().UTC()
	red := &model.Redemption{
		ID:             uuid.NewString(),
		UserID:         userID,
		RewardID:       reward.ID,
		ItemID:         reward.ItemID,
		RewardType:     reward.Type,
		RewardName:     reward.Name,
		RewardImageURL: reward.ImageURL,
		ExpCost:        reward.PriceExp,
		Status:         InitialStatus(reward.Type),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	switch eff := EffectOf(reward).(type) {
	case ShipItem:
		red.ShippingAddress = shippingAddress
	case GrantItem:
		if err := grantEntitlement(ctx, tx, userID, eff.ItemID, now); err != nil {
			return nil, err
		}
	case GrantBoost:
		if err := grantEntitlement(ctx, tx, userID, eff.ItemID, now); err != nil {
			return nil, err
		}
		expires := now.Add(eff.Duration)
		red.ActivatedAt = &now
		red.ExpiresAt = &expires
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO redemptions (id, user_id, reward_id, item_id, reward_type, reward_name, reward_image_url, exp_cost, status, shipping_address, tracking_number, activated_at, expires_at, cancel_reason, admin_notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?, '', '', ?, ?)`,
		red.ID, red.UserID, red.RewardID, red.ItemID, red.RewardType,
		red.RewardName, red.RewardImageURL, red.ExpCost, red.Status,
		red.ShippingAddress, nullTime(red.ActivatedAt), nullTime(red.ExpiresAt),
		red.CreatedAt, red.UpdatedAt,
	); err != nil {
		return nil, txErr("insert redemption", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, txErr("commit", err)
	}
	return red, nil
}

// Cancel reverses a redemption at the user's request. Only shipping
// redemptions still in pending qualify; the status flip, EXP credit, refund
// ledger entry, and stock restore commit together. A second cancel of the
// same redemption reports ErrAlreadyTerminal.
func (e *Engine) Cancel(ctx context.Context, redemptionID string, userID int64, reason string) (*model.Redemption, error) {
	var red *model.Redemption
	err := e.withRetry(ctx, func(ctx context.Context) error {
		r, err := e.cancelOnce(ctx, redemptionID, userID, reason)
		if err != nil {
			return err
		}
		red = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("cancelled redemption",
		"redemption_id", red.ID, "user_id", userID, "refunded_exp", red.ExpCost)
	return red, nil
}

func (e *Engine) cancelOnce(ctx context.Context, redemptionID string, userID int64, reason string) (*model.Redemption, error) {
	red, err := e.redemptions.GetByID(redemptionID)
	if err != nil {
		return nil, err
	}
	if red == nil {
		return nil, ErrRedemptionNotFound
	}
	if red.UserID != userID {
		return nil, ErrNotOwner
	}
	if red.Status.Terminal() {
		return nil, ErrAlreadyTerminal
	}
	if red.RewardType.Digital() || red.Status != model.StatusPending {
		return nil, ErrNotCancellable
	}

	reward, err := e.rewards.GetByID(red.RewardID)
	if err != nil {
		return nil, err
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, txErr("begin tx", err)
	}
	defer tx.Rollback()

	now := e.now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE redemptions SET status = ?, cancel_reason = ?, updated_at = ? WHERE id = ? AND status = ?`,
		model.StatusCancelled, reason, now, redemptionID, model.StatusPending,
	)
	if err != nil {
		return nil, txErr("cancel redemption", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		// A competing transition committed between our read and this write.
		return nil, ErrConcurrentConflict
	}

	if err := creditExp(ctx, tx, red.UserID, red.ExpCost); err != nil {
		return nil, err
	}

	// The unit goes back on the shelf; refunds (fulfillment failed after
	// commitment) do not restore stock, cancellations do.
	if reward != nil && reward.Stock != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE rewards SET stock = stock + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			red.RewardID,
		); err != nil {
			return nil, txErr("restore stock", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, txErr("commit", err)
	}
	return e.redemptions.GetByID(redemptionID)
}

// Refund is the administrative escape hatch for fulfillment failures: it
// forces any non-terminal redemption to refunded and credits the EXP back.
// Stock is not restored — the unit is presumed consumed downstream.
func (e *Engine) Refund(ctx context.Context, redemptionID, adminNotes string) (*model.Redemption, error) {
	var red *model.Redemption
	err := e.withRetry(ctx, func(ctx context.Context) error {
		r, err := e.refundOnce(ctx, redemptionID, adminNotes)
		if err != nil {
			return err
		}
		red = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("refunded redemption",
		"redemption_id", red.ID, "user_id", red.UserID, "refunded_exp", red.ExpCost)
	return red, nil
}

func (e *Engine) refundOnce(ctx context.Context, redemptionID, adminNotes string) (*model.Redemption, error) {
	red, err := e.redemptions.GetByID(redemptionID)
	if err != nil {
		return nil, err
	}
	if red == nil {
		return nil, ErrRedemptionNotFound
	}
	if red.Status.Terminal() {
		return nil, ErrAlreadyTerminal
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, txErr("begin tx", err)
	}
	defer tx.Rollback()

	now := e.now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE redemptions SET status = ?, admin_notes = ?, updated_at = ? WHERE id = ? AND status = ?`,
		model.StatusRefunded, adminNotes, now, redemptionID, red.Status,
	)
	if err != nil {
		return nil, txErr("refund redemption", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return nil, ErrConcurrentConflict
	}

	if err := creditExp(ctx, tx, red.UserID, red.ExpCost); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, txErr("commit", err)
	}
	return e.redemptions.GetByID(redemptionID)
}

// Advance moves a physical redemption one step along the fulfillment chain.
// Cancellation and refund carry economic effects and have their own entry
// points; Advance rejects them. Entering shipped requires a tracking number.
func (e *Engine) Advance(ctx context.Context, redemptionID string, next model.Status, trackingNumber, adminNotes string) (*model.Redemption, error) {
	if !next.Valid() || next == model.StatusCancelled || next == model.StatusRefunded {
		return nil, ErrInvalidTransition
	}

	red, err := e.redemptions.GetByID(redemptionID)
	if err != nil {
		return nil, err
	}
	if red == nil {
		return nil, ErrRedemptionNotFound
	}
	if red.Status.Terminal() {
		return nil, ErrAlreadyTerminal
	}
	if !CanTransition(red.Status, next) {
		return nil, ErrInvalidTransition
	}

	trackingNumber = strings.TrimSpace(trackingNumber)
	if next == model.StatusShipped && trackingNumber == "" {
		return nil, ErrTrackingRequired
	}
	if trackingNumber == "" {
		trackingNumber = red.TrackingNumber
	}
	if adminNotes == "" {
		adminNotes = red.AdminNotes
	}

	res, err := e.db.ExecContext(ctx,
		`UPDATE redemptions SET status = ?, tracking_number = ?, admin_notes = ?, updated_at = ? WHERE id = ? AND status = ?`,
		next, trackingNumber, adminNotes, e.now().UTC(), redemptionID, red.Status,
	)
	if err != nil {
		return nil, txErr("advance redemption", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return nil, ErrConcurrentConflict
	}

	e.logger.Info("advanced redemption",
		"redemption_id", redemptionID, "from", red.Status, "to", next)
	return e.redemptions.GetByID(redemptionID)
}

// ConfirmReceived is the user-side confirmation of a delivered shipment.
func (e *Engine) ConfirmReceived(ctx context.Context, redemptionID string, userID int64) (*model.Redemption, error) {
	red, err := e.redemptions.GetByID(redemptionID)
	if err != nil {
		return nil, err
	}
	if red == nil {
		return nil, ErrRedemptionNotFound
	}
	if red.UserID != userID {
		return nil, ErrNotOwner
	}
	if red.Status.Terminal() {
		return nil, ErrAlreadyTerminal
	}
	if !red.RewardType.Valid() || red.RewardType.Digital() || red.Status != model.StatusDelivered {
		return nil, ErrInvalidTransition
	}

	res, err := e.db.ExecContext(ctx,
		`UPDATE redemptions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		model.StatusReceived, e.now().UTC(), redemptionID, model.StatusDelivered,
	)
	if err != nil {
		return nil, txErr("confirm received", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return nil, ErrConcurrentConflict
	}
	return e.redemptions.GetByID(redemptionID)
}

// ActiveBoosts lists the user's boost redemptions whose window is open right
// now. Expiry is purely a read-side comparison; nothing runs in the
// background to close windows.
func (e *Engine) ActiveBoosts(userID int64) ([]model.Redemption, error) {
	return e.redemptions.ListActiveBoosts(userID, e.now().UTC())
}

func creditExp(ctx context.Context, tx *sql.Tx, userID int64, amount int) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE profiles SET current_exp = current_exp + ? WHERE user_id = ?`,
		amount, userID,
	); err != nil {
		return txErr("credit balance", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO exp_ledger (user_id, delta, reason) VALUES (?, ?, ?)`,
		userID, amount, model.ReasonRefund,
	); err != nil {
		return txErr("append ledger", err)
	}
	return nil
}

func grantEntitlement(ctx context.Context, tx *sql.Tx, userID int64, itemID string, at time.Time) error {
	// Re-granting an owned item is a no-op, not an error.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entitlements (user_id, item_id, granted_at) VALUES (?, ?, ?) ON CONFLICT (user_id, item_id) DO NOTHING`,
		userID, itemID, at,
	); err != nil {
		return txErr("grant entitlement", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// txErr wraps a transaction step error, folding SQLite lock contention into
// the retryable conflict error.
func txErr(op string, err error) error {
	if isBusy(err) {
		return fmt.Errorf("%s: %w", op, ErrConcurrentConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return false
}

package redeem

import (
	"context"
	"fmt"

	"github.com/calluna/rewardbox/internal/model"
)

// RepairResult reports one run of the consistency repair job.
type RepairResult struct {
	Scanned   int      `json:"scanned"`
	Corrected []string `json:"corrected"`
	DryRun    bool     `json:"dry_run"`
}

// Repair corrects digital redemptions stranded in approved — a defect class
// from before the entitlement grant was part of the redeem transaction. Each
// stranded row is moved to delivered, noted, granted its entitlement, and for
// boosts given an activation window starting now (the original activation
// instant was never recorded, so the current time is an explicit
// approximation, not a guess at intent).
//
// The job is idempotent: corrected rows fail the status guard on a second
// run, which therefore reports zero corrections. With dryRun set it only
// counts.
func (e *Engine) Repair(ctx context.Context, dryRun bool) (*RepairResult, error) {
	stranded, err := e.redemptions.ListStrandedDigital()
	if err != nil {
		return nil, err
	}

	result := &RepairResult{
		Scanned:   len(stranded),
		Corrected: []string{},
		DryRun:    dryRun,
	}
	if dryRun {
		return result, nil
	}

	for i := range stranded {
		corrected, err := e.repairOne(ctx, &stranded[i])
		if err != nil {
			return nil, fmt.Errorf("repair redemption %s: %w", stranded[i].ID, err)
		}
		if corrected {
			result.Corrected = append(result.Corrected, stranded[i].ID)
		}
	}

	e.logger.Info("consistency repair completed",
		"scanned", result.Scanned, "corrected", len(result.Corrected))
	return result, nil
}

func (e *Engine) repairOne(ctx context.Context, red *model.Redemption) (bool, error) {
	now := e.now().UTC()

	var activatedAt, expiresAt any
	if red.RewardType == model.RewardBoost {
		reward, err := e.rewards.GetByID(red.RewardID)
		if err != nil {
			return false, err
		}
		if reward != nil && reward.BoostDuration() > 0 {
			activatedAt = now
			expiresAt = now.Add(reward.BoostDuration())
		}
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return false, txErr("begin tx", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE redemptions SET status = ?,
		        admin_notes = CASE WHEN admin_notes = '' THEN 'auto-corrected' ELSE admin_notes || '; auto-corrected' END,
		        activated_at = COALESCE(?, activated_at),
		        expires_at = COALESCE(?, expires_at),
		        updated_at = ?
		 WHERE id = ? AND status = ?`,
		model.StatusDelivered, activatedAt, expiresAt, now, red.ID, model.StatusApproved,
	)
	if err != nil {
		return false, txErr("correct redemption", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		// Someone else corrected it since the scan.
		return false, nil
	}

	if err := grantEntitlement(ctx, tx, red.UserID, red.ItemID, now); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, txErr("commit", err)
	}
	return true, nil
}

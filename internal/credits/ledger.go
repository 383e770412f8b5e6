// Package credits owns every mutation of a user's photoshoot balance.
package credits

import (
	"context"
	"errors"
	"fmt"

	"photoshoot-backend/internal/shared/storage/db"
)

var (
	// ErrInsufficientCredit means the conditional charge matched no row: the
	// balance was already zero or the user does not exist.
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrInvalidAmount      = errors.New("invalid amount")
)

const chargeSQL = `
UPDATE users
SET images_remaining = images_remaining - 1,
    total_images_processed = total_images_processed + $2,
    updated_at = now()
WHERE id = $1 AND images_remaining > 0`

const topUpSQL = `
UPDATE users
SET images_remaining = images_remaining + $2,
    updated_at = now()
WHERE id = $1`

// Charge consumes one photoshoot and records images produced images in a
// single conditional statement. Pass the transaction that completes the job.
func Charge(ctx context.Context, exec db.DBTX, userID string, images int) error {
	if images < 0 {
		return ErrInvalidAmount
	}
	res, err := exec.ExecContext(ctx, chargeSQL, userID, images)
	if err != nil {
		return fmt.Errorf("charge user %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("charge user %s: %w", userID, err)
	}
	if n == 0 {
		return ErrInsufficientCredit
	}
	return nil
}

// TopUp adds purchased photoshoots to the balance.
func TopUp(ctx context.Context, exec db.DBTX, userID string, photoshoots int) error {
	if photoshoots <= 0 {
		return ErrInvalidAmount
	}
	res, err := exec.ExecContext(ctx, topUpSQL, userID, photoshoots)
	if err != nil {
		return fmt.Errorf("top up user %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("top up user %s: %w", userID, err)
	}
	if n == 0 {
		return fmt.Errorf("top up user %s: no such user", userID)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordSuccess resets the provider's consecutive-failure counter and
// reports whether the counter was non-zero, which callers use to emit a
// provider_recovered event. The read and write run in one immediate
// transaction so a concurrent failure on the same provider cannot be lost.
// The blacklist expiry is left alone; it only matters while in the future.
func (s *Store) RecordSuccess(ctx context.Context, providerID int64) (bool, error) {
	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var failures int64
	err = tx.QueryRowContext(ctx,
		"SELECT consecutive_failures FROM providers WHERE id = ?", providerID).Scan(&failures)
	if errors.Is(err, sql.ErrNoRows) {
		// Provider deleted mid-request; nothing to record.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("record success: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE providers SET consecutive_failures = 0, updated_at = ? WHERE id = ?",
		now, providerID); err != nil {
		return false, fmt.Errorf("record success: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return failures > 0, nil
}

// RecordFailure increments the provider's consecutive-failure counter, and
// once the counter reaches the provider's threshold it sets
// blacklisted_until to now + blacklist_minutes*60. The returned bool is true
// exactly on the call that crosses the threshold: of two concurrent
// failures, only one observes the crossing, so callers emit a single
// provider_blacklisted event. The provider name is returned for that event.
func (s *Store) RecordFailure(ctx context.Context, providerID int64) (bool, string, error) {
	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, "", err
	}
	defer tx.Rollback()

	var (
		failures  int64
		threshold int64
		minutes   int64
		name      string
	)
	err = tx.QueryRowContext(ctx,
		"SELECT consecutive_failures, failure_threshold, blacklist_minutes, name FROM providers WHERE id = ?",
		providerID).Scan(&failures, &threshold, &minutes, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("record failure: %w", err)
	}

	newFailures := failures + 1
	crossed := newFailures >= threshold && failures < threshold
	blacklistedUntil := int64(0)

	if newFailures >= threshold {
		blacklistedUntil = now + minutes*60
		_, err = tx.ExecContext(ctx,
			"UPDATE providers SET consecutive_failures = ?, blacklisted_until = ?, updated_at = ? WHERE id = ?",
			newFailures, blacklistedUntil, now, providerID)
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE providers SET consecutive_failures = ?, updated_at = ? WHERE id = ?",
			newFailures, now, providerID)
	}
	if err != nil {
		return false, "", fmt.Errorf("record failure: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, "", err
	}

	if newFailures >= threshold {
		s.logger.Warn("provider blacklisted after consecutive failures",
			"provider_id", providerID,
			"failures", newFailures,
			"blacklisted_until", blacklistedUntil,
		)
	}
	return crossed, name, nil
}

// ResetFailures clears the failure counter and any blacklist expiry. This is
// the operator action; the gateway never clears a blacklist on its own.
func (s *Store) ResetFailures(ctx context.Context, providerID int64) error {
	now := time.Now().Unix()
	if _, err := s.db.ExecContext(ctx,
		"UPDATE providers SET consecutive_failures = 0, blacklisted_until = NULL, updated_at = ? WHERE id = ?",
		now, providerID); err != nil {
		return fmt.Errorf("reset failures: %w", err)
	}
	return nil
}

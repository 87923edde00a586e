package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RestorePendingEntries moves entries stuck in the reviewing state back to
// pending. Called on startup so an interrupted review can resume.
func (s *Store) RestorePendingEntries(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE art_queue SET status = ?, updated_at = ? WHERE status = ?`,
		StatusPending, s.now().UTC().Format(time.RFC3339Nano), StatusReviewing)
	if err != nil {
		return 0, fmt.Errorf("restore pending entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

// PruneInactive removes terminal entries older than the retention window.
// Entries that still carry a pending art item are kept regardless of age.
func (s *Store) PruneInactive(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := s.now().UTC().Add(-retention).Format(time.RFC3339Nano)

	removed := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM art_queue
             WHERE status IN (?, ?, ?, ?)
               AND updated_at < ?
               AND NOT EXISTS (
                   SELECT 1 FROM art_items
                   WHERE art_items.queue_id = art_queue.id AND art_items.status = ?
               )`,
			StatusCompleted, StatusSkipped, StatusCancelled, StatusError,
			cutoff, ItemPending)
		if err != nil {
			return fmt.Errorf("prune inactive: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		removed = int(affected)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// ClearTerminal removes every terminal entry regardless of age.
func (s *Store) ClearTerminal(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM art_queue WHERE status IN (?, ?, ?, ?)`,
		StatusCompleted, StatusSkipped, StatusCancelled, StatusError)
	if err != nil {
		return 0, fmt.Errorf("clear terminal entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

// ClearAll empties the queue and its art items. Sessions are untouched.
func (s *Store) ClearAll(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM art_queue`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

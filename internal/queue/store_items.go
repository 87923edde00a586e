package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"artgrab/internal/media"
	"artgrab/internal/services"
)

const itemColumns = "id, queue_id, art_type, baseline_url, current_url, selected_url, review_mode, requires_manual, auto_applied, status, updated_at"

// ArtItemsFor loads the art-type slots for a set of queue entries, keyed by
// queue id.
func (s *Store) ArtItemsFor(ctx context.Context, queueIDs []int64) (map[int64][]*ArtItem, error) {
	result := make(map[int64][]*ArtItem, len(queueIDs))
	if len(queueIDs) == 0 {
		return result, nil
	}

	args := make([]any, len(queueIDs))
	for i, id := range queueIDs {
		args[i] = id
	}
	query := `SELECT ` + itemColumns + ` FROM art_items WHERE queue_id IN (` +
		makePlaceholders(len(queueIDs)) + `) ORDER BY queue_id, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load art items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanArtItem(rows)
		if err != nil {
			return nil, err
		}
		result[item.QueueID] = append(result[item.QueueID], item)
	}
	return result, rows.Err()
}

// GetArtItem fetches one art-type slot by identifier.
func (s *Store) GetArtItem(ctx context.Context, id int64) (*ArtItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM art_items WHERE id = ?`, id)
	item, err := scanArtItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get art item: %w", err)
	}
	return item, nil
}

// SetArtItemStatus transitions one art-type slot.
func (s *Store) SetArtItemStatus(ctx context.Context, id int64, status ItemStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE art_items SET status = ?, updated_at = ? WHERE id = ?`,
		status, s.now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("set art item status: %w", err)
	}
	return nil
}

// MarkArtItemSelected records the chosen artwork URL for a slot and completes
// it. autoApplied distinguishes unattended selections from reviewed ones. Only
// a pending slot can be resolved; anything else returns services.ErrStale.
func (s *Store) MarkArtItemSelected(ctx context.Context, id int64, url string, autoApplied bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE art_items SET selected_url = ?, auto_applied = ?, status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		url, boolToInt(autoApplied), ItemCompleted, s.now().UTC().Format(time.RFC3339Nano), id, ItemPending)
	if err != nil {
		return fmt.Errorf("mark art item selected: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark art item selected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrStale, "queue", "mark-selected", "slot is no longer pending", nil)
	}
	return nil
}

// UpdateArtItemBaseline refreshes the recorded library state for a slot.
// Used when re-validation discovers the library changed since scan time.
func (s *Store) UpdateArtItemBaseline(ctx context.Context, id int64, currentURL string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE art_items SET current_url = ?, updated_at = ? WHERE id = ?`,
		currentURL, s.now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("update art item baseline: %w", err)
	}
	return nil
}

// PendingItemCount reports how many non-terminal art items remain on one
// entry.
func (s *Store) PendingItemCount(ctx context.Context, queueID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM art_items WHERE queue_id = ? AND status = ?`,
		queueID, ItemPending).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pending item count: %w", err)
	}
	return count, nil
}

func scanArtItem(scanner interface{ Scan(dest ...any) error }) (*ArtItem, error) {
	var (
		id             int64
		queueID        int64
		artTypeRaw     string
		baselineURL    string
		currentURL     string
		selectedURL    string
		reviewModeRaw  string
		requiresManual int
		autoApplied    int
		statusRaw      string
		updatedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&queueID,
		&artTypeRaw,
		&baselineURL,
		&currentURL,
		&selectedURL,
		&reviewModeRaw,
		&requiresManual,
		&autoApplied,
		&statusRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &ArtItem{
		ID:             id,
		QueueID:        queueID,
		ArtType:        media.ArtType(artTypeRaw),
		BaselineURL:    baselineURL,
		CurrentURL:     currentURL,
		SelectedURL:    selectedURL,
		ReviewMode:     ReviewMode(reviewModeRaw),
		RequiresManual: requiresManual != 0,
		AutoApplied:    autoApplied != 0,
		Status:         ItemStatus(statusRaw),
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

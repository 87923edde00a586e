package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"artgrab/internal/media"
)

// EnqueueBatch upserts entries and their art-type slots in one transaction.
// Enqueue is idempotent per (media type, library id): an existing entry is
// reset to pending instead of duplicated, and per-type sub-rows refresh
// their baseline and review mode in place. Returns the affected entry IDs in
// spec order.
func (s *Store) EnqueueBatch(ctx context.Context, specs []EnqueueSpec) ([]int64, error) {
	ids := make([]int64, 0, len(specs))
	if len(specs) == 0 {
		return ids, nil
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		timestamp := s.now().UTC().Format(time.RFC3339Nano)
		for _, spec := range specs {
			id, err := upsertEntry(ctx, tx, spec, timestamp)
			if err != nil {
				return err
			}
			for _, item := range spec.Items {
				if err := upsertArtItem(ctx, tx, id, item, timestamp); err != nil {
					return err
				}
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func upsertEntry(ctx context.Context, tx *sql.Tx, spec EnqueueSpec, timestamp string) (int64, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO art_queue (guid, media_type, library_id, title, year, scope, session_id, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (media_type, library_id) DO UPDATE SET
             title = excluded.title,
             year = excluded.year,
             scope = excluded.scope,
             session_id = excluded.session_id,
             status = ?,
             processed_at = NULL,
             updated_at = excluded.updated_at`,
		uuid.NewString(),
		spec.MediaType,
		spec.LibraryID,
		nullableString(spec.Title),
		spec.Year,
		spec.Scope,
		spec.SessionID,
		StatusPending,
		timestamp,
		timestamp,
		StatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert entry: %w", err)
	}

	// LastInsertId is unreliable after an upsert conflict; read the row back.
	row := tx.QueryRowContext(ctx,
		`SELECT id FROM art_queue WHERE media_type = ? AND library_id = ?`,
		spec.MediaType, spec.LibraryID)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("read entry id: %w", err)
	}
	return id, nil
}

func upsertArtItem(ctx context.Context, tx *sql.Tx, queueID int64, item ArtItemSpec, timestamp string) error {
	requiresManual := item.RequiresManual || item.ReviewMode == ModeCandidate
	_, err := tx.ExecContext(ctx,
		`INSERT INTO art_items (queue_id, art_type, baseline_url, current_url, review_mode, requires_manual, status, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (queue_id, art_type) DO UPDATE SET
             baseline_url = excluded.baseline_url,
             current_url = excluded.current_url,
             review_mode = excluded.review_mode,
             requires_manual = excluded.requires_manual,
             selected_url = '',
             auto_applied = 0,
             status = ?,
             updated_at = excluded.updated_at`,
		queueID,
		item.ArtType,
		item.BaselineURL,
		item.BaselineURL,
		item.ReviewMode,
		boolToInt(requiresManual),
		ItemPending,
		timestamp,
		ItemPending,
	)
	if err != nil {
		return fmt.Errorf("upsert art item: %w", err)
	}
	return nil
}

// GetEntry fetches a queue entry by identifier.
func (s *Store) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM art_queue WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// FindEntry fetches a queue entry by its library identity.
func (s *Store) FindEntry(ctx context.Context, mediaType media.Type, libraryID int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM art_queue WHERE media_type = ? AND library_id = ?`,
		mediaType, libraryID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find entry: %w", err)
	}
	return entry, nil
}

// NextBatch returns up to limit entries with the given status in insertion
// order, optionally filtered by media type.
func (s *Store) NextBatch(ctx context.Context, limit int, status EntryStatus, mediaTypes []media.Type) ([]*Entry, error) {
	if limit <= 0 {
		limit = 25
	}

	query := `SELECT ` + entryColumns + ` FROM art_queue WHERE status = ?`
	args := []any{status}
	if len(mediaTypes) > 0 {
		query += ` AND media_type IN (` + makePlaceholders(len(mediaTypes)) + `)`
		for _, t := range mediaTypes {
			args = append(args, t)
		}
	}
	query += ` ORDER BY id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("next batch: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ListEntries returns entries filtered by status set (or all entries when no
// status is provided), in insertion order.
func (s *Store) ListEntries(ctx context.Context, statuses ...EntryStatus) ([]*Entry, error) {
	baseQuery := `SELECT ` + entryColumns + ` FROM art_queue`
	orderClause := ` ORDER BY id`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SetEntryStatus transitions one entry, stamping the processed timestamp on
// terminal states.
func (s *Store) SetEntryStatus(ctx context.Context, id int64, status EntryStatus) error {
	now := s.now().UTC().Format(time.RFC3339Nano)
	var processedAt any
	if status.IsTerminal() {
		processedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE art_queue SET status = ?, processed_at = COALESCE(?, processed_at), updated_at = ? WHERE id = ?`,
		status, processedAt, now, id)
	if err != nil {
		return fmt.Errorf("set entry status: %w", err)
	}
	return nil
}

// CountPending reports how many entries remain pending, optionally filtered
// by media type.
func (s *Store) CountPending(ctx context.Context, mediaTypes []media.Type) (int, error) {
	query := `SELECT COUNT(1) FROM art_queue WHERE status = ?`
	args := []any{StatusPending}
	if len(mediaTypes) > 0 {
		query += ` AND media_type IN (` + makePlaceholders(len(mediaTypes)) + `)`
		for _, t := range mediaTypes {
			args = append(args, t)
		}
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return count, nil
}

// CountPendingForSession reports how many entries of one session are still
// pending.
func (s *Store) CountPendingForSession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM art_queue WHERE session_id = ? AND status IN (?, ?)`,
		sessionID, StatusPending, StatusReviewing).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count session pending: %w", err)
	}
	return count, nil
}

// Stats returns a count of entries grouped by status.
func (s *Store) Stats(ctx context.Context) (EntryStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM art_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(EntryStats)
	for rows.Next() {
		var status EntryStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// RemoveEntry deletes an entry (and, via cascade, its art items).
func (s *Store) RemoveEntry(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM art_queue WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const entryColumns = "id, guid, media_type, library_id, title, year, scope, session_id, status, processed_at, created_at, updated_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id           int64
		guid         string
		mediaTypeRaw string
		libraryID    int64
		title        sql.NullString
		year         sql.NullInt64
		scope        sql.NullString
		sessionID    sql.NullString
		statusRaw    string
		processedRaw sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&guid,
		&mediaTypeRaw,
		&libraryID,
		&title,
		&year,
		&scope,
		&sessionID,
		&statusRaw,
		&processedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:        id,
		GUID:      guid,
		MediaType: media.Type(mediaTypeRaw),
		LibraryID: libraryID,
		Title:     title.String,
		Year:      int(year.Int64),
		Scope:     scope.String,
		SessionID: sessionID.String,
		Status:    EntryStatus(statusRaw),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		entry.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		entry.UpdatedAt = updated
	}
	if processedRaw.Valid {
		if processed, err := parseTimeString(processedRaw.String); err == nil {
			entry.ProcessedAt = &processed
		}
	}
	return entry, nil
}

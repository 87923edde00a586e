package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrSessionOpen is returned when a new session would overlap an active or
// paused one on the same scope.
var ErrSessionOpen = errors.New("an open session already exists for this scope")

// CreateSession starts a new scan session. At most one open session may
// exist per scope; a conflicting open session yields ErrSessionOpen.
func (s *Store) CreateSession(ctx context.Context, session *Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Status == "" {
		session.Status = SessionActive
	}
	now := s.now().UTC()
	if session.StartedAt.IsZero() {
		session.StartedAt = now
	}
	session.LastActivity = now

	statsBlob, err := encodeStats(session.Stats)
	if err != nil {
		return fmt.Errorf("encode session stats: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var existing string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM scan_sessions WHERE scope = ? AND status IN (?, ?)`,
			session.Scope, SessionActive, SessionPaused).Scan(&existing)
		switch {
		case err == nil:
			return fmt.Errorf("%w (id %s)", ErrSessionOpen, existing)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check open session: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO scan_sessions (id, scan_type, media_types, art_types, scope, status, stats_json, started_at, last_activity_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			session.ID,
			session.ScanType,
			encodeMediaTypes(session.MediaTypes),
			encodeArtTypes(session.ArtTypes),
			session.Scope,
			session.Status,
			statsBlob,
			session.StartedAt.Format(time.RFC3339Nano),
			session.LastActivity.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
}

// FindOpenSession returns the active or paused session on a scope, or nil.
func (s *Store) FindOpenSession(ctx context.Context, scope string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM scan_sessions WHERE scope = ? AND status IN (?, ?)`,
		scope, SessionActive, SessionPaused)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open session: %w", err)
	}
	return session, nil
}

// GetSession fetches a session by identifier. Partial identifiers resolve
// when unambiguous.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM scan_sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM scan_sessions WHERE id LIKE ? ORDER BY started_at DESC LIMIT 2`,
		id+"%")
	if err != nil {
		return nil, fmt.Errorf("get session by prefix: %w", err)
	}
	defer rows.Close()

	var matches []*Session
	for rows.Next() {
		match, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("session id %q is ambiguous", id)
	}
}

// ListSessions returns sessions newest first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM scan_sessions ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// UpdateSessionStatus transitions a session, stamping the completion time on
// terminal states.
func (s *Store) UpdateSessionStatus(ctx context.Context, id string, status SessionStatus) error {
	now := s.now().UTC().Format(time.RFC3339Nano)
	var completedAt any
	if !status.Open() {
		completedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE scan_sessions SET status = ?, completed_at = COALESCE(?, completed_at), last_activity_at = ? WHERE id = ?`,
		status, completedAt, now, id)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return nil
}

// SaveSessionStats persists the counters and detail log for a session.
func (s *Store) SaveSessionStats(ctx context.Context, id string, stats SessionStats) error {
	blob, err := encodeStats(stats)
	if err != nil {
		return fmt.Errorf("encode session stats: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE scan_sessions SET stats_json = ?, last_activity_at = ? WHERE id = ?`,
		blob, s.now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("save session stats: %w", err)
	}
	return nil
}

// TouchSession bumps the last-activity timestamp.
func (s *Store) TouchSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scan_sessions SET last_activity_at = ? WHERE id = ?`,
		s.now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

const sessionColumns = "id, scan_type, media_types, art_types, scope, status, stats_json, started_at, last_activity_at, completed_at"

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id           string
		scanTypeRaw  string
		mediaTypes   string
		artTypes     string
		scope        string
		statusRaw    string
		statsBlob    string
		startedRaw   sql.NullString
		activityRaw  sql.NullString
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&scanTypeRaw,
		&mediaTypes,
		&artTypes,
		&scope,
		&statusRaw,
		&statsBlob,
		&startedRaw,
		&activityRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	session := &Session{
		ID:         id,
		ScanType:   ScanType(scanTypeRaw),
		MediaTypes: decodeMediaTypes(mediaTypes),
		ArtTypes:   decodeArtTypes(artTypes),
		Scope:      scope,
		Status:     SessionStatus(statusRaw),
		Stats:      decodeStats(statsBlob),
	}
	if started, err := parseTimeString(startedRaw.String); err == nil {
		session.StartedAt = started
	}
	if activity, err := parseTimeString(activityRaw.String); err == nil {
		session.LastActivity = activity
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			session.CompletedAt = &completed
		}
	}
	return session, nil
}

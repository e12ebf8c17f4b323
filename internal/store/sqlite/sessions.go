package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vereinswerk/portal/internal/store"
)

// PutSession inserts a new session row.
func (s *Store) PutSession(ctx context.Context, session store.Session) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO sessions (token, email, member_id, abteilung_id, expires_at, created_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		session.Token,
		strings.ToLower(session.Email),
		session.MemberID,
		session.AbteilungID,
		toMillis(session.ExpiresAt),
		toMillis(session.CreatedAt),
		toMillis(session.LastSeenAt),
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetSession loads a session by its token.
func (s *Store) GetSession(ctx context.Context, tok string) (store.Session, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT token, email, member_id, abteilung_id, expires_at, created_at, last_seen_at
		FROM sessions
		WHERE token = ?
	`, tok)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Session{}, store.ErrNotFound
		}
		return store.Session{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// ExtendSession slides a session's activity and expiry timestamps forward.
func (s *Store) ExtendSession(ctx context.Context, tok string, lastSeenAt, expiresAt time.Time) error {
	result, err := s.sqlDB.ExecContext(ctx, `
		UPDATE sessions SET last_seen_at = ?, expires_at = ? WHERE token = ?
	`, toMillis(lastSeenAt), toMillis(expiresAt), tok)
	if err != nil {
		return fmt.Errorf("extend session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("extend session: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteSession removes a session. Deleting an unknown token is not an error.
func (s *Store) DeleteSession(ctx context.Context, tok string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, tok); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all sessions that expired at or before now
// and reports how many were removed.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return int(affected), nil
}

// ListSessionsByEmail returns the live sessions for an email, most recently
// seen first.
func (s *Store) ListSessionsByEmail(ctx context.Context, email string, now time.Time) ([]store.Session, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT token, email, member_id, abteilung_id, expires_at, created_at, last_seen_at
		FROM sessions
		WHERE email = ? AND expires_at > ?
		ORDER BY last_seen_at DESC
	`, strings.ToLower(email), toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []store.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSessionsByEmail revokes every session belonging to an email and
// reports how many were removed.
func (s *Store) DeleteSessionsByEmail(ctx context.Context, email string) (int, error) {
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE email = ?`, strings.ToLower(email))
	if err != nil {
		return 0, fmt.Errorf("delete sessions by email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete sessions by email: %w", err)
	}
	return int(affected), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (store.Session, error) {
	var session store.Session
	var expiresAt, createdAt, lastSeenAt int64
	err := row.Scan(
		&session.Token,
		&session.Email,
		&session.MemberID,
		&session.AbteilungID,
		&expiresAt,
		&createdAt,
		&lastSeenAt,
	)
	if err != nil {
		return store.Session{}, err
	}
	session.ExpiresAt = fromMillis(expiresAt)
	session.CreatedAt = fromMillis(createdAt)
	session.LastSeenAt = fromMillis(lastSeenAt)
	return session, nil
}

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

// PutResetToken inserts a new password reset token.
func (s *Store) PutResetToken(ctx context.Context, token store.ResetToken) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO password_reset_tokens (token, email, created_at, expires_at, used_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		token.Token,
		strings.ToLower(token.Email),
		toMillis(token.CreatedAt),
		toMillis(token.ExpiresAt),
		toMillisPtr(token.UsedAt),
	)
	if err != nil {
		return fmt.Errorf("put reset token: %w", err)
	}
	return nil
}

// GetResetToken loads a reset token by its value.
func (s *Store) GetResetToken(ctx context.Context, value string) (store.ResetToken, error) {
	var token store.ResetToken
	var createdAt, expiresAt int64
	var usedAt sql.NullInt64
	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT token, email, created_at, expires_at, used_at
		FROM password_reset_tokens
		WHERE token = ?
	`, value).Scan(&token.Token, &token.Email, &createdAt, &expiresAt, &usedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ResetToken{}, store.ErrNotFound
		}
		return store.ResetToken{}, fmt.Errorf("get reset token: %w", err)
	}
	token.CreatedAt = fromMillis(createdAt)
	token.ExpiresAt = fromMillis(expiresAt)
	if usedAt.Valid {
		token.UsedAt = fromMillisPtr(&usedAt.Int64)
	}
	return token, nil
}

// MarkResetTokenUsed records the moment a token was consumed.
func (s *Store) MarkResetTokenUsed(ctx context.Context, value string, usedAt time.Time) error {
	result, err := s.sqlDB.ExecContext(ctx, `
		UPDATE password_reset_tokens SET used_at = ? WHERE token = ? AND used_at IS NULL
	`, toMillis(usedAt), value)
	if err != nil {
		return fmt.Errorf("mark reset token used: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark reset token used: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteUnusedResetTokens removes all pending tokens for an email, so a
// freshly issued token is the only one that can complete a reset.
func (s *Store) DeleteUnusedResetTokens(ctx context.Context, email string) (int, error) {
	result, err := s.sqlDB.ExecContext(ctx, `
		DELETE FROM password_reset_tokens WHERE email = ? AND used_at IS NULL
	`, strings.ToLower(email))
	if err != nil {
		return 0, fmt.Errorf("delete unused reset tokens: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete unused reset tokens: %w", err)
	}
	return int(affected), nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vereinswerk/portal/internal/store"
)

// PutPreference inserts or replaces a user's display preferences.
func (s *Store) PutPreference(ctx context.Context, preference store.Preference) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO user_preferences (email, dark_mode, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			dark_mode = excluded.dark_mode,
			updated_at = excluded.updated_at
	`,
		strings.ToLower(preference.Email),
		boolToInt(preference.DarkMode),
		toMillis(preference.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put preference: %w", err)
	}
	return nil
}

// GetPreference loads a user's display preferences.
func (s *Store) GetPreference(ctx context.Context, email string) (store.Preference, error) {
	var preference store.Preference
	var darkMode int
	var updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT email, dark_mode, updated_at
		FROM user_preferences
		WHERE email = ?
	`, strings.ToLower(email)).Scan(&preference.Email, &darkMode, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Preference{}, store.ErrNotFound
		}
		return store.Preference{}, fmt.Errorf("get preference: %w", err)
	}
	preference.DarkMode = darkMode != 0
	preference.UpdatedAt = fromMillis(updatedAt)
	return preference, nil
}

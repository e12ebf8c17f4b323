package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vereinswerk/portal/internal/store"
)

// PutCredential atomically replaces the credential row for its email.
func (s *Store) PutCredential(ctx context.Context, credential store.Credential) error {
	email := strings.ToLower(strings.TrimSpace(credential.Email))
	if email == "" {
		return fmt.Errorf("credential email is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO credentials (email, password_hash, salt, iterations, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			password_hash = excluded.password_hash,
			salt = excluded.salt,
			iterations = excluded.iterations,
			updated_at = excluded.updated_at
	`,
		email,
		credential.PasswordHash,
		credential.Salt,
		credential.Iterations,
		toMillis(credential.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put credential: %w", err)
	}
	return nil
}

// GetCredential loads the credential for an email.
func (s *Store) GetCredential(ctx context.Context, email string) (store.Credential, error) {
	var credential store.Credential
	var updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT email, password_hash, salt, iterations, updated_at
		FROM credentials
		WHERE email = ?
	`, strings.ToLower(strings.TrimSpace(email))).Scan(
		&credential.Email,
		&credential.PasswordHash,
		&credential.Salt,
		&credential.Iterations,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Credential{}, store.ErrNotFound
		}
		return store.Credential{}, fmt.Errorf("get credential: %w", err)
	}
	credential.UpdatedAt = fromMillis(updatedAt)
	return credential, nil
}

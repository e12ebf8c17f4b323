package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vereinswerk/portal/internal/store"
)

// PutNotification inserts a new notification.
func (s *Store) PutNotification(ctx context.Context, notification store.Notification) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO notifications (id, title, body_text, body_html, created_at, created_by, send_email, targets_json, attachments_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		notification.ID,
		notification.Title,
		notification.BodyText,
		notification.BodyHTML,
		toMillis(notification.CreatedAt),
		notification.CreatedBy,
		boolToInt(notification.SendEmail),
		notification.TargetsJSON,
		notification.AttachmentsJSON,
	)
	if err != nil {
		return fmt.Errorf("put notification: %w", err)
	}
	return nil
}

// GetNotification loads a notification by ID.
func (s *Store) GetNotification(ctx context.Context, id string) (store.Notification, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, title, body_text, body_html, created_at, created_by, send_email, targets_json, attachments_json
		FROM notifications
		WHERE id = ?
	`, id)
	notification, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Notification{}, store.ErrNotFound
		}
		return store.Notification{}, fmt.Errorf("get notification: %w", err)
	}
	return notification, nil
}

// ListNotifications returns all notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context) ([]store.Notification, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, title, body_text, body_html, created_at, created_by, send_email, targets_json, attachments_json
		FROM notifications
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []store.Notification
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("list notifications: %w", err)
		}
		notifications = append(notifications, notification)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// DeleteNotification removes a notification and its read receipts in one
// transaction.
func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notification_reads WHERE notification_id = ?`, id); err != nil {
		return fmt.Errorf("delete notification reads: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}

// PutNotificationRead records a read receipt. Re-marking an already-read
// notification moves the receipt to the new read time.
func (s *Store) PutNotificationRead(ctx context.Context, read store.NotificationRead) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO notification_reads (email, notification_id, read_at)
		VALUES (?, ?, ?)
		ON CONFLICT(email, notification_id) DO UPDATE SET read_at = excluded.read_at
	`,
		strings.ToLower(read.Email),
		read.NotificationID,
		toMillis(read.ReadAt),
	)
	if err != nil {
		return fmt.Errorf("put notification read: %w", err)
	}
	return nil
}

// ListNotificationReads returns all read receipts for an email.
func (s *Store) ListNotificationReads(ctx context.Context, email string) ([]store.NotificationRead, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT email, notification_id, read_at
		FROM notification_reads
		WHERE email = ?
	`, strings.ToLower(email))
	if err != nil {
		return nil, fmt.Errorf("list notification reads: %w", err)
	}
	defer rows.Close()

	var reads []store.NotificationRead
	for rows.Next() {
		var read store.NotificationRead
		var readAt int64
		if err := rows.Scan(&read.Email, &read.NotificationID, &readAt); err != nil {
			return nil, fmt.Errorf("list notification reads: %w", err)
		}
		read.ReadAt = fromMillis(readAt)
		reads = append(reads, read)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notification reads: %w", err)
	}
	return reads, nil
}

func scanNotification(row rowScanner) (store.Notification, error) {
	var notification store.Notification
	var createdAt int64
	var sendEmail int
	err := row.Scan(
		&notification.ID,
		&notification.Title,
		&notification.BodyText,
		&notification.BodyHTML,
		&createdAt,
		&notification.CreatedBy,
		&sendEmail,
		&notification.TargetsJSON,
		&notification.AttachmentsJSON,
	)
	if err != nil {
		return store.Notification{}, err
	}
	notification.CreatedAt = fromMillis(createdAt)
	notification.SendEmail = sendEmail != 0
	return notification, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

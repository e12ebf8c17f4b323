package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vereinswerk/portal/internal/store"
)

// PutEvent inserts or replaces an event row.
func (s *Store) PutEvent(ctx context.Context, event store.Event) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO events (id, title, location, starts_at, price_cents, description, image_path,
			is_public, target_all, target_abteilung_id, target_member_ids_json,
			created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			location = excluded.location,
			starts_at = excluded.starts_at,
			price_cents = excluded.price_cents,
			description = excluded.description,
			image_path = excluded.image_path,
			is_public = excluded.is_public,
			target_all = excluded.target_all,
			target_abteilung_id = excluded.target_abteilung_id,
			target_member_ids_json = excluded.target_member_ids_json,
			updated_at = excluded.updated_at
	`,
		event.ID,
		event.Title,
		event.Location,
		event.StartsAt,
		event.PriceCents,
		event.Description,
		event.ImagePath,
		boolToInt(event.IsPublic),
		boolToInt(event.TargetAll),
		event.TargetAbteilungID,
		event.TargetMemberIDsJSON,
		event.CreatedBy,
		toMillis(event.CreatedAt),
		toMillis(event.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put event: %w", err)
	}
	return nil
}

// GetEvent loads an event by ID.
func (s *Store) GetEvent(ctx context.Context, id string) (store.Event, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, title, location, starts_at, price_cents, description, image_path,
			is_public, target_all, target_abteilung_id, target_member_ids_json,
			created_by, created_at, updated_at
		FROM events
		WHERE id = ?
	`, id)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Event{}, store.ErrNotFound
		}
		return store.Event{}, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// ListEvents lists all events, latest start first.
func (s *Store) ListEvents(ctx context.Context) ([]store.Event, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, title, location, starts_at, price_cents, description, image_path,
			is_public, target_all, target_abteilung_id, target_member_ids_json,
			created_by, created_at, updated_at
		FROM events
		ORDER BY starts_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []store.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// DeleteEvent removes an event together with its registrations, poll,
// options, and votes.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var pollID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM polls WHERE event_id = ?`, id).Scan(&pollID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("delete event poll lookup: %w", err)
	}
	if pollID != "" {
		if err := deletePollTx(ctx, tx, pollID); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM event_registrations WHERE event_id = ?`, id); err != nil {
		return fmt.Errorf("delete event registrations: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// PutRegistration records an event signup. Re-registering replaces the
// earlier signup.
func (s *Store) PutRegistration(ctx context.Context, registration store.Registration) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO event_registrations (event_id, email, member_id, name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(event_id, email) DO UPDATE SET
			member_id = excluded.member_id,
			name = excluded.name,
			created_at = excluded.created_at
	`,
		registration.EventID,
		strings.ToLower(registration.Email),
		registration.MemberID,
		registration.Name,
		toMillis(registration.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put registration: %w", err)
	}
	return nil
}

// GetRegistration loads one member's signup for an event.
func (s *Store) GetRegistration(ctx context.Context, eventID, email string) (store.Registration, error) {
	var registration store.Registration
	var createdAt int64
	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT event_id, email, member_id, name, created_at
		FROM event_registrations
		WHERE event_id = ? AND email = ?
	`, eventID, strings.ToLower(email)).Scan(
		&registration.EventID,
		&registration.Email,
		&registration.MemberID,
		&registration.Name,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Registration{}, store.ErrNotFound
		}
		return store.Registration{}, fmt.Errorf("get registration: %w", err)
	}
	registration.CreatedAt = fromMillis(createdAt)
	return registration, nil
}

// ListRegistrations lists an event's signups, newest first.
func (s *Store) ListRegistrations(ctx context.Context, eventID string) ([]store.Registration, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT event_id, email, member_id, name, created_at
		FROM event_registrations
		WHERE event_id = ?
		ORDER BY created_at DESC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var registrations []store.Registration
	for rows.Next() {
		var registration store.Registration
		var createdAt int64
		err := rows.Scan(
			&registration.EventID,
			&registration.Email,
			&registration.MemberID,
			&registration.Name,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("list registrations: %w", err)
		}
		registration.CreatedAt = fromMillis(createdAt)
		registrations = append(registrations, registration)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return registrations, nil
}

// ReplacePoll upserts an event's poll and replaces its options atomically.
// Existing votes are cleared because they may reference removed options.
func (s *Store) ReplacePoll(ctx context.Context, poll store.Poll, options []store.PollOption) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace poll: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var priorID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM polls WHERE event_id = ?`, poll.EventID).Scan(&priorID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("replace poll lookup: %w", err)
	}
	if priorID != "" {
		if err := deletePollTx(ctx, tx, priorID); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO polls (id, event_id, question, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		poll.ID,
		poll.EventID,
		poll.Question,
		toMillis(poll.CreatedAt),
		toMillis(poll.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("replace poll insert: %w", err)
	}
	for _, option := range options {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO poll_options (id, poll_id, text) VALUES (?, ?, ?)
		`, option.ID, poll.ID, option.Text)
		if err != nil {
			return fmt.Errorf("replace poll options: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace poll: %w", err)
	}
	return nil
}

// GetPollByEvent loads an event's poll with its options.
func (s *Store) GetPollByEvent(ctx context.Context, eventID string) (store.Poll, []store.PollOption, error) {
	var poll store.Poll
	var createdAt, updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, event_id, question, created_at, updated_at
		FROM polls
		WHERE event_id = ?
	`, eventID).Scan(&poll.ID, &poll.EventID, &poll.Question, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Poll{}, nil, store.ErrNotFound
		}
		return store.Poll{}, nil, fmt.Errorf("get poll: %w", err)
	}
	poll.CreatedAt = fromMillis(createdAt)
	poll.UpdatedAt = fromMillis(updatedAt)

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, poll_id, text FROM poll_options WHERE poll_id = ? ORDER BY rowid
	`, poll.ID)
	if err != nil {
		return store.Poll{}, nil, fmt.Errorf("get poll options: %w", err)
	}
	defer rows.Close()

	var options []store.PollOption
	for rows.Next() {
		var option store.PollOption
		if err := rows.Scan(&option.ID, &option.PollID, &option.Text); err != nil {
			return store.Poll{}, nil, fmt.Errorf("get poll options: %w", err)
		}
		options = append(options, option)
	}
	if err := rows.Err(); err != nil {
		return store.Poll{}, nil, fmt.Errorf("get poll options: %w", err)
	}
	return poll, options, nil
}

// GetPollOption loads one option of a poll.
func (s *Store) GetPollOption(ctx context.Context, pollID, optionID string) (store.PollOption, error) {
	var option store.PollOption
	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, poll_id, text FROM poll_options WHERE poll_id = ? AND id = ?
	`, pollID, optionID).Scan(&option.ID, &option.PollID, &option.Text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.PollOption{}, store.ErrNotFound
		}
		return store.PollOption{}, fmt.Errorf("get poll option: %w", err)
	}
	return option, nil
}

// PutPollVote records or changes one member's vote.
func (s *Store) PutPollVote(ctx context.Context, vote store.PollVote) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO poll_votes (poll_id, email, option_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(poll_id, email) DO UPDATE SET
			option_id = excluded.option_id,
			created_at = excluded.created_at
	`,
		vote.PollID,
		strings.ToLower(vote.Email),
		vote.OptionID,
		toMillis(vote.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put poll vote: %w", err)
	}
	return nil
}

// GetPollVote loads one member's vote for a poll.
func (s *Store) GetPollVote(ctx context.Context, pollID, email string) (store.PollVote, error) {
	var vote store.PollVote
	var createdAt int64
	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT poll_id, email, option_id, created_at
		FROM poll_votes
		WHERE poll_id = ? AND email = ?
	`, pollID, strings.ToLower(email)).Scan(&vote.PollID, &vote.Email, &vote.OptionID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.PollVote{}, store.ErrNotFound
		}
		return store.PollVote{}, fmt.Errorf("get poll vote: %w", err)
	}
	vote.CreatedAt = fromMillis(createdAt)
	return vote, nil
}

func scanEvent(row rowScanner) (store.Event, error) {
	var event store.Event
	var isPublic, targetAll int
	var createdAt, updatedAt int64
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Location,
		&event.StartsAt,
		&event.PriceCents,
		&event.Description,
		&event.ImagePath,
		&isPublic,
		&targetAll,
		&event.TargetAbteilungID,
		&event.TargetMemberIDsJSON,
		&event.CreatedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return store.Event{}, err
	}
	event.IsPublic = isPublic != 0
	event.TargetAll = targetAll != 0
	event.CreatedAt = fromMillis(createdAt)
	event.UpdatedAt = fromMillis(updatedAt)
	return event, nil
}

func deletePollTx(ctx context.Context, tx *sql.Tx, pollID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM poll_votes WHERE poll_id = ?`, pollID); err != nil {
		return fmt.Errorf("delete poll votes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM poll_options WHERE poll_id = ?`, pollID); err != nil {
		return fmt.Errorf("delete poll options: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM polls WHERE id = ?`, pollID); err != nil {
		return fmt.Errorf("delete poll: %w", err)
	}
	return nil
}

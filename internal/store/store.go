// Package store defines the portal's local persistence records and interfaces.
//
// The local store carries everything the external membership directory does
// not own: credentials, sessions, reset tokens, notification state, events,
// and user preferences.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// Credential stores one member's portal password, self-describing so the
// hashing cost can be raised without invalidating existing rows.
type Credential struct {
	Email        string
	PasswordHash string
	Salt         string
	Iterations   int
	UpdatedAt    time.Time
}

// Session is one sliding-expiration login session. MemberID and AbteilungID
// cache directory state as of login time.
type Session struct {
	Token       string
	Email       string
	MemberID    string
	AbteilungID string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	LastSeenAt  time.Time
}

// ResetToken is one single-use, time-boxed password reset token.
type ResetToken struct {
	Token     string
	Email     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UsedAt    *time.Time
}

// Notification is one broadcast message. Immutable after creation except
// deletion; targeting and attachment metadata are stored as JSON.
type Notification struct {
	ID              string
	Title           string
	BodyText        string
	BodyHTML        string
	CreatedAt       time.Time
	CreatedBy       string
	SendEmail       bool
	TargetsJSON     string
	AttachmentsJSON string
}

// NotificationRead is one per-user read receipt; absence means unread.
type NotificationRead struct {
	Email          string
	NotificationID string
	ReadAt         time.Time
}

// Event is one portal event with its visibility targeting.
type Event struct {
	ID                  string
	Title               string
	Location            string
	StartsAt            string
	PriceCents          int
	Description         string
	ImagePath           string
	IsPublic            bool
	TargetAll           bool
	TargetAbteilungID   string
	TargetMemberIDsJSON string
	CreatedBy           string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Registration is one member's event signup, keyed by (event, email).
type Registration struct {
	EventID   string
	Email     string
	MemberID  string
	Name      string
	CreatedAt time.Time
}

// Poll is an optional per-event vote; at most one per event.
type Poll struct {
	ID        string
	EventID   string
	Question  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PollOption is one answer choice of a poll.
type PollOption struct {
	ID     string
	PollID string
	Text   string
}

// PollVote is one member's poll answer, keyed by (poll, email).
type PollVote struct {
	PollID    string
	Email     string
	OptionID  string
	CreatedAt time.Time
}

// Preference stores per-user portal display preferences.
type Preference struct {
	Email     string
	DarkMode  bool
	UpdatedAt time.Time
}

// CredentialStore persists portal credentials.
type CredentialStore interface {
	// PutCredential atomically replaces the credential row for its email.
	PutCredential(ctx context.Context, credential Credential) error
	GetCredential(ctx context.Context, email string) (Credential, error)
}

// SessionStore persists login sessions.
type SessionStore interface {
	PutSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, tok string) (Session, error)
	// ExtendSession slides a session forward; extending a missing session
	// reports ErrNotFound.
	ExtendSession(ctx context.Context, tok string, lastSeenAt, expiresAt time.Time) error
	// DeleteSession is idempotent; deleting a missing token is not an error.
	DeleteSession(ctx context.Context, tok string) error
	// DeleteExpiredSessions removes every session expiring at or before now
	// and returns the number removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
	// ListSessionsByEmail lists sessions still alive at now, most recently
	// seen first.
	ListSessionsByEmail(ctx context.Context, email string, now time.Time) ([]Session, error)
	DeleteSessionsByEmail(ctx context.Context, email string) (int, error)
}

// ResetTokenStore persists password reset tokens.
type ResetTokenStore interface {
	PutResetToken(ctx context.Context, token ResetToken) error
	GetResetToken(ctx context.Context, tok string) (ResetToken, error)
	// MarkResetTokenUsed consumes a token; a consumed token must never
	// authorize another reset.
	MarkResetTokenUsed(ctx context.Context, tok string, usedAt time.Time) error
	// DeleteUnusedResetTokens removes every unused token for an email so a
	// freshly issued token is the sole authority.
	DeleteUnusedResetTokens(ctx context.Context, email string) (int, error)
}

// NotificationStore persists notifications and read receipts.
type NotificationStore interface {
	PutNotification(ctx context.Context, notification Notification) error
	GetNotification(ctx context.Context, id string) (Notification, error)
	// ListNotifications lists all notifications, newest first.
	ListNotifications(ctx context.Context) ([]Notification, error)
	// DeleteNotification removes a notification and its read receipts.
	DeleteNotification(ctx context.Context, id string) error
	PutNotificationRead(ctx context.Context, read NotificationRead) error
	ListNotificationReads(ctx context.Context, email string) ([]NotificationRead, error)
}

// EventStore persists events, registrations, and polls.
type EventStore interface {
	PutEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	// ListEvents lists all events, latest start first.
	ListEvents(ctx context.Context) ([]Event, error)
	// DeleteEvent removes an event with its registrations and poll state.
	DeleteEvent(ctx context.Context, id string) error

	PutRegistration(ctx context.Context, registration Registration) error
	GetRegistration(ctx context.Context, eventID, email string) (Registration, error)
	// ListRegistrations lists an event's signups, newest first.
	ListRegistrations(ctx context.Context, eventID string) ([]Registration, error)

	// ReplacePoll atomically upserts an event's poll and replaces its
	// options; existing votes are cleared.
	ReplacePoll(ctx context.Context, poll Poll, options []PollOption) error
	// GetPollByEvent loads an event's poll with its options.
	GetPollByEvent(ctx context.Context, eventID string) (Poll, []PollOption, error)
	GetPollOption(ctx context.Context, pollID, optionID string) (PollOption, error)
	PutPollVote(ctx context.Context, vote PollVote) error
	GetPollVote(ctx context.Context, pollID, email string) (PollVote, error)
}

// PreferenceStore persists user display preferences.
type PreferenceStore interface {
	PutPreference(ctx context.Context, preference Preference) error
	GetPreference(ctx context.Context, email string) (Preference, error)
}

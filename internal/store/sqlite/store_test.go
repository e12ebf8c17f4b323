package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vereinswerk/portal/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "portal.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestCredentialUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	cred := store.Credential{
		Email:        "Anna@Verein.example",
		PasswordHash: "aa",
		Salt:         "bb",
		Iterations:   210000,
		UpdatedAt:    now,
	}
	if err := s.PutCredential(ctx, cred); err != nil {
		t.Fatalf("put credential: %v", err)
	}

	got, err := s.GetCredential(ctx, "anna@verein.example")
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if got.Email != "anna@verein.example" {
		t.Fatalf("email not normalized: %q", got.Email)
	}
	if got.Iterations != 210000 || !got.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected credential: %+v", got)
	}

	cred.PasswordHash = "cc"
	cred.Iterations = 400000
	if err := s.PutCredential(ctx, cred); err != nil {
		t.Fatalf("upsert credential: %v", err)
	}
	got, err = s.GetCredential(ctx, "anna@verein.example")
	if err != nil {
		t.Fatalf("get credential after upsert: %v", err)
	}
	if got.PasswordHash != "cc" || got.Iterations != 400000 {
		t.Fatalf("upsert did not replace: %+v", got)
	}

	if _, err := s.GetCredential(ctx, "missing@verein.example"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	session := store.Session{
		Token:       "tok-1",
		Email:       "anna@verein.example",
		MemberID:    "123",
		AbteilungID: "5",
		ExpiresAt:   now.Add(30 * 24 * time.Hour),
		CreatedAt:   now,
		LastSeenAt:  now,
	}
	if err := s.PutSession(ctx, session); err != nil {
		t.Fatalf("put session: %v", err)
	}

	got, err := s.GetSession(ctx, "tok-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.MemberID != "123" || got.AbteilungID != "5" {
		t.Fatalf("cached directory fields lost: %+v", got)
	}

	seen := now.Add(time.Hour)
	expiry := seen.Add(30 * 24 * time.Hour)
	if err := s.ExtendSession(ctx, "tok-1", seen, expiry); err != nil {
		t.Fatalf("extend session: %v", err)
	}
	got, err = s.GetSession(ctx, "tok-1")
	if err != nil {
		t.Fatalf("get extended session: %v", err)
	}
	if !got.LastSeenAt.Equal(seen) || !got.ExpiresAt.Equal(expiry) {
		t.Fatalf("extend did not slide timestamps: %+v", got)
	}

	if err := s.ExtendSession(ctx, "missing", seen, expiry); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound extending missing session, got %v", err)
	}

	if err := s.DeleteSession(ctx, "missing"); err != nil {
		t.Fatalf("deleting missing session should be idempotent: %v", err)
	}
}

func TestDeleteExpiredSessions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	for _, session := range []store.Session{
		{Token: "live", Email: "a@verein.example", ExpiresAt: now.Add(time.Hour), CreatedAt: now, LastSeenAt: now},
		{Token: "dead-1", Email: "a@verein.example", ExpiresAt: now.Add(-time.Minute), CreatedAt: now, LastSeenAt: now},
		{Token: "dead-2", Email: "b@verein.example", ExpiresAt: now.Add(-time.Hour), CreatedAt: now, LastSeenAt: now},
	} {
		if err := s.PutSession(ctx, session); err != nil {
			t.Fatalf("put session %s: %v", session.Token, err)
		}
	}

	removed, err := s.DeleteExpiredSessions(ctx, now)
	if err != nil {
		t.Fatalf("delete expired sessions: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if _, err := s.GetSession(ctx, "live"); err != nil {
		t.Fatalf("live session removed: %v", err)
	}
}

func TestListAndDeleteSessionsByEmail(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	for i, tok := range []string{"old", "new"} {
		session := store.Session{
			Token:      tok,
			Email:      "anna@verein.example",
			ExpiresAt:  now.Add(time.Hour),
			CreatedAt:  now,
			LastSeenAt: now.Add(time.Duration(i) * time.Minute),
		}
		if err := s.PutSession(ctx, session); err != nil {
			t.Fatalf("put session %s: %v", tok, err)
		}
	}
	expired := store.Session{Token: "expired", Email: "anna@verein.example", ExpiresAt: now.Add(-time.Hour), CreatedAt: now, LastSeenAt: now}
	if err := s.PutSession(ctx, expired); err != nil {
		t.Fatalf("put expired session: %v", err)
	}

	sessions, err := s.ListSessionsByEmail(ctx, "Anna@verein.example", now)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	if sessions[0].Token != "new" || sessions[1].Token != "old" {
		t.Fatalf("sessions not ordered by last_seen_at desc: %s, %s", sessions[0].Token, sessions[1].Token)
	}

	removed, err := s.DeleteSessionsByEmail(ctx, "anna@verein.example")
	if err != nil {
		t.Fatalf("delete sessions by email: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}
}

func TestResetTokenSingleUse(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	token := store.ResetToken{
		Token:     "reset-1",
		Email:     "anna@verein.example",
		ExpiresAt: now.Add(24 * time.Hour),
		CreatedAt: now,
	}
	if err := s.PutResetToken(ctx, token); err != nil {
		t.Fatalf("put reset token: %v", err)
	}

	got, err := s.GetResetToken(ctx, "reset-1")
	if err != nil {
		t.Fatalf("get reset token: %v", err)
	}
	if got.UsedAt != nil {
		t.Fatalf("fresh token marked used: %+v", got)
	}

	usedAt := now.Add(time.Minute)
	if err := s.MarkResetTokenUsed(ctx, "reset-1", usedAt); err != nil {
		t.Fatalf("mark reset token used: %v", err)
	}
	got, err = s.GetResetToken(ctx, "reset-1")
	if err != nil {
		t.Fatalf("get used reset token: %v", err)
	}
	if got.UsedAt == nil || !got.UsedAt.Equal(usedAt) {
		t.Fatalf("used_at not recorded: %+v", got)
	}

	// Marking twice must fail so a consumed token never authorizes again.
	if err := s.MarkResetTokenUsed(ctx, "reset-1", usedAt); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound re-marking token, got %v", err)
	}
}

func TestDeleteUnusedResetTokens(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	used := store.ResetToken{Token: "used", Email: "anna@verein.example", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	pending := store.ResetToken{Token: "pending", Email: "anna@verein.example", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	other := store.ResetToken{Token: "other", Email: "bernd@verein.example", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	for _, tok := range []store.ResetToken{used, pending, other} {
		if err := s.PutResetToken(ctx, tok); err != nil {
			t.Fatalf("put reset token %s: %v", tok.Token, err)
		}
	}
	if err := s.MarkResetTokenUsed(ctx, "used", now); err != nil {
		t.Fatalf("mark used: %v", err)
	}

	removed, err := s.DeleteUnusedResetTokens(ctx, "anna@verein.example")
	if err != nil {
		t.Fatalf("delete unused reset tokens: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := s.GetResetToken(ctx, "used"); err != nil {
		t.Fatalf("used token should survive: %v", err)
	}
	if _, err := s.GetResetToken(ctx, "other"); err != nil {
		t.Fatalf("other email's token should survive: %v", err)
	}
}

func TestNotificationDeleteCascadesReads(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	notification := store.Notification{
		ID:              "n-1",
		Title:           "Hallenbelegung",
		BodyText:        "Die Halle ist gesperrt.",
		BodyHTML:        "<p>Die Halle ist gesperrt.</p>",
		CreatedAt:       now,
		CreatedBy:       "vorstand@verein.example",
		SendEmail:       true,
		TargetsJSON:     `[{"type":"all"}]`,
		AttachmentsJSON: `[]`,
	}
	if err := s.PutNotification(ctx, notification); err != nil {
		t.Fatalf("put notification: %v", err)
	}
	read := store.NotificationRead{Email: "anna@verein.example", NotificationID: "n-1", ReadAt: now}
	if err := s.PutNotificationRead(ctx, read); err != nil {
		t.Fatalf("put read: %v", err)
	}
	// Re-marking moves the receipt to the later read time.
	read.ReadAt = now.Add(time.Hour)
	if err := s.PutNotificationRead(ctx, read); err != nil {
		t.Fatalf("re-put read: %v", err)
	}
	reads, err := s.ListNotificationReads(ctx, "anna@verein.example")
	if err != nil {
		t.Fatalf("list reads: %v", err)
	}
	if len(reads) != 1 || !reads[0].ReadAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected reads: %+v", reads)
	}

	if err := s.DeleteNotification(ctx, "n-1"); err != nil {
		t.Fatalf("delete notification: %v", err)
	}
	if _, err := s.GetNotification(ctx, "n-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("notification should be gone, got %v", err)
	}
	reads, err = s.ListNotificationReads(ctx, "anna@verein.example")
	if err != nil {
		t.Fatalf("list reads after delete: %v", err)
	}
	if len(reads) != 0 {
		t.Fatalf("read receipts should cascade: %+v", reads)
	}

	if err := s.DeleteNotification(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting missing notification, got %v", err)
	}
}

func TestListNotificationsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	for i, id := range []string{"n-old", "n-new"} {
		notification := store.Notification{
			ID:          id,
			Title:       id,
			CreatedAt:   now.Add(time.Duration(i) * time.Minute),
			CreatedBy:   "vorstand@verein.example",
			TargetsJSON: `[{"type":"all"}]`,
		}
		if err := s.PutNotification(ctx, notification); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}

	notifications, err := s.ListNotifications(ctx)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(notifications) != 2 || notifications[0].ID != "n-new" {
		t.Fatalf("unexpected order: %+v", notifications)
	}
}

func TestEventLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	event := store.Event{
		ID:                  "e-1",
		Title:               "Sommerfest",
		Location:            "Vereinsheim",
		StartsAt:            "2026-07-04T15:00",
		PriceCents:          1250,
		IsPublic:            true,
		TargetAll:           true,
		TargetMemberIDsJSON: `[]`,
		CreatedBy:           "vorstand@verein.example",
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.PutEvent(ctx, event); err != nil {
		t.Fatalf("put event: %v", err)
	}

	event.Title = "Sommerfest 2026"
	event.UpdatedAt = now.Add(time.Minute)
	if err := s.PutEvent(ctx, event); err != nil {
		t.Fatalf("upsert event: %v", err)
	}
	got, err := s.GetEvent(ctx, "e-1")
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if got.Title != "Sommerfest 2026" || got.PriceCents != 1250 || !got.IsPublic {
		t.Fatalf("unexpected event: %+v", got)
	}

	registration := store.Registration{
		EventID:   "e-1",
		Email:     "anna@verein.example",
		MemberID:  "123",
		Name:      "Anna Beispiel",
		CreatedAt: now,
	}
	if err := s.PutRegistration(ctx, registration); err != nil {
		t.Fatalf("put registration: %v", err)
	}
	// Re-registering replaces the earlier signup.
	registration.Name = "Anna B."
	registration.CreatedAt = now.Add(time.Hour)
	if err := s.PutRegistration(ctx, registration); err != nil {
		t.Fatalf("re-put registration: %v", err)
	}
	gotReg, err := s.GetRegistration(ctx, "e-1", "ANNA@verein.example")
	if err != nil {
		t.Fatalf("get registration: %v", err)
	}
	if gotReg.Name != "Anna B." || !gotReg.CreatedAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("re-registration did not replace: %+v", gotReg)
	}

	if err := s.DeleteEvent(ctx, "e-1"); err != nil {
		t.Fatalf("delete event: %v", err)
	}
	if _, err := s.GetEvent(ctx, "e-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("event should be gone, got %v", err)
	}
	registrations, err := s.ListRegistrations(ctx, "e-1")
	if err != nil {
		t.Fatalf("list registrations after delete: %v", err)
	}
	if len(registrations) != 0 {
		t.Fatalf("registrations should cascade: %+v", registrations)
	}
}

func TestReplacePollClearsVotes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	event := store.Event{ID: "e-1", Title: "Sommerfest", StartsAt: "2026-07-04T15:00", TargetAll: true, TargetMemberIDsJSON: `[]`, CreatedBy: "vorstand@verein.example", CreatedAt: now, UpdatedAt: now}
	if err := s.PutEvent(ctx, event); err != nil {
		t.Fatalf("put event: %v", err)
	}

	poll := store.Poll{ID: "p-1", EventID: "e-1", Question: "Essen?", CreatedAt: now, UpdatedAt: now}
	options := []store.PollOption{
		{ID: "o-1", PollID: "p-1", Text: "Grillen"},
		{ID: "o-2", PollID: "p-1", Text: "Buffet"},
	}
	if err := s.ReplacePoll(ctx, poll, options); err != nil {
		t.Fatalf("replace poll: %v", err)
	}
	vote := store.PollVote{PollID: "p-1", Email: "anna@verein.example", OptionID: "o-1", CreatedAt: now}
	if err := s.PutPollVote(ctx, vote); err != nil {
		t.Fatalf("put vote: %v", err)
	}

	// Editing the poll swaps options and drops stale votes.
	poll2 := store.Poll{ID: "p-2", EventID: "e-1", Question: "Getränke?", CreatedAt: now, UpdatedAt: now.Add(time.Minute)}
	options2 := []store.PollOption{{ID: "o-3", PollID: "p-2", Text: "Limo"}}
	if err := s.ReplacePoll(ctx, poll2, options2); err != nil {
		t.Fatalf("replace poll again: %v", err)
	}

	gotPoll, gotOptions, err := s.GetPollByEvent(ctx, "e-1")
	if err != nil {
		t.Fatalf("get poll by event: %v", err)
	}
	if gotPoll.ID != "p-2" || gotPoll.Question != "Getränke?" {
		t.Fatalf("unexpected poll: %+v", gotPoll)
	}
	if len(gotOptions) != 1 || gotOptions[0].ID != "o-3" {
		t.Fatalf("unexpected options: %+v", gotOptions)
	}
	if _, err := s.GetPollVote(ctx, "p-1", "anna@verein.example"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("old vote should be cleared, got %v", err)
	}

	if _, err := s.GetPollOption(ctx, "p-2", "o-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("option from prior poll should not resolve, got %v", err)
	}

	// Changing a vote replaces the prior choice.
	if err := s.PutPollVote(ctx, store.PollVote{PollID: "p-2", Email: "anna@verein.example", OptionID: "o-3", CreatedAt: now}); err != nil {
		t.Fatalf("put new vote: %v", err)
	}
	gotVote, err := s.GetPollVote(ctx, "p-2", "anna@verein.example")
	if err != nil {
		t.Fatalf("get vote: %v", err)
	}
	if gotVote.OptionID != "o-3" {
		t.Fatalf("unexpected vote: %+v", gotVote)
	}
}

func TestPreferences(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if _, err := s.GetPreference(ctx, "anna@verein.example"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	preference := store.Preference{Email: "anna@verein.example", DarkMode: true, UpdatedAt: now}
	if err := s.PutPreference(ctx, preference); err != nil {
		t.Fatalf("put preference: %v", err)
	}
	got, err := s.GetPreference(ctx, "Anna@verein.example")
	if err != nil {
		t.Fatalf("get preference: %v", err)
	}
	if !got.DarkMode {
		t.Fatalf("dark mode not persisted: %+v", got)
	}

	preference.DarkMode = false
	preference.UpdatedAt = now.Add(time.Minute)
	if err := s.PutPreference(ctx, preference); err != nil {
		t.Fatalf("upsert preference: %v", err)
	}
	got, err = s.GetPreference(ctx, "anna@verein.example")
	if err != nil {
		t.Fatalf("get preference after upsert: %v", err)
	}
	if got.DarkMode {
		t.Fatalf("upsert did not replace: %+v", got)
	}
}

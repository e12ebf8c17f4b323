package auth

import (
	"context"
	"errors"
	"time"

	perrors "github.com/vereinswerk/portal/internal/platform/errors"
	"github.com/vereinswerk/portal/internal/platform/token"

	"github.com/vereinswerk/portal/internal/store"
)

// CreateSession opens a sliding session for an authenticated email. The
// member ID and department are cached as of login and refresh on re-login.
func (s *Service) CreateSession(ctx context.Context, email, memberID, abteilungID string) (store.Session, error) {
	tok, err := token.New()
	if err != nil {
		return store.Session{}, perrors.Wrap(perrors.CodeInternal, "generate session token", err)
	}
	now := s.now().UTC()
	session := store.Session{
		Token:       tok,
		Email:       NormalizeEmail(email),
		MemberID:    memberID,
		AbteilungID: abteilungID,
		ExpiresAt:   now.Add(s.sessionTTL),
		CreatedAt:   now,
		LastSeenAt:  now,
	}
	if err := s.sessions.PutSession(ctx, session); err != nil {
		return store.Session{}, perrors.Wrap(perrors.CodeInternal, "store session", err)
	}
	return session, nil
}

// ValidateSession resolves a token to its identity and slides the expiry
// forward. Missing, unknown, and expired tokens all fail closed with
// SESSION_INVALID, as does any failure to extend.
func (s *Service) ValidateSession(ctx context.Context, tok string) (*Identity, error) {
	if tok == "" {
		return nil, perrors.New(perrors.CodeSessionInvalid, "missing session token")
	}

	session, err := s.sessions.GetSession(ctx, tok)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, perrors.New(perrors.CodeSessionInvalid, "unknown session token")
		}
		return nil, perrors.Wrap(perrors.CodeSessionInvalid, "load session", err)
	}

	now := s.now().UTC()
	if !session.ExpiresAt.After(now) {
		if err := s.sessions.DeleteSession(ctx, tok); err != nil {
			logf("delete expired session: %v", err)
		}
		return nil, perrors.New(perrors.CodeSessionInvalid, "session expired")
	}

	if err := s.sessions.ExtendSession(ctx, tok, now, now.Add(s.sessionTTL)); err != nil {
		logf("extend session: %v", err)
		return nil, perrors.Wrap(perrors.CodeSessionInvalid, "extend session", err)
	}

	return &Identity{
		Email:       session.Email,
		MemberID:    session.MemberID,
		AbteilungID: session.AbteilungID,
	}, nil
}

// DeleteSession removes a session; unknown tokens are fine.
func (s *Service) DeleteSession(ctx context.Context, tok string) error {
	if tok == "" {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, tok); err != nil {
		return perrors.Wrap(perrors.CodeInternal, "delete session", err)
	}
	return nil
}

// CleanupExpiredSessions removes all sessions past their expiry and reports
// how many were removed.
func (s *Service) CleanupExpiredSessions(ctx context.Context) (int, error) {
	removed, err := s.sessions.DeleteExpiredSessions(ctx, s.now().UTC())
	if err != nil {
		return 0, perrors.Wrap(perrors.CodeInternal, "cleanup expired sessions", err)
	}
	return removed, nil
}

// StartCleanup runs expired-session cleanup once immediately and then on the
// given interval until ctx is done. Cleanup stays decoupled from request
// handling so request latency never depends on it.
func (s *Service) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		s.runCleanup(ctx)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runCleanup(ctx)
			}
		}
	}()
}

func (s *Service) runCleanup(ctx context.Context) {
	removed, err := s.CleanupExpiredSessions(ctx)
	if err != nil {
		logf("session cleanup: %v", err)
		return
	}
	if removed > 0 {
		logf("session cleanup removed %d expired sessions", removed)
	}
}

// ActiveSessions lists a member's live sessions, most recently seen first.
func (s *Service) ActiveSessions(ctx context.Context, email string) ([]store.Session, error) {
	sessions, err := s.sessions.ListSessionsByEmail(ctx, NormalizeEmail(email), s.now().UTC())
	if err != nil {
		return nil, perrors.Wrap(perrors.CodeInternal, "list sessions", err)
	}
	return sessions, nil
}

// RevokeAllSessions ends every session of an email, e.g. after a password
// reset.
func (s *Service) RevokeAllSessions(ctx context.Context, email string) (int, error) {
	removed, err := s.sessions.DeleteSessionsByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return 0, perrors.Wrap(perrors.CodeInternal, "revoke sessions", err)
	}
	return removed, nil
}

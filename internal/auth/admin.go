package auth

import (
	"context"
	"strings"
)

// IsAdminEmail reports whether an email administers the portal: the
// configured admin member ID, an "admin" marker in the directory flag field,
// or board department membership. Any directory failure denies.
func (s *Service) IsAdminEmail(ctx context.Context, email string) bool {
	email = NormalizeEmail(email)
	if email == "" {
		return false
	}
	signals, err := s.directory.AdminSignals(ctx, email)
	if err != nil {
		return false
	}
	if adminID := strings.TrimSpace(s.adminMemberID()); adminID != "" && signals.MemberID == adminID {
		return true
	}
	if strings.Contains(strings.ToLower(signals.FlagText), "admin") {
		return true
	}
	return signals.AbteilungID == boardAbteilungID
}

// CanAccessMember reports whether an email may act on a member record:
// administrators always, everyone else only on their own records. Fails
// closed on directory errors.
func (s *Service) CanAccessMember(ctx context.Context, email, memberID string) bool {
	if s.IsAdminEmail(ctx, email) {
		return true
	}
	owns, err := s.directory.MemberBelongsTo(ctx, NormalizeEmail(email), memberID)
	if err != nil {
		return false
	}
	return owns
}

package auth

import (
	"context"
	"errors"

	perrors "github.com/vereinswerk/portal/internal/platform/errors"
	"github.com/vereinswerk/portal/internal/platform/token"

	"github.com/vereinswerk/portal/internal/store"
)

// CreatePasswordResetToken issues a single-use, time-boxed reset token for a
// directory-known email. Issuing a new token invalidates any prior unused
// tokens for that email, so the freshest link is the sole authority.
func (s *Service) CreatePasswordResetToken(ctx context.Context, email string) (store.ResetToken, error) {
	email = NormalizeEmail(email)
	exists, err := s.directory.EmailExists(ctx, email)
	if err != nil {
		return store.ResetToken{}, err
	}
	if !exists {
		return store.ResetToken{}, perrors.New(perrors.CodeNotFound, "email not found in the member directory")
	}

	if _, err := s.resetTokens.DeleteUnusedResetTokens(ctx, email); err != nil {
		return store.ResetToken{}, perrors.Wrap(perrors.CodeInternal, "invalidate prior reset tokens", err)
	}

	value, err := token.New()
	if err != nil {
		return store.ResetToken{}, perrors.Wrap(perrors.CodeInternal, "generate reset token", err)
	}
	now := s.now().UTC()
	resetToken := store.ResetToken{
		Token:     value,
		Email:     email,
		ExpiresAt: now.Add(s.resetTokenTTL),
		CreatedAt: now,
	}
	if err := s.resetTokens.PutResetToken(ctx, resetToken); err != nil {
		return store.ResetToken{}, perrors.Wrap(perrors.CodeInternal, "store reset token", err)
	}
	return resetToken, nil
}

// ValidatePasswordResetToken checks a token without consuming it. Missing,
// expired, and already-used tokens fail identically.
func (s *Service) ValidatePasswordResetToken(ctx context.Context, value string) (store.ResetToken, error) {
	resetToken, err := s.resetTokens.GetResetToken(ctx, value)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.ResetToken{}, invalidResetToken()
		}
		return store.ResetToken{}, perrors.Wrap(perrors.CodeInternal, "load reset token", err)
	}
	if resetToken.UsedAt != nil {
		return store.ResetToken{}, invalidResetToken()
	}
	if !resetToken.ExpiresAt.After(s.now().UTC()) {
		return store.ResetToken{}, invalidResetToken()
	}
	return resetToken, nil
}

// CompletePasswordReset consumes a reset token and replaces the credential.
// A consumed token never authorizes a second reset.
func (s *Service) CompletePasswordReset(ctx context.Context, value, newPass string) error {
	if err := checkPasswordPolicy(newPass); err != nil {
		return err
	}
	resetToken, err := s.ValidatePasswordResetToken(ctx, value)
	if err != nil {
		return err
	}
	if err := s.resetTokens.MarkResetTokenUsed(ctx, value, s.now().UTC()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalidResetToken()
		}
		return perrors.Wrap(perrors.CodeInternal, "consume reset token", err)
	}
	if err := s.putPassword(ctx, resetToken.Email, newPass); err != nil {
		return err
	}
	// Reset implies the old password may be compromised.
	if _, err := s.RevokeAllSessions(ctx, resetToken.Email); err != nil {
		logf("revoke sessions after reset: %v", err)
	}
	return nil
}

func invalidResetToken() error {
	return perrors.New(perrors.CodeValidation, "reset token is invalid or expired")
}

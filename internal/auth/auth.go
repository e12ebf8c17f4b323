// Package auth implements portal authentication: password credentials,
// sliding sessions, reset tokens, and admin determination.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	perrors "github.com/vereinswerk/portal/internal/platform/errors"

	"github.com/vereinswerk/portal/internal/directory"
	"github.com/vereinswerk/portal/internal/password"
	"github.com/vereinswerk/portal/internal/store"
)

const (
	// DefaultSessionTTL is the sliding session lifetime.
	DefaultSessionTTL = 30 * 24 * time.Hour
	// DefaultResetTokenTTL bounds how long a password reset link stays valid.
	DefaultResetTokenTTL = 24 * time.Hour

	minPasswordLength = 8

	// boardAbteilungID is the department whose members administer the portal.
	boardAbteilungID = "2"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	Email       string
	MemberID    string
	AbteilungID string
}

// Config wires the auth service's dependencies.
type Config struct {
	Credentials store.CredentialStore
	Sessions    store.SessionStore
	ResetTokens store.ResetTokenStore
	Directory   directory.Directory

	// AdminMemberID resolves the configured administrator member ID at
	// call time so settings edits apply without restart. Optional.
	AdminMemberID func() string

	SessionTTL    time.Duration
	ResetTokenTTL time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service implements login, session, and password operations.
type Service struct {
	credentials store.CredentialStore
	sessions    store.SessionStore
	resetTokens store.ResetTokenStore
	directory   directory.Directory

	adminMemberID func() string
	sessionTTL    time.Duration
	resetTokenTTL time.Duration
	now           func() time.Time
}

// NewService creates an auth service, applying defaults for unset knobs.
func NewService(cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = DefaultResetTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AdminMemberID == nil {
		cfg.AdminMemberID = func() string { return "" }
	}
	return &Service{
		credentials:   cfg.Credentials,
		sessions:      cfg.Sessions,
		resetTokens:   cfg.ResetTokens,
		directory:     cfg.Directory,
		adminMemberID: cfg.AdminMemberID,
		sessionTTL:    cfg.SessionTTL,
		resetTokenTTL: cfg.ResetTokenTTL,
		now:           cfg.Now,
	}
}

// NormalizeEmail lower-cases and trims an email for use as a store key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login authenticates a member and opens a session. Unknown emails and wrong
// passwords fail identically so login cannot enumerate the directory.
func (s *Service) Login(ctx context.Context, email, pass string) (store.Session, error) {
	email = NormalizeEmail(email)
	if email == "" || pass == "" {
		return store.Session{}, perrors.New(perrors.CodeValidation, "email and password are required")
	}

	exists, err := s.directory.EmailExists(ctx, email)
	if err != nil {
		return store.Session{}, err
	}
	if !exists {
		return store.Session{}, perrors.New(perrors.CodeInvalidCredentials, "invalid credentials")
	}

	credential, err := s.credentials.GetCredential(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Session{}, perrors.New(perrors.CodeNoPasswordSet, "no portal password set for this email")
		}
		return store.Session{}, perrors.Wrap(perrors.CodeInternal, "load credential", err)
	}
	record := password.Record{
		Hash:       credential.PasswordHash,
		Salt:       credential.Salt,
		Iterations: credential.Iterations,
	}
	if !password.Verify(pass, record) {
		return store.Session{}, perrors.New(perrors.CodeInvalidCredentials, "invalid credentials")
	}

	meta, err := s.directory.MemberMeta(ctx, email)
	if err != nil && !perrors.HasCode(err, perrors.CodeNotFound) {
		return store.Session{}, err
	}

	return s.CreateSession(ctx, email, meta.MemberID, meta.AbteilungID)
}

// Logout ends a session. Logging out an unknown token succeeds.
func (s *Service) Logout(ctx context.Context, tok string) error {
	return s.DeleteSession(ctx, tok)
}

// ChangePassword replaces a member's portal password. The old password is
// verified only when a credential already exists, so first-time provisioning
// works through the same path.
func (s *Service) ChangePassword(ctx context.Context, email, oldPass, newPass string) error {
	email = NormalizeEmail(email)
	if err := checkPasswordPolicy(newPass); err != nil {
		return err
	}

	credential, err := s.credentials.GetCredential(ctx, email)
	switch {
	case err == nil:
		record := password.Record{
			Hash:       credential.PasswordHash,
			Salt:       credential.Salt,
			Iterations: credential.Iterations,
		}
		if !password.Verify(oldPass, record) {
			return perrors.New(perrors.CodeInvalidCredentials, "current password is wrong")
		}
	case errors.Is(err, store.ErrNotFound):
		// First password for this email.
	default:
		return perrors.Wrap(perrors.CodeInternal, "load credential", err)
	}

	return s.putPassword(ctx, email, newPass)
}

// AdminResetPassword sets a member's password without the old one. The email
// must resolve in the directory.
func (s *Service) AdminResetPassword(ctx context.Context, email, newPass string) error {
	email = NormalizeEmail(email)
	if err := checkPasswordPolicy(newPass); err != nil {
		return err
	}
	exists, err := s.directory.EmailExists(ctx, email)
	if err != nil {
		return err
	}
	if !exists {
		return perrors.New(perrors.CodeNotFound, "email not found in the member directory")
	}
	return s.putPassword(ctx, email, newPass)
}

func (s *Service) putPassword(ctx context.Context, email, pass string) error {
	record, err := password.Hash(pass)
	if err != nil {
		return perrors.Wrap(perrors.CodeInternal, "hash password", err)
	}
	credential := store.Credential{
		Email:        email,
		PasswordHash: record.Hash,
		Salt:         record.Salt,
		Iterations:   record.Iterations,
		UpdatedAt:    s.now().UTC(),
	}
	if err := s.credentials.PutCredential(ctx, credential); err != nil {
		return perrors.Wrap(perrors.CodeInternal, "store credential", err)
	}
	return nil
}

func checkPasswordPolicy(pass string) error {
	if len(pass) < minPasswordLength {
		return perrors.WithMetadata(perrors.CodeValidation, "password too short", map[string]string{
			"field": "password",
			"min":   fmt.Sprintf("%d", minPasswordLength),
		})
	}
	return nil
}

// logf routes service logs so background loops and validation failures share
// one prefix convention.
func logf(format string, args ...any) {
	log.Printf("auth: "+format, args...)
}

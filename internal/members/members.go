// Package members implements the member-facing profile service over the
// membership directory.
package members

import (
	"context"
	"errors"
	"strings"
	"time"

	perrors "github.com/vereinswerk/portal/internal/platform/errors"

	"github.com/vereinswerk/portal/internal/directory"
	"github.com/vereinswerk/portal/internal/password"
	"github.com/vereinswerk/portal/internal/store"
)

// Profile is one user's family view: every member record sharing the login
// email plus portal state.
type Profile struct {
	Email      string             `json:"email"`
	IsAdmin    bool               `json:"isAdmin"`
	NeedsDSGVO bool               `json:"needsDsgvo"`
	DarkMode   bool               `json:"darkMode"`
	Members    []directory.Member `json:"members"`
}

// MaskedBankData is the default bank view; full data needs re-authentication.
type MaskedBankData struct {
	IBANMasked string `json:"ibanMasked"`
	BICMasked  string `json:"bicMasked"`
	MandatsRef string `json:"mandatRef"`
}

// Admin answers whether an email administers the portal.
type Admin interface {
	IsAdminEmail(ctx context.Context, email string) bool
	CanAccessMember(ctx context.Context, email, memberID string) bool
}

// Service implements profile reads and narrow directory writes.
type Service struct {
	directory   directory.Directory
	credentials store.CredentialStore
	preferences store.PreferenceStore
	admin       Admin
	now         func() time.Time
}

// NewService creates a members service.
func NewService(dir directory.Directory, credentials store.CredentialStore, preferences store.PreferenceStore, admin Admin) *Service {
	return &Service{
		directory:   dir,
		credentials: credentials,
		preferences: preferences,
		admin:       admin,
		now:         time.Now,
	}
}

// WithClock overrides the clock in tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Profile loads the family view for an email: all member records under it,
// the admin flag, whether any member still lacks DSGVO consent, and the
// user's display preference.
func (s *Service) Profile(ctx context.Context, email string) (Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	records, err := s.directory.MembersByEmail(ctx, email)
	if err != nil {
		return Profile{}, err
	}

	profile := Profile{
		Email:   email,
		IsAdmin: s.admin.IsAdminEmail(ctx, email),
		Members: records,
	}
	for _, member := range records {
		if !member.DSGVO {
			profile.NeedsDSGVO = true
			break
		}
	}

	preference, err := s.preferences.GetPreference(ctx, email)
	switch {
	case err == nil:
		profile.DarkMode = preference.DarkMode
	case errors.Is(err, store.ErrNotFound):
	default:
		return Profile{}, perrors.Wrap(perrors.CodeInternal, "load preferences", err)
	}
	return profile, nil
}

// GiveConsent records DSGVO consent for member records of this email. IDs
// not belonging to the email are silently dropped; an empty valid set is a
// validation error.
func (s *Service) GiveConsent(ctx context.Context, email string, memberIDs []string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(memberIDs) == 0 {
		return perrors.New(perrors.CodeValidation, "no members selected")
	}
	updated, err := s.directory.UpdateConsent(ctx, email, memberIDs)
	if err != nil {
		return err
	}
	if updated == 0 {
		return perrors.New(perrors.CodeValidation, "no valid members selected")
	}
	return nil
}

// BankDataMasked returns the SEPA data of the lowest member record with the
// IBAN and BIC masked.
func (s *Service) BankDataMasked(ctx context.Context, email string) (MaskedBankData, error) {
	data, err := s.directory.BankData(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil && !perrors.HasCode(err, perrors.CodeNotFound) {
		return MaskedBankData{}, err
	}
	return MaskedBankData{
		IBANMasked: MaskIBAN(data.IBAN),
		BICMasked:  MaskBIC(data.BIC),
		MandatsRef: data.MandatsRef,
	}, nil
}

// BankDataFull returns unmasked SEPA data after re-verifying the portal
// password. Unprovisioned accounts cannot reveal; a wrong password is
// forbidden, not a validation error.
func (s *Service) BankDataFull(ctx context.Context, email, pass string) (directory.BankData, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	credential, err := s.credentials.GetCredential(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return directory.BankData{}, perrors.New(perrors.CodeNoPasswordSet, "set a portal password first")
		}
		return directory.BankData{}, perrors.Wrap(perrors.CodeInternal, "load credential", err)
	}
	record := password.Record{
		Hash:       credential.PasswordHash,
		Salt:       credential.Salt,
		Iterations: credential.Iterations,
	}
	if !password.Verify(pass, record) {
		return directory.BankData{}, perrors.New(perrors.CodeForbidden, "wrong password")
	}

	data, err := s.directory.BankData(ctx, email)
	if err != nil && !perrors.HasCode(err, perrors.CodeNotFound) {
		return directory.BankData{}, err
	}
	return data, nil
}

// UpdateMember writes the member-editable contact and bank fields of one
// record. The caller must own the record or be an administrator, and the
// directory write stays scoped to the email.
func (s *Service) UpdateMember(ctx context.Context, email, memberID string, update directory.ProfileUpdate) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !s.admin.CanAccessMember(ctx, email, memberID) {
		return perrors.New(perrors.CodeNotFound, "member not found")
	}
	return s.directory.UpdateProfile(ctx, email, memberID, update)
}

// SetDarkMode stores the user's display preference.
func (s *Service) SetDarkMode(ctx context.Context, email string, on bool) error {
	preference := store.Preference{
		Email:     strings.ToLower(strings.TrimSpace(email)),
		DarkMode:  on,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.preferences.PutPreference(ctx, preference); err != nil {
		return perrors.Wrap(perrors.CodeInternal, "store preference", err)
	}
	return nil
}

// Search finds members by ID, name, or email for administrators. Queries
// under two characters return nothing.
func (s *Service) Search(ctx context.Context, query string) ([]directory.MemberSummary, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return []directory.MemberSummary{}, nil
	}
	return s.directory.Search(ctx, query)
}

const maskRun = "••••••••••"

// MaskIBAN hides the middle of an IBAN, keeping the first and last four
// characters. Short values keep only the last two.
func MaskIBAN(iban string) string {
	cleaned := stripSpaces(iban)
	if cleaned == "" {
		return ""
	}
	if len(cleaned) <= 8 {
		runes := []rune(cleaned)
		for i := 0; i < len(runes)-2; i++ {
			runes[i] = '•'
		}
		return string(runes)
	}
	return cleaned[:4] + maskRun + cleaned[len(cleaned)-4:]
}

// MaskBIC keeps the first four characters of a BIC.
func MaskBIC(bic string) string {
	cleaned := stripSpaces(bic)
	if cleaned == "" {
		return ""
	}
	if len(cleaned) <= 4 {
		return "••••"
	}
	return cleaned[:4] + "••••"
}

func stripSpaces(value string) string {
	return strings.Join(strings.Fields(value), "")
}

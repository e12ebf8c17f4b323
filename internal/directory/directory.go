// Package directory defines the boundary to the external membership database.
//
// The directory is authoritative and read-mostly. Every query the portal
// needs lives behind the Directory interface so no other package embeds
// directory SQL, and the backing store can be swapped without touching the
// services built on top.
package directory

import (
	"context"
	"time"

	"github.com/vereinswerk/portal/internal/platform/errors"
)

// ErrNotFound indicates the requested member record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "member not found")

// Member is one full membership record as the portal reads it.
type Member struct {
	ID           string
	Anrede       string
	Titel        string
	Vorname      string
	Nachname     string
	Geburtsdatum *time.Time

	Strasse string
	PLZ     string
	Ort     string
	Land    string

	TelefonPrivat     string
	TelefonDienstlich string
	Handy1            string
	Handy2            string
	Email             string

	Eintritt *time.Time
	Austritt *time.Time

	AbteilungID string
	Abteilung   string
	Beitrag     string

	IBAN         string
	BIC          string
	MandatsRef   string
	MandatsDatum *time.Time

	Extern     bool
	DSGVO      bool
	DSGVODatum *time.Time
}

// MemberMeta is the session-relevant subset resolved at login time.
type MemberMeta struct {
	MemberID    string
	AbteilungID string
}

// AdminSignals carries the three fields admin determination inspects.
type AdminSignals struct {
	MemberID    string
	AbteilungID string
	FlagText    string
}

// BankData is the SEPA payment detail of a member.
type BankData struct {
	IBAN       string
	BIC        string
	MandatsRef string
}

// MemberSummary is a search result row.
type MemberSummary struct {
	ID       string
	Vorname  string
	Nachname string
	Email    string
}

// ProfileUpdate carries the member-editable contact and bank fields.
type ProfileUpdate struct {
	Vorname           string
	Nachname          string
	Strasse           string
	PLZ               string
	Ort               string
	Email             string
	Handy1            string
	TelefonPrivat     string
	TelefonDienstlich string
	IBAN              string
	BIC               string
}

// Directory reads and narrowly writes the external membership database.
// Soft-deleted members are invisible through every method.
type Directory interface {
	// EmailExists reports whether at least one member carries this email.
	EmailExists(ctx context.Context, email string) (bool, error)
	// MemberMeta resolves the lowest member ID and its department for an
	// email. Returns ErrNotFound when no member matches.
	MemberMeta(ctx context.Context, email string) (MemberMeta, error)
	// MemberIDs lists every member ID registered under an email.
	MemberIDs(ctx context.Context, email string) ([]string, error)
	// MembersByEmail lists full member records under an email, including
	// the resolved department name.
	MembersByEmail(ctx context.Context, email string) ([]Member, error)
	// AdminSignals loads the admin-determination fields for the lowest
	// member ID under an email. Returns ErrNotFound when absent.
	AdminSignals(ctx context.Context, email string) (AdminSignals, error)
	// MemberBelongsTo reports whether memberID is registered under email.
	MemberBelongsTo(ctx context.Context, email, memberID string) (bool, error)
	// EmailsForMemberIDs resolves member IDs to their current distinct
	// non-empty email addresses.
	EmailsForMemberIDs(ctx context.Context, memberIDs []string) ([]string, error)
	// AllEmails lists every distinct non-empty member email.
	AllEmails(ctx context.Context) ([]string, error)
	// BankData loads the payment detail of the lowest member ID under an
	// email. Returns ErrNotFound when absent.
	BankData(ctx context.Context, email string) (BankData, error)
	// UpdateProfile writes the member-editable fields of one member,
	// scoped to the owning email.
	UpdateProfile(ctx context.Context, email, memberID string, update ProfileUpdate) error
	// UpdateConsent records DSGVO consent for the given member IDs, scoped
	// to the owning email. Returns the number of members updated.
	UpdateConsent(ctx context.Context, email string, memberIDs []string) (int, error)
	// Search matches members by ID, name, or email for the admin screen.
	Search(ctx context.Context, query string) ([]MemberSummary, error)
}

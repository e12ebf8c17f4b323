package profileweb

import (
	"context"
	"net/http"
	"strings"

	"github.com/vereinswerk/portal/internal/directory"
	"github.com/vereinswerk/portal/internal/members"
	perrors "github.com/vereinswerk/portal/internal/platform/errors"
	"github.com/vereinswerk/portal/internal/web/platform/httpx"
	"github.com/vereinswerk/portal/internal/web/platform/session"
)

// profileService defines the member operations used by the handlers.
type profileService interface {
	Profile(ctx context.Context, email string) (members.Profile, error)
	GiveConsent(ctx context.Context, email string, memberIDs []string) error
	BankDataMasked(ctx context.Context, email string) (members.MaskedBankData, error)
	BankDataFull(ctx context.Context, email, pass string) (directory.BankData, error)
	UpdateMember(ctx context.Context, email, memberID string, update directory.ProfileUpdate) error
	SetDarkMode(ctx context.Context, email string, on bool) error
}

type handlers struct {
	service profileService
}

func (h handlers) handleFamily(w http.ResponseWriter, r *http.Request) {
	identity, _ := session.From(r.Context())
	profile, err := h.service.Profile(r.Context(), identity.Email)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, profile)
}

func (h handlers) handleConsent(w http.ResponseWriter, r *http.Request) {
	identity, _ := session.From(r.Context())
	var body struct {
		MemberIDs []string `json:"memberIds"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.service.GiveConsent(r.Context(), identity.Email, body.MemberIDs); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h handlers) handleBankMasked(w http.ResponseWriter, r *http.Request) {
	identity, _ := session.From(r.Context())
	data, err := h.service.BankDataMasked(r.Context(), identity.Email)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, data)
}

// handleBankReveal returns the full bank data only after the caller proves
// knowledge of the portal password again.
func (h handlers) handleBankReveal(w http.ResponseWriter, r *http.Request) {
	identity, _ := session.From(r.Context())
	var body struct {
		Password string `json:"password"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if body.Password == "" {
		httpx.WriteError(w, r, perrors.New(perrors.CodeValidation, "Passwort erforderlich"))
		return
	}
	data, err := h.service.BankDataFull(r.Context(), identity.Email, body.Password)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"iban":      data.IBAN,
		"bic":       data.BIC,
		"mandatRef": data.MandatsRef,
	})
}

func (h handlers) handlePreferences(w http.ResponseWriter, r *http.Request) {
	identity, _ := session.From(r.Context())
	var body struct {
		DarkMode bool `json:"darkMode"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.service.SetDarkMode(r.Context(), identity.Email, body.DarkMode); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h handlers) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	identity, _ := session.From(r.Context())
	memberID := strings.TrimSpace(r.PathValue("memberID"))
	if memberID == "" {
		httpx.WriteError(w, r, perrors.New(perrors.CodeNotFound, "member not found"))
		return
	}
	var body struct {
		Vorname   string `json:"vorname"`
		Nachname  string `json:"nachname"`
		Strasse   string `json:"strasse"`
		PLZ       string `json:"plz"`
		Ort       string `json:"ort"`
		Email     string `json:"email"`
		Handy1    string `json:"handy1"`
		TelPriv   string `json:"telPriv"`
		TelDienst string `json:"telDienst"`
		IBAN      string `json:"iban"`
		BIC       string `json:"bic"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	update := directory.ProfileUpdate{
		Vorname:           body.Vorname,
		Nachname:          body.Nachname,
		Strasse:           body.Strasse,
		PLZ:               body.PLZ,
		Ort:               body.Ort,
		Email:             body.Email,
		Handy1:            body.Handy1,
		TelefonPrivat:     body.TelPriv,
		TelefonDienstlich: body.TelDienst,
		IBAN:              body.IBAN,
		BIC:               body.BIC,
	}
	if err := h.service.UpdateMember(r.Context(), identity.Email, memberID, update); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

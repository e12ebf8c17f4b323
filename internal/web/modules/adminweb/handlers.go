package adminweb

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/vereinswerk/portal/internal/directory"
	perrors "github.com/vereinswerk/portal/internal/platform/errors"
	"github.com/vereinswerk/portal/internal/settings"
	"github.com/vereinswerk/portal/internal/web/platform/httpx"
)

// settingsGateway defines the settings operations used by the handlers.
type settingsGateway interface {
	All() settings.All
	Update(updates map[string]string) error
}

// testMailer sends the SMTP verification mail.
type testMailer interface {
	SendTest(ctx context.Context, to string) error
}

// memberSearcher searches the member directory.
type memberSearcher interface {
	Search(ctx context.Context, query string) ([]directory.MemberSummary, error)
}

type handlers struct {
	settings settingsGateway
	mailer   testMailer
	members  memberSearcher
}

// handleGetSettings serves the full settings view. SMTP.Pass never leaves
// the server; the field is excluded from serialization.
func (h handlers) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	_ = httpx.WriteJSON(w, http.StatusOK, h.settings.All())
}

type settingsBody struct {
	SiteTitle *string `json:"siteTitle"`
	OrgName   *string `json:"orgName"`
	LogoURL   *string `json:"logoUrl"`
	DSGVOURL  *string `json:"dsgvoUrl"`
	Theme     *struct {
		Accent string `json:"accent"`
		Bg     string `json:"bg"`
		Card   string `json:"card"`
		Text   string `json:"text"`
		Muted  string `json:"muted"`
	} `json:"theme"`
	AdminMenu []string `json:"adminMenu"`
	PWA       *struct {
		Name      string `json:"name"`
		ShortName string `json:"shortName"`
	} `json:"pwa"`
	SMTP *struct {
		Host      *string `json:"host"`
		Port      *int    `json:"port"`
		Secure    *bool   `json:"secure"`
		User      *string `json:"user"`
		Pass      *string `json:"pass"`
		FromName  *string `json:"fromName"`
		FromEmail *string `json:"fromEmail"`
	} `json:"smtp"`
	MailLayout *struct {
		HeaderHTML *string `json:"headerHtml"`
		FooterHTML *string `json:"footerHtml"`
	} `json:"mailLayout"`
}

// handleUpdateSettings persists only the fields the request carries. An
// empty SMTP password leaves the stored one untouched so the form can echo
// a blank field.
func (h handlers) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var body settingsBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	updates := map[string]string{}
	setString := func(key string, value *string) {
		if value != nil {
			updates[key] = *value
		}
	}
	setString("SITE_TITLE", body.SiteTitle)
	setString("ORG_NAME", body.OrgName)
	setString("LOGO_URL", body.LogoURL)
	setString("DSGVO_URL", body.DSGVOURL)
	if body.Theme != nil {
		theme := body.Theme
		if theme.Accent != "" {
			updates["ACCENT_COLOR"] = theme.Accent
		}
		if theme.Bg != "" {
			updates["BG_COLOR"] = theme.Bg
		}
		if theme.Card != "" {
			updates["CARD_COLOR"] = theme.Card
		}
		if theme.Text != "" {
			updates["TEXT_COLOR"] = theme.Text
		}
		if theme.Muted != "" {
			updates["MUTED_COLOR"] = theme.Muted
		}
	}
	if body.AdminMenu != nil {
		updates["ADMIN_MENU"] = strings.Join(body.AdminMenu, ",")
	}
	if body.PWA != nil {
		if body.PWA.Name != "" {
			updates["PWA_NAME"] = body.PWA.Name
		}
		if body.PWA.ShortName != "" {
			updates["PWA_SHORT_NAME"] = body.PWA.ShortName
		}
	}
	if body.SMTP != nil {
		smtp := body.SMTP
		setString("SMTP_HOST", smtp.Host)
		if smtp.Port != nil {
			updates["SMTP_PORT"] = strconv.Itoa(*smtp.Port)
		}
		if smtp.Secure != nil {
			updates["SMTP_SECURE"] = strconv.FormatBool(*smtp.Secure)
		}
		setString("SMTP_USER", smtp.User)
		if smtp.Pass != nil && strings.TrimSpace(*smtp.Pass) != "" {
			updates["SMTP_PASS"] = *smtp.Pass
		}
		setString("SMTP_FROM_NAME", smtp.FromName)
		setString("SMTP_FROM_EMAIL", smtp.FromEmail)
	}
	if body.MailLayout != nil {
		setString("EMAIL_HEADER_HTML", body.MailLayout.HeaderHTML)
		setString("EMAIL_FOOTER_HTML", body.MailLayout.FooterHTML)
	}

	if err := h.settings.Update(updates); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h handlers) handleSMTPTest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		To string `json:"to"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if strings.TrimSpace(body.To) == "" {
		httpx.WriteError(w, r, perrors.New(perrors.CodeValidation, "Empfänger-Adresse fehlt"))
		return
	}
	if err := h.mailer.SendTest(r.Context(), body.To); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h handlers) handleMemberSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	results, err := h.members.Search(r.Context(), query)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	type item struct {
		ID       string `json:"id"`
		Vorname  string `json:"vorname"`
		Nachname string `json:"nachname"`
		Email    string `json:"email"`
	}
	items := make([]item, 0, len(results))
	for _, result := range results {
		items = append(items, item{
			ID:       result.ID,
			Vorname:  result.Vorname,
			Nachname: result.Nachname,
			Email:    result.Email,
		})
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

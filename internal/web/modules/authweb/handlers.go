package authweb

import (
	"context"
	"fmt"
	"html"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vereinswerk/portal/internal/auth"
	"github.com/vereinswerk/portal/internal/mail"
	perrors "github.com/vereinswerk/portal/internal/platform/errors"
	"github.com/vereinswerk/portal/internal/store"
	"github.com/vereinswerk/portal/internal/web/platform/httpx"
	"github.com/vereinswerk/portal/internal/web/platform/requestmeta"
	"github.com/vereinswerk/portal/internal/web/platform/session"
	"github.com/vereinswerk/portal/internal/web/platform/sessioncookie"
)

// authService defines the auth operations used by the handlers.
type authService interface {
	Login(ctx context.Context, email, pass string) (store.Session, error)
	Logout(ctx context.Context, tok string) error
	ChangePassword(ctx context.Context, email, oldPass, newPass string) error
	ValidateSession(ctx context.Context, tok string) (*auth.Identity, error)
	IsAdminEmail(ctx context.Context, email string) bool
	CreatePasswordResetToken(ctx context.Context, email string) (store.ResetToken, error)
	CompletePasswordReset(ctx context.Context, value, newPass string) error
}

type handlers struct {
	service    authService
	mailer     mail.Sender
	baseURL    string
	scheme     requestmeta.SchemePolicy
	sessionTTL time.Duration
}

func newHandlers(service authService, mailer mail.Sender, baseURL string, scheme requestmeta.SchemePolicy, sessionTTL time.Duration) handlers {
	return handlers{
		service:    service,
		mailer:     mailer,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		scheme:     scheme,
		sessionTTL: sessionTTL,
	}
}

func (h handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	sess, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	sessioncookie.Write(w, r, sess.Token, h.sessionTTL, h.scheme)
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"expiresAt": sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	if tok, ok := session.TokenFromRequest(r); ok {
		if err := h.service.Logout(r.Context(), tok); err != nil {
			log.Printf("[WEB] logout: %v", err)
		}
	}
	sessioncookie.Clear(w, r, h.scheme)
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h handlers) handleSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := session.From(r.Context())
	if !ok {
		httpx.WriteError(w, r, perrors.New(perrors.CodeSessionInvalid, "no session"))
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"email":       identity.Email,
		"memberId":    identity.MemberID,
		"abteilungId": identity.AbteilungID,
		"isAdmin":     h.service.IsAdminEmail(r.Context(), identity.Email),
	})
}

func (h handlers) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := session.From(r.Context())
	if !ok {
		httpx.WriteError(w, r, perrors.New(perrors.CodeSessionInvalid, "no session"))
		return
	}
	var body struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.service.ChangePassword(r.Context(), identity.Email, body.OldPassword, body.NewPassword); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleForgotPassword always reports success for unknown emails so the
// endpoint cannot be used to probe the member directory.
func (h handlers) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if strings.TrimSpace(body.Email) == "" {
		httpx.WriteError(w, r, perrors.New(perrors.CodeValidation, "E-Mail ist erforderlich"))
		return
	}

	resetToken, err := h.service.CreatePasswordResetToken(r.Context(), body.Email)
	switch {
	case err == nil:
		if err := h.sendResetMail(r.Context(), resetToken); err != nil {
			log.Printf("[WEB] send reset mail: %v", err)
		}
	case perrors.HasCode(err, perrors.CodeNotFound):
		log.Printf("[WEB] reset requested for unknown email")
	default:
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h handlers) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.service.CompletePasswordReset(r.Context(), body.Token, body.NewPassword); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h handlers) sendResetMail(ctx context.Context, resetToken store.ResetToken) error {
	if h.mailer == nil {
		return perrors.New(perrors.CodeMailNotConfigured, "no mailer configured")
	}
	link := h.resetLink(resetToken.Token)
	body := fmt.Sprintf(
		"<p>Hallo,</p><p>für Ihr Konto wurde das Zurücksetzen des Passworts angefordert.</p><p><a href=%q>Neues Passwort vergeben</a></p><p>Der Link ist bis %s gültig. Wenn Sie die Anfrage nicht gestellt haben, können Sie diese E-Mail ignorieren.</p>",
		link,
		html.EscapeString(resetToken.ExpiresAt.UTC().Format("02.01.2006 15:04 MST")),
	)
	return h.mailer.Send(ctx, mail.Message{
		To:      resetToken.Email,
		Subject: "Passwort zurücksetzen",
		HTML:    body,
	})
}

func (h handlers) resetLink(tok string) string {
	base := h.baseURL
	if base == "" {
		base = "http://localhost:3000"
	}
	return base + "/passwort-zuruecksetzen?token=" + url.QueryEscape(tok)
}

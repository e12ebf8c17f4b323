package notificationsweb

import (
	"context"
	"net/http"
	"strings"

	"github.com/vereinswerk/portal/internal/notifications"
	perrors "github.com/vereinswerk/portal/internal/platform/errors"
	"github.com/vereinswerk/portal/internal/web/platform/httpx"
	"github.com/vereinswerk/portal/internal/web/platform/session"
)

// notificationService defines the notification operations used by the
// handlers.
type notificationService interface {
	ListForUser(ctx context.Context, email string) (notifications.Inbox, error)
	MarkRead(ctx context.Context, email, id string) error
	Create(ctx context.Context, input notifications.CreateInput) (string, error)
	Delete(ctx context.Context, id string) error
}

type handlers struct {
	service notificationService
}

func (h handlers) handleInbox(w http.ResponseWriter, r *http.Request) {
	identity, _ := session.From(r.Context())
	inbox, err := h.service.ListForUser(r.Context(), identity.Email)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, inbox)
}

func (h handlers) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	identity, _ := session.From(r.Context())
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		httpx.WriteError(w, r, perrors.New(perrors.CodeNotFound, "notification not found"))
		return
	}
	if err := h.service.MarkRead(r.Context(), identity.Email, id); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h handlers) handleCreate(w http.ResponseWriter, r *http.Request) {
	identity, _ := session.From(r.Context())
	var body struct {
		Title       string                     `json:"title"`
		BodyText    string                     `json:"bodyText"`
		BodyHTML    string                     `json:"bodyHtml"`
		SendEmail   bool                       `json:"sendEmail"`
		Targets     []notifications.Target     `json:"targets"`
		Attachments []notifications.Attachment `json:"attachments"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	id, err := h.service.Create(r.Context(), notifications.CreateInput{
		Title:       body.Title,
		BodyText:    body.BodyText,
		BodyHTML:    body.BodyHTML,
		SendEmail:   body.SendEmail,
		Targets:     body.Targets,
		Attachments: body.Attachments,
		CreatedBy:   identity.Email,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": id})
}

func (h handlers) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		httpx.WriteError(w, r, perrors.New(perrors.CodeNotFound, "notification not found"))
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

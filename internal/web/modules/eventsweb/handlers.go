package eventsweb

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/vereinswerk/portal/internal/auth"
	"github.com/vereinswerk/portal/internal/events"
	perrors "github.com/vereinswerk/portal/internal/platform/errors"
	"github.com/vereinswerk/portal/internal/store"
	"github.com/vereinswerk/portal/internal/web/platform/httpx"
	"github.com/vereinswerk/portal/internal/web/platform/session"
)

// eventService defines the event operations used by the handlers.
type eventService interface {
	VisibleEvents(ctx context.Context, viewer *auth.Identity) ([]events.Summary, error)
	EventDetail(ctx context.Context, id string, viewer *auth.Identity) (events.Detail, error)
	Register(ctx context.Context, id string, viewer *auth.Identity, name string) error
	Vote(ctx context.Context, eventID, email, optionID string) error
	Create(ctx context.Context, input events.Input, createdBy string) (string, error)
	Update(ctx context.Context, id string, input events.Input) error
	Delete(ctx context.Context, id string) error
	AllEvents(ctx context.Context) ([]events.Summary, error)
	Registrations(ctx context.Context, eventID string) ([]store.Registration, error)
}

type handlers struct {
	service eventService
}

func viewer(ctx context.Context) *auth.Identity {
	identity, ok := session.From(ctx)
	if !ok {
		return nil
	}
	return identity
}

func (h handlers) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.VisibleEvents(r.Context(), viewer(r.Context()))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"events": list})
}

func (h handlers) handleDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		httpx.WriteError(w, r, perrors.New(perrors.CodeNotFound, "event not found"))
		return
	}
	detail, err := h.service.EventDetail(r.Context(), id, viewer(r.Context()))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, detail)
}

func (h handlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	var body struct {
		Name string `json:"name"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.service.Register(r.Context(), id, viewer(r.Context()), body.Name); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h handlers) handleVote(w http.ResponseWriter, r *http.Request) {
	identity, _ := session.From(r.Context())
	id := strings.TrimSpace(r.PathValue("id"))
	var body struct {
		OptionID string `json:"optionId"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.service.Vote(r.Context(), id, identity.Email, body.OptionID); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h handlers) handleAdminList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.AllEvents(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"events": list})
}

func (h handlers) handleCreate(w http.ResponseWriter, r *http.Request) {
	identity, _ := session.From(r.Context())
	var input events.Input
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	id, err := h.service.Create(r.Context(), input, identity.Email)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": id})
}

func (h handlers) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	var input events.Input
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.service.Update(r.Context(), id, input); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h handlers) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h handlers) handleRegistrations(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	list, err := h.service.Registrations(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	type row struct {
		Email     string `json:"email"`
		MemberID  string `json:"memberId"`
		Name      string `json:"name"`
		CreatedAt string `json:"createdAt"`
	}
	rows := make([]row, 0, len(list))
	for _, registration := range list {
		rows = append(rows, row{
			Email:     registration.Email,
			MemberID:  registration.MemberID,
			Name:      registration.Name,
			CreatedAt: registration.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"registrations": rows})
}

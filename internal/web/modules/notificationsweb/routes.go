package notificationsweb

import (
	"net/http"

	"github.com/vereinswerk/portal/internal/web/platform/httpx"
	"github.com/vereinswerk/portal/internal/web/platform/session"
)

func registerRoutes(mux *http.ServeMux, h handlers, validator session.Validator) {
	if mux == nil {
		return
	}
	authed := session.Require(validator)
	admin := session.RequireAdmin(validator)
	mux.Handle("GET /api/notifications", httpx.Chain(http.HandlerFunc(h.handleInbox), authed))
	mux.Handle("POST /api/notifications/{id}/read", httpx.Chain(http.HandlerFunc(h.handleMarkRead), authed))
	mux.Handle("POST /api/notifications", httpx.Chain(http.HandlerFunc(h.handleCreate), admin))
	mux.Handle("DELETE /api/notifications/{id}", httpx.Chain(http.HandlerFunc(h.handleDelete), admin))
}

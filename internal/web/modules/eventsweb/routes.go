package eventsweb

import (
	"net/http"

	"github.com/vereinswerk/portal/internal/web/platform/httpx"
	"github.com/vereinswerk/portal/internal/web/platform/session"
)

func registerRoutes(mux *http.ServeMux, h handlers, validator session.Validator) {
	if mux == nil {
		return
	}
	// Listing and detail stay reachable without a session so public events
	// remain visible; the service filters the rest by viewer.
	optional := session.Optional(validator)
	authed := session.Require(validator)
	admin := session.RequireAdmin(validator)

	mux.Handle("GET /api/events", httpx.Chain(http.HandlerFunc(h.handleList), optional))
	mux.Handle("GET /api/events/admin/all", httpx.Chain(http.HandlerFunc(h.handleAdminList), admin))
	mux.Handle("GET /api/events/{id}", httpx.Chain(http.HandlerFunc(h.handleDetail), optional))
	mux.Handle("POST /api/events/{id}/register", httpx.Chain(http.HandlerFunc(h.handleRegister), authed))
	mux.Handle("POST /api/events/{id}/vote", httpx.Chain(http.HandlerFunc(h.handleVote), authed))
	mux.Handle("POST /api/events", httpx.Chain(http.HandlerFunc(h.handleCreate), admin))
	mux.Handle("PUT /api/events/{id}", httpx.Chain(http.HandlerFunc(h.handleUpdate), admin))
	mux.Handle("DELETE /api/events/{id}", httpx.Chain(http.HandlerFunc(h.handleDelete), admin))
	mux.Handle("GET /api/events/{id}/registrations", httpx.Chain(http.HandlerFunc(h.handleRegistrations), admin))
}

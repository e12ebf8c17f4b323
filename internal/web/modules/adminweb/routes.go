package adminweb

import (
	"net/http"

	"github.com/vereinswerk/portal/internal/web/platform/httpx"
	"github.com/vereinswerk/portal/internal/web/platform/session"
)

func registerRoutes(mux *http.ServeMux, h handlers, validator session.Validator) {
	if mux == nil {
		return
	}
	admin := session.RequireAdmin(validator)
	mux.Handle("GET /api/admin/settings", httpx.Chain(http.HandlerFunc(h.handleGetSettings), admin))
	mux.Handle("POST /api/admin/settings", httpx.Chain(http.HandlerFunc(h.handleUpdateSettings), admin))
	mux.Handle("POST /api/admin/smtp/test", httpx.Chain(http.HandlerFunc(h.handleSMTPTest), admin))
	mux.Handle("GET /api/admin/members", httpx.Chain(http.HandlerFunc(h.handleMemberSearch), admin))
}

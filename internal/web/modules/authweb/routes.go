package authweb

import (
	"net/http"

	"github.com/vereinswerk/portal/internal/web/platform/httpx"
	"github.com/vereinswerk/portal/internal/web/platform/session"
)

func registerRoutes(mux *http.ServeMux, h handlers, validator session.Validator) {
	if mux == nil {
		return
	}
	mux.Handle("POST /api/auth/login", http.HandlerFunc(h.handleLogin))
	mux.Handle("POST /api/auth/logout", http.HandlerFunc(h.handleLogout))
	mux.Handle("POST /api/auth/password/forgot", http.HandlerFunc(h.handleForgotPassword))
	mux.Handle("POST /api/auth/password/reset", http.HandlerFunc(h.handleResetPassword))
	mux.Handle("GET /api/auth/session",
		httpx.Chain(http.HandlerFunc(h.handleSession), session.Require(validator)))
	mux.Handle("POST /api/auth/password/change",
		httpx.Chain(http.HandlerFunc(h.handleChangePassword), session.Require(validator)))
}

package profileweb

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
	mux.Handle("GET /api/profile/family", httpx.Chain(http.HandlerFunc(h.handleFamily), authed))
	mux.Handle("POST /api/profile/dsgvo/consent", httpx.Chain(http.HandlerFunc(h.handleConsent), authed))
	mux.Handle("GET /api/profile/bank/masked", httpx.Chain(http.HandlerFunc(h.handleBankMasked), authed))
	mux.Handle("POST /api/profile/bank/reveal", httpx.Chain(http.HandlerFunc(h.handleBankReveal), authed))
	mux.Handle("PUT /api/profile/preferences", httpx.Chain(http.HandlerFunc(h.handlePreferences), authed))
	mux.Handle("PUT /api/profile/member/{memberID}", httpx.Chain(http.HandlerFunc(h.handleUpdateMember), authed))
}

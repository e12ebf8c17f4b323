// Package adminweb serves the portal administration routes: runtime
// settings, SMTP test mail, and member search.
package adminweb

import (
	"net/http"

	"github.com/vereinswerk/portal/internal/web/platform/session"
)

// Module provides admin-only routes.
type Module struct {
	settings  settingsGateway
	mailer    testMailer
	members   memberSearcher
	validator session.Validator
}

// New returns an admin module backed by the given gateways.
func New(settings settingsGateway, mailer testMailer, members memberSearcher, validator session.Validator) Module {
	return Module{settings: settings, mailer: mailer, members: members, validator: validator}
}

// ID returns a stable module identifier.
func (Module) ID() string { return "admin" }

// Routes wires the admin route handlers onto the mux.
func (m Module) Routes(mux *http.ServeMux) {
	h := handlers{settings: m.settings, mailer: m.mailer, members: m.members}
	registerRoutes(mux, h, m.validator)
}

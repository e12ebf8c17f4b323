// Package profileweb serves the member profile, consent, bank data, and
// preference routes.
package profileweb

import (
	"net/http"

	"github.com/vereinswerk/portal/internal/web/platform/session"
)

// Module provides authenticated profile routes.
type Module struct {
	service   profileService
	validator session.Validator
}

// New returns a profile module backed by the given service.
func New(service profileService, validator session.Validator) Module {
	return Module{service: service, validator: validator}
}

// ID returns a stable module identifier.
func (Module) ID() string { return "profile" }

// Routes wires the profile route handlers onto the mux.
func (m Module) Routes(mux *http.ServeMux) {
	h := handlers{service: m.service}
	registerRoutes(mux, h, m.validator)
}

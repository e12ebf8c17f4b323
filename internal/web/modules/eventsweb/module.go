// Package eventsweb serves the event listing, signup, poll, and admin
// management routes.
package eventsweb

import (
	"net/http"

	"github.com/vereinswerk/portal/internal/web/platform/session"
)

// Module provides event routes.
type Module struct {
	service   eventService
	validator session.Validator
}

// New returns an events module backed by the given service.
func New(service eventService, validator session.Validator) Module {
	return Module{service: service, validator: validator}
}

// ID returns a stable module identifier.
func (Module) ID() string { return "events" }

// Routes wires the event route handlers onto the mux.
func (m Module) Routes(mux *http.ServeMux) {
	h := handlers{service: m.service}
	registerRoutes(mux, h, m.validator)
}

// Package notificationsweb serves the notification inbox and the admin
// broadcast routes.
package notificationsweb

import (
	"net/http"

	"github.com/vereinswerk/portal/internal/web/platform/session"
)

// Module provides notification routes.
type Module struct {
	service   notificationService
	validator session.Validator
}

// New returns a notifications module backed by the given service.
func New(service notificationService, validator session.Validator) Module {
	return Module{service: service, validator: validator}
}

// ID returns a stable module identifier.
func (Module) ID() string { return "notifications" }

// Routes wires the notification route handlers onto the mux.
func (m Module) Routes(mux *http.ServeMux) {
	h := handlers{service: m.service}
	registerRoutes(mux, h, m.validator)
}

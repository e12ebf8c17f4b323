// Package publicweb serves the unauthenticated routes: public branding
// settings and health probes.
package publicweb

import (
	"net/http"
	"time"

	"github.com/vereinswerk/portal/internal/settings"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Option configures a public module.
type Option func(*Module)

// WithClock overrides the clock in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Module) { m.now = now }
}

// publicSettings serves the unauthenticated settings subset.
type publicSettings interface {
	Public() settings.Public
}

// Module provides unauthenticated routes.
type Module struct {
	settings publicSettings
	now      func() time.Time
}

// New returns a public module backed by the given settings provider.
func New(provider publicSettings, opts ...Option) Module {
	m := Module{settings: provider, now: time.Now}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// ID returns a stable module identifier.
func (Module) ID() string { return "public" }

// Routes wires the public route handlers onto the mux.
func (m Module) Routes(mux *http.ServeMux) {
	h := handlers{settings: m.settings, now: m.now}
	registerRoutes(mux, h)
}

// Package authweb serves the login, logout, and password routes.
package authweb

import (
	"net/http"
	"time"

	"github.com/vereinswerk/portal/internal/auth"
	"github.com/vereinswerk/portal/internal/mail"
	"github.com/vereinswerk/portal/internal/web/platform/requestmeta"
)

// Option configures an auth module.
type Option func(*Module)

// WithMailer sets the sender used for password reset mail.
func WithMailer(sender mail.Sender) Option {
	return func(m *Module) { m.mailer = sender }
}

// WithBaseURL sets the public portal URL used in reset links.
func WithBaseURL(baseURL string) Option {
	return func(m *Module) { m.baseURL = baseURL }
}

// WithSchemePolicy sets the request scheme policy for cookie handling.
func WithSchemePolicy(p requestmeta.SchemePolicy) Option {
	return func(m *Module) { m.scheme = p }
}

// WithSessionTTL overrides the cookie lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(m *Module) { m.sessionTTL = ttl }
}

// Module provides authentication routes.
type Module struct {
	service    authService
	mailer     mail.Sender
	baseURL    string
	scheme     requestmeta.SchemePolicy
	sessionTTL time.Duration
}

// New returns an auth module backed by the given service.
func New(service authService, opts ...Option) Module {
	m := Module{
		service:    service,
		sessionTTL: auth.DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// ID returns a stable module identifier.
func (Module) ID() string { return "auth" }

// Routes wires the auth route handlers onto the mux.
func (m Module) Routes(mux *http.ServeMux) {
	h := newHandlers(m.service, m.mailer, m.baseURL, m.scheme, m.sessionTTL)
	registerRoutes(mux, h, m.service)
}

// Package web assembles the portal's HTTP surface from its route modules.
package web

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/vereinswerk/portal/internal/platform/timeouts"
	"github.com/vereinswerk/portal/internal/web/platform/httpx"
)

// Mountable is one route module of the portal.
type Mountable interface {
	// ID returns a stable module identifier.
	ID() string
	// Routes registers the module's handlers on the mux.
	Routes(mux *http.ServeMux)
}

// Server serves the portal API over HTTP.
type Server struct {
	addr       string
	httpServer *http.Server
}

// NewServer builds the HTTP server from the given modules. Every request
// passes through request-id tagging and panic recovery.
func NewServer(addr string, modules ...Mountable) *Server {
	mux := http.NewServeMux()
	for _, module := range modules {
		if module == nil {
			continue
		}
		module.Routes(mux)
		log.Printf("[WEB] mounted module %s", module.ID())
	}
	handler := httpx.Chain(mux, httpx.RequestID(), httpx.RecoverPanic())
	return &Server{
		addr: addr,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
	}
}

// Handler exposes the assembled handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe runs the HTTP server until the context ends.
//
// On cancellation, in-flight requests are drained within a bounded
// shutdown window before hard close.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("web server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("[WEB] listening on %s", s.addr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

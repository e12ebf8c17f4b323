package publicweb

import "net/http"

func registerRoutes(mux *http.ServeMux, h handlers) {
	if mux == nil {
		return
	}
	mux.Handle("GET /api/public/settings", http.HandlerFunc(h.handleSettings))
	mux.Handle("GET /api/public/health", http.HandlerFunc(h.handleHealth))
	mux.Handle("GET /health", http.HandlerFunc(h.handleHealth))
}

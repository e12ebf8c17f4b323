package publicweb

import (
	"net/http"
	"time"

	"github.com/vereinswerk/portal/internal/web/platform/httpx"
)

type handlers struct {
	settings publicSettings
	now      func() time.Time
}

func (h handlers) handleSettings(w http.ResponseWriter, r *http.Request) {
	_ = httpx.WriteJSON(w, http.StatusOK, h.settings.Public())
}

func (h handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

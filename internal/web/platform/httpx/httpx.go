// Package httpx provides HTTP middleware and JSON helpers used by web
// modules.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	perrors "github.com/vereinswerk/portal/internal/platform/errors"
)

// Middleware wraps an HTTP handler.
type Middleware func(http.Handler) http.Handler

var requestIDCounter atomic.Uint64

// Chain applies middleware in declaration order.
func Chain(handler http.Handler, middleware ...Middleware) http.Handler {
	if handler == nil {
		handler = http.NotFoundHandler()
	}
	wrapped := handler
	for idx := len(middleware) - 1; idx >= 0; idx-- {
		if middleware[idx] == nil {
			continue
		}
		wrapped = middleware[idx](wrapped)
	}
	return wrapped
}

// RequestID injects and echoes a request id for correlation.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = fmt.Sprintf("portal-%d-%d", time.Now().UnixNano(), requestIDCounter.Add(1))
				r.Header.Set("X-Request-ID", requestID)
			}
			w.Header().Set("X-Request-ID", requestID)
			next.ServeHTTP(w, r)
		})
	}
}

// RecoverPanic converts panics into HTTP 500 responses.
func RecoverPanic() Middleware {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					path := "-"
					method := "-"
					requestID := "-"
					if r != nil {
						path = strings.TrimSpace(r.URL.Path)
						method = strings.TrimSpace(r.Method)
						if rid := strings.TrimSpace(r.Header.Get("X-Request-ID")); rid != "" {
							requestID = rid
						}
					}
					log.Printf(
						"panic recovered method=%s path=%s request_id=%s panic=%v stack=%s",
						method,
						path,
						requestID,
						recovered,
						strings.TrimSpace(string(debug.Stack())),
					)
					WriteJSONError(w, http.StatusInternalServerError, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// WriteJSON writes a JSON response with the provided status code.
func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return fmt.Errorf("response writer is required")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}

// WriteJSONError writes a JSON error response with the given status code and
// message.
func WriteJSONError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]any{"error": message})
}

// WriteError writes an error response mapped through the portal error
// taxonomy. Clients get the generic message for the code; field detail goes
// out only for validation errors, and 5xx causes are logged server-side.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	if w == nil {
		return
	}
	if err == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	code := perrors.CodeOf(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		path := "-"
		requestID := "-"
		if r != nil {
			path = r.URL.Path
			if rid := strings.TrimSpace(r.Header.Get("X-Request-ID")); rid != "" {
				requestID = rid
			}
		}
		log.Printf("request failed path=%s request_id=%s code=%s err=%v", path, requestID, code, err)
	}

	payload := map[string]any{"error": clientMessage(code, err)}
	if code == perrors.CodeValidation {
		var pe *perrors.Error
		if errors.As(err, &pe) && len(pe.Metadata) > 0 {
			payload["fields"] = pe.Metadata
		}
	}
	_ = WriteJSON(w, status, payload)
}

func clientMessage(code perrors.Code, err error) string {
	switch code {
	case perrors.CodeInvalidCredentials:
		return "E-Mail oder Passwort falsch"
	case perrors.CodeNoPasswordSet:
		return "Für diese E-Mail ist noch kein Passwort gesetzt"
	case perrors.CodeSessionInvalid:
		return "Bitte erneut anmelden"
	case perrors.CodeForbidden:
		return "Kein Zugriff"
	case perrors.CodeNotFound:
		return "Nicht gefunden"
	case perrors.CodeValidation:
		return err.Error()
	case perrors.CodeDirectoryUnavailable:
		return "Mitgliederverzeichnis nicht erreichbar"
	case perrors.CodeMailNotConfigured:
		return "E-Mail-Versand ist nicht konfiguriert"
	default:
		return "Interner Fehler"
	}
}

// DecodeJSON decodes a request body into dst, rejecting unknown fields and
// oversized bodies.
func DecodeJSON(r *http.Request, dst any) error {
	if r == nil || r.Body == nil {
		return perrors.New(perrors.CodeValidation, "request body is required")
	}
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return perrors.Wrap(perrors.CodeValidation, "invalid request body", err)
	}
	return nil
}

// RequestContext returns r.Context() with a nil-safe fallback.
func RequestContext(r *http.Request) context.Context {
	if r == nil {
		return context.Background()
	}
	return r.Context()
}

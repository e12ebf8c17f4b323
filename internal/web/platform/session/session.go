// Package session carries the authenticated identity through request
// contexts and gates handlers behind a valid portal session.
package session

import (
	"context"
	"net/http"
	"strings"

	"github.com/vereinswerk/portal/internal/auth"
	perrors "github.com/vereinswerk/portal/internal/platform/errors"
	"github.com/vereinswerk/portal/internal/web/platform/httpx"
	"github.com/vereinswerk/portal/internal/web/platform/sessioncookie"
)

type contextKey struct{}

// Validator resolves a session token to an identity.
type Validator interface {
	ValidateSession(ctx context.Context, tok string) (*auth.Identity, error)
	IsAdminEmail(ctx context.Context, email string) bool
}

// WithIdentity returns a context carrying the identity.
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// From returns the identity stored in the context, if any.
func From(ctx context.Context) (*auth.Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(*auth.Identity)
	return identity, ok && identity != nil
}

// TokenFromRequest extracts the session token from the session cookie or,
// failing that, from a bearer Authorization header.
func TokenFromRequest(r *http.Request) (string, bool) {
	if tok, ok := sessioncookie.Read(r); ok {
		return tok, true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		tok := strings.TrimSpace(header[len(prefix):])
		return tok, tok != ""
	}
	return "", false
}

// Require rejects requests without a valid session.
func Require(validator Validator) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := identify(validator, r)
			if err != nil {
				httpx.WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireAdmin rejects requests whose session does not belong to an
// administrator.
func RequireAdmin(validator Validator) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := identify(validator, r)
			if err != nil {
				httpx.WriteError(w, r, err)
				return
			}
			if !validator.IsAdminEmail(r.Context(), identity.Email) {
				httpx.WriteError(w, r, perrors.New(perrors.CodeForbidden, "admin access required"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// Optional attaches an identity when a valid session is present and lets
// anonymous requests pass through untouched.
func Optional(validator Validator) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if identity, err := identify(validator, r); err == nil {
				r = r.WithContext(WithIdentity(r.Context(), identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func identify(validator Validator, r *http.Request) (*auth.Identity, error) {
	tok, ok := TokenFromRequest(r)
	if !ok {
		return nil, perrors.New(perrors.CodeSessionInvalid, "missing session token")
	}
	return validator.ValidateSession(r.Context(), tok)
}

package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vereinswerk/portal/internal/auth"
	perrors "github.com/vereinswerk/portal/internal/platform/errors"
	"github.com/vereinswerk/portal/internal/web/platform/sessioncookie"
)

type fakeValidator struct {
	identities map[string]*auth.Identity
	admins     map[string]bool
}

func (f *fakeValidator) ValidateSession(_ context.Context, tok string) (*auth.Identity, error) {
	if identity, ok := f.identities[tok]; ok {
		return identity, nil
	}
	return nil, perrors.New(perrors.CodeSessionInvalid, "session not found")
}

func (f *fakeValidator) IsAdminEmail(_ context.Context, email string) bool {
	return f.admins[email]
}

func newFakeValidator() *fakeValidator {
	return &fakeValidator{
		identities: map[string]*auth.Identity{
			"member-token": {Email: "mitglied@verein.de", MemberID: "10", AbteilungID: "5"},
			"admin-token":  {Email: "vorstand@verein.de", MemberID: "1", AbteilungID: "2"},
		},
		admins: map[string]bool{"vorstand@verein.de": true},
	}
}

func echoIdentity(t *testing.T, want string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := From(r.Context())
		if !ok {
			t.Fatal("expected identity in context")
		}
		if identity.Email != want {
			t.Fatalf("expected %q, got %q", want, identity.Email)
		}
	})
}

func TestTokenFromRequest(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := TokenFromRequest(request); ok {
		t.Fatal("expected no token on bare request")
	}

	request.Header.Set("Authorization", "Bearer abc123")
	tok, ok := TokenFromRequest(request)
	if !ok || tok != "abc123" {
		t.Fatalf("expected bearer token, got %q ok=%v", tok, ok)
	}

	request.AddCookie(&http.Cookie{Name: sessioncookie.Name, Value: "cookie-token"})
	tok, ok = TokenFromRequest(request)
	if !ok || tok != "cookie-token" {
		t.Fatalf("expected cookie to win over header, got %q ok=%v", tok, ok)
	}
}

func TestRequireRejectsWithoutSession(t *testing.T) {
	handler := Require(newFakeValidator())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a session")
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestRequireRejectsInvalidToken(t *testing.T) {
	handler := Require(newFakeValidator())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for an invalid token")
	}))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.AddCookie(&http.Cookie{Name: sessioncookie.Name, Value: "stale"})
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestRequireAttachesIdentity(t *testing.T) {
	handler := Require(newFakeValidator())(echoIdentity(t, "mitglied@verein.de"))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.AddCookie(&http.Cookie{Name: sessioncookie.Name, Value: "member-token"})
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}

func TestRequireAdminRejectsMembers(t *testing.T) {
	handler := RequireAdmin(newFakeValidator())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for non-admins")
	}))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.AddCookie(&http.Cookie{Name: sessioncookie.Name, Value: "member-token"})
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", recorder.Code)
	}
}

func TestRequireAdminAllowsAdmins(t *testing.T) {
	handler := RequireAdmin(newFakeValidator())(echoIdentity(t, "vorstand@verein.de"))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.AddCookie(&http.Cookie{Name: sessioncookie.Name, Value: "admin-token"})
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}

func TestOptionalPassesAnonymous(t *testing.T) {
	handler := Optional(newFakeValidator())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := From(r.Context()); ok {
			t.Fatal("expected no identity for anonymous request")
		}
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}

func TestOptionalAttachesIdentityWhenPresent(t *testing.T) {
	handler := Optional(newFakeValidator())(echoIdentity(t, "mitglied@verein.de"))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("Authorization", "Bearer member-token")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}

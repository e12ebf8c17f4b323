package adminweb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vereinswerk/portal/internal/auth"
	"github.com/vereinswerk/portal/internal/directory"
	perrors "github.com/vereinswerk/portal/internal/platform/errors"
	"github.com/vereinswerk/portal/internal/settings"
	"github.com/vereinswerk/portal/internal/web/platform/sessioncookie"
)

type fakeSettingsGateway struct {
	all     settings.All
	updates map[string]string
}

func (f *fakeSettingsGateway) All() settings.All { return f.all }

func (f *fakeSettingsGateway) Update(updates map[string]string) error {
	f.updates = updates
	return nil
}

type fakeTestMailer struct {
	sentTo  []string
	sendErr error
}

func (f *fakeTestMailer) SendTest(_ context.Context, to string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sentTo = append(f.sentTo, to)
	return nil
}

type fakeMemberSearcher struct {
	queries []string
	results []directory.MemberSummary
}

func (f *fakeMemberSearcher) Search(_ context.Context, query string) ([]directory.MemberSummary, error) {
	f.queries = append(f.queries, query)
	if len(query) < 2 {
		return nil, nil
	}
	return f.results, nil
}

type fakeValidator struct{}

func (fakeValidator) ValidateSession(_ context.Context, tok string) (*auth.Identity, error) {
	switch tok {
	case "member-token":
		return &auth.Identity{Email: "mitglied@verein.de"}, nil
	case "admin-token":
		return &auth.Identity{Email: "vorstand@verein.de"}, nil
	default:
		return nil, perrors.New(perrors.CodeSessionInvalid, "session not found")
	}
}

func (fakeValidator) IsAdminEmail(_ context.Context, email string) bool {
	return email == "vorstand@verein.de"
}

func newTestMux(gateway *fakeSettingsGateway, mailer *fakeTestMailer, searcher *fakeMemberSearcher) *http.ServeMux {
	mux := http.NewServeMux()
	New(gateway, mailer, searcher, fakeValidator{}).Routes(mux)
	return mux
}

func requestAs(token, method, target, body string) *http.Request {
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, target, nil)
	} else {
		request = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	request.AddCookie(&http.Cookie{Name: sessioncookie.Name, Value: token})
	return request
}

func TestSettingsRequireAdmin(t *testing.T) {
	mux := newTestMux(&fakeSettingsGateway{}, &fakeTestMailer{}, &fakeMemberSearcher{})

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, requestAs("member-token", http.MethodGet, "/api/admin/settings", ""))
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", recorder.Code)
	}
}

func TestGetSettingsNeverEchoesSMTPPassword(t *testing.T) {
	gateway := &fakeSettingsGateway{
		all: settings.All{
			Public: settings.Public{SiteTitle: "Mitgliederportal"},
			SMTP:   settings.SMTP{Host: "mail.verein.de", Pass: "streng-geheim"},
		},
	}
	mux := newTestMux(gateway, &fakeTestMailer{}, &fakeMemberSearcher{})

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, requestAs("admin-token", http.MethodGet, "/api/admin/settings", ""))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	body := recorder.Body.String()
	if strings.Contains(body, "streng-geheim") {
		t.Fatalf("SMTP password leaked: %s", body)
	}
	if !strings.Contains(body, "mail.verein.de") {
		t.Fatalf("expected SMTP host in response: %s", body)
	}
}

func TestUpdateSettingsMapsFieldsToEnvKeys(t *testing.T) {
	gateway := &fakeSettingsGateway{}
	mux := newTestMux(gateway, &fakeTestMailer{}, &fakeMemberSearcher{})

	body := `{"siteTitle":"SV Portal","theme":{"accent":"#005500"},"adminMenu":["settings","smtp"],"smtp":{"host":"mail.verein.de","port":465,"secure":true,"pass":"neu-geheim"},"mailLayout":{"headerHtml":"<div>Kopf</div>"}}`
	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, requestAs("admin-token", http.MethodPost, "/api/admin/settings", body))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	want := map[string]string{
		"SITE_TITLE":        "SV Portal",
		"ACCENT_COLOR":      "#005500",
		"ADMIN_MENU":        "settings,smtp",
		"SMTP_HOST":         "mail.verein.de",
		"SMTP_PORT":         "465",
		"SMTP_SECURE":       "true",
		"SMTP_PASS":         "neu-geheim",
		"EMAIL_HEADER_HTML": "<div>Kopf</div>",
	}
	for key, value := range want {
		if gateway.updates[key] != value {
			t.Fatalf("expected %s=%q, got %q", key, value, gateway.updates[key])
		}
	}
}

func TestUpdateSettingsKeepsStoredPasswordOnBlank(t *testing.T) {
	gateway := &fakeSettingsGateway{}
	mux := newTestMux(gateway, &fakeTestMailer{}, &fakeMemberSearcher{})

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, requestAs("admin-token", http.MethodPost, "/api/admin/settings",
		`{"smtp":{"host":"mail.verein.de","pass":"  "}}`))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if _, ok := gateway.updates["SMTP_PASS"]; ok {
		t.Fatal("blank password must not overwrite the stored one")
	}
}

func TestSMTPTestRequiresRecipient(t *testing.T) {
	mux := newTestMux(&fakeSettingsGateway{}, &fakeTestMailer{}, &fakeMemberSearcher{})

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, requestAs("admin-token", http.MethodPost, "/api/admin/smtp/test", `{"to":""}`))
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestSMTPTestSendsMail(t *testing.T) {
	mailer := &fakeTestMailer{}
	mux := newTestMux(&fakeSettingsGateway{}, mailer, &fakeMemberSearcher{})

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, requestAs("admin-token", http.MethodPost, "/api/admin/smtp/test",
		`{"to":"vorstand@verein.de"}`))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if len(mailer.sentTo) != 1 || mailer.sentTo[0] != "vorstand@verein.de" {
		t.Fatalf("unexpected test mails %v", mailer.sentTo)
	}
}

func TestSMTPTestReportsNotConfigured(t *testing.T) {
	mailer := &fakeTestMailer{sendErr: perrors.New(perrors.CodeMailNotConfigured, "smtp not configured")}
	mux := newTestMux(&fakeSettingsGateway{}, mailer, &fakeMemberSearcher{})

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, requestAs("admin-token", http.MethodPost, "/api/admin/smtp/test",
		`{"to":"vorstand@verein.de"}`))
	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
}

func TestMemberSearch(t *testing.T) {
	searcher := &fakeMemberSearcher{
		results: []directory.MemberSummary{
			{ID: "10", Vorname: "Anna", Nachname: "Muster", Email: "anna@verein.de"},
		},
	}
	mux := newTestMux(&fakeSettingsGateway{}, &fakeTestMailer{}, searcher)

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, requestAs("admin-token", http.MethodGet, "/api/admin/members?q=mu", ""))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var payload struct {
		Items []struct {
			ID       string `json:"id"`
			Nachname string `json:"nachname"`
		} `json:"items"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].Nachname != "Muster" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestMemberSearchShortQueryReturnsEmptyList(t *testing.T) {
	searcher := &fakeMemberSearcher{}
	mux := newTestMux(&fakeSettingsGateway{}, &fakeTestMailer{}, searcher)

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, requestAs("admin-token", http.MethodGet, "/api/admin/members?q=m", ""))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `"items":[]`) {
		t.Fatalf("expected empty items, got %s", recorder.Body.String())
	}
}

package eventsweb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vereinswerk/portal/internal/auth"
	"github.com/vereinswerk/portal/internal/events"
	perrors "github.com/vereinswerk/portal/internal/platform/errors"
	"github.com/vereinswerk/portal/internal/store"
	"github.com/vereinswerk/portal/internal/web/platform/sessioncookie"
)

type fakeEventService struct {
	publicOnly    []events.Summary
	memberList    []events.Summary
	detail        events.Detail
	detailErr     error
	registered    map[string]string
	votes         map[string]string
	created       []events.Input
	createdBy     []string
	updated       map[string]events.Input
	deleted       []string
	registrations []store.Registration
}

func (f *fakeEventService) VisibleEvents(_ context.Context, viewer *auth.Identity) ([]events.Summary, error) {
	if viewer == nil {
		return f.publicOnly, nil
	}
	return f.memberList, nil
}

func (f *fakeEventService) EventDetail(_ context.Context, id string, _ *auth.Identity) (events.Detail, error) {
	if f.detailErr != nil {
		return events.Detail{}, f.detailErr
	}
	return f.detail, nil
}

func (f *fakeEventService) Register(_ context.Context, id string, viewer *auth.Identity, name string) error {
	if viewer == nil {
		return perrors.New(perrors.CodeSessionInvalid, "no session")
	}
	if f.registered == nil {
		f.registered = map[string]string{}
	}
	f.registered[id] = name
	return nil
}

func (f *fakeEventService) Vote(_ context.Context, eventID, email, optionID string) error {
	if f.votes == nil {
		f.votes = map[string]string{}
	}
	f.votes[eventID] = optionID
	return nil
}

func (f *fakeEventService) Create(_ context.Context, input events.Input, createdBy string) (string, error) {
	f.created = append(f.created, input)
	f.createdBy = append(f.createdBy, createdBy)
	return "e-1", nil
}

func (f *fakeEventService) Update(_ context.Context, id string, input events.Input) error {
	if f.updated == nil {
		f.updated = map[string]events.Input{}
	}
	f.updated[id] = input
	return nil
}

func (f *fakeEventService) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeEventService) AllEvents(_ context.Context) ([]events.Summary, error) {
	return append(f.publicOnly, f.memberList...), nil
}

func (f *fakeEventService) Registrations(_ context.Context, eventID string) ([]store.Registration, error) {
	return f.registrations, nil
}

type fakeValidator struct{}

func (fakeValidator) ValidateSession(_ context.Context, tok string) (*auth.Identity, error) {
	switch tok {
	case "member-token":
		return &auth.Identity{Email: "mitglied@verein.de", MemberID: "10", AbteilungID: "5"}, nil
	case "admin-token":
		return &auth.Identity{Email: "vorstand@verein.de", MemberID: "1", AbteilungID: "2"}, nil
	default:
		return nil, perrors.New(perrors.CodeSessionInvalid, "session not found")
	}
}

func (fakeValidator) IsAdminEmail(_ context.Context, email string) bool {
	return email == "vorstand@verein.de"
}

func newTestMux(service *fakeEventService) *http.ServeMux {
	mux := http.NewServeMux()
	New(service, fakeValidator{}).Routes(mux)
	return mux
}

func requestAs(token, method, target, body string) *http.Request {
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, target, nil)
	} else {
		request = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if token != "" {
		request.AddCookie(&http.Cookie{Name: sessioncookie.Name, Value: token})
	}
	return request
}

func decodeEvents(t *testing.T, recorder *httptest.ResponseRecorder) []events.Summary {
	t.Helper()
	var payload struct {
		Events []events.Summary `json:"events"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return payload.Events
}

func TestListAnonymousSeesPublicOnly(t *testing.T) {
	service := &fakeEventService{
		publicOnly: []events.Summary{{ID: "e-1", Title: "Tag der offenen Tür", IsPublic: true}},
		memberList: []events.Summary{
			{ID: "e-1", Title: "Tag der offenen Tür", IsPublic: true},
			{ID: "e-2", Title: "Abteilungstreffen"},
		},
	}
	mux := newTestMux(service)

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, requestAs("", http.MethodGet, "/api/events", ""))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if list := decodeEvents(t, recorder); len(list) != 1 || list[0].ID != "e-1" {
		t.Fatalf("anonymous list must be the public subset, got %+v", list)
	}
}

func TestListWithSessionSeesMemberEvents(t *testing.T) {
	service := &fakeEventService{
		memberList: []events.Summary{{ID: "e-1"}, {ID: "e-2"}},
	}
	mux := newTestMux(service)

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, requestAs("member-token", http.MethodGet, "/api/events", ""))

	if list := decodeEvents(t, recorder); len(list) != 2 {
		t.Fatalf("expected member list, got %+v", list)
	}
}

func TestDetailNotFound(t *testing.T) {
	service := &fakeEventService{detailErr: perrors.New(perrors.CodeNotFound, "event not found")}
	mux := newTestMux(service)

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, requestAs("", http.MethodGet, "/api/events/e-404", ""))
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestDetailReturnsPollAndRegistration(t *testing.T) {
	service := &fakeEventService{
		detail: events.Detail{
			ID:    "e-1",
			Title: "Sommerfest",
			Price: "12,50",
			Poll: &events.Poll{
				ID:       "p-1",
				Question: "Kommst du?",
				Options:  []events.PollOption{{ID: "o-1", Text: "Ja"}, {ID: "o-2", Text: "Nein"}},
			},
		},
	}
	mux := newTestMux(service)

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, requestAs("member-token", http.MethodGet, "/api/events/e-1", ""))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var payload events.Detail
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.Price != "12,50" || payload.Poll == nil || len(payload.Poll.Options) != 2 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestRegisterRequiresSession(t *testing.T) {
	mux := newTestMux(&fakeEventService{})

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, requestAs("", http.MethodPost, "/api/events/e-1/register", `{"name":"Anna"}`))
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestRegisterForwardsName(t *testing.T) {
	service := &fakeEventService{}
	mux := newTestMux(service)

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, requestAs("member-token", http.MethodPost, "/api/events/e-1/register", `{"name":"Anna Muster"}`))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if service.registered["e-1"] != "Anna Muster" {
		t.Fatalf("unexpected registrations %v", service.registered)
	}
}

func TestVote(t *testing.T) {
	service := &fakeEventService{}
	mux := newTestMux(service)

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, requestAs("member-token", http.MethodPost, "/api/events/e-1/vote", `{"optionId":"o-2"}`))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if service.votes["e-1"] != "o-2" {
		t.Fatalf("unexpected votes %v", service.votes)
	}
}

func TestAdminListRequiresAdmin(t *testing.T) {
	mux := newTestMux(&fakeEventService{})

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, requestAs("member-token", http.MethodGet, "/api/events/admin/all", ""))
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", recorder.Code)
	}
}

func TestCreateEvent(t *testing.T) {
	service := &fakeEventService{}
	mux := newTestMux(service)

	body := `{"title":"Sommerfest","startsAt":"2026-09-12T14:00:00Z","price":"12,50","isPublic":false,"targetAll":true,"pollQuestion":"Kommst du?","pollOptions":"Ja\nNein"}`
	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, requestAs("admin-token", http.MethodPost, "/api/events", body))

	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if len(service.created) != 1 {
		t.Fatalf("expected one creation, got %d", len(service.created))
	}
	created := service.created[0]
	if created.Title != "Sommerfest" || created.PollQuestion != "Kommst du?" {
		t.Fatalf("unexpected input %+v", created)
	}
	if service.createdBy[0] != "vorstand@verein.de" {
		t.Fatalf("author must come from the session, got %q", service.createdBy[0])
	}
}

func TestUpdateAndDeleteEvent(t *testing.T) {
	service := &fakeEventService{}
	mux := newTestMux(service)

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, requestAs("admin-token", http.MethodPut, "/api/events/e-1", `{"title":"Neu"}`))
	if recorder.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", recorder.Code)
	}
	if service.updated["e-1"].Title != "Neu" {
		t.Fatalf("unexpected updates %v", service.updated)
	}

	recorder = httptest.NewRecorder()
	mux.ServeHTTP(recorder, requestAs("admin-token", http.MethodDelete, "/api/events/e-1", ""))
	if recorder.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", recorder.Code)
	}
	if len(service.deleted) != 1 || service.deleted[0] != "e-1" {
		t.Fatalf("unexpected deletions %v", service.deleted)
	}
}

func TestRegistrationsListing(t *testing.T) {
	service := &fakeEventService{
		registrations: []store.Registration{
			{EventID: "e-1", Email: "a@verein.de", MemberID: "10", Name: "Anna", CreatedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)},
		},
	}
	mux := newTestMux(service)

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, requestAs("admin-token", http.MethodGet, "/api/events/e-1/registrations", ""))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var payload struct {
		Registrations []struct {
			Email     string `json:"email"`
			MemberID  string `json:"memberId"`
			Name      string `json:"name"`
			CreatedAt string `json:"createdAt"`
		} `json:"registrations"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(payload.Registrations) != 1 || payload.Registrations[0].Name != "Anna" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Registrations[0].CreatedAt != "2026-08-01T10:00:00Z" {
		t.Fatalf("unexpected timestamp %q", payload.Registrations[0].CreatedAt)
	}
}

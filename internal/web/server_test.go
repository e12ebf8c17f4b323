package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type pingModule struct{}

func (pingModule) ID() string { return "ping" }

func (pingModule) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type panicModule struct{}

func (panicModule) ID() string { return "panic" }

func (panicModule) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
}

func TestServerMountsModules(t *testing.T) {
	server := NewServer("127.0.0.1:0", pingModule{}, nil)

	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if recorder.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id on every response")
	}
}

func TestServerRecoversPanics(t *testing.T) {
	server := NewServer("127.0.0.1:0", panicModule{})

	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
}

func TestServerUnknownRouteIs404(t *testing.T) {
	server := NewServer("127.0.0.1:0", pingModule{})

	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestListenAndServeStopsOnContextCancel(t *testing.T) {
	server := NewServer("127.0.0.1:0", pingModule{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.ListenAndServe(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after context cancel")
	}
}

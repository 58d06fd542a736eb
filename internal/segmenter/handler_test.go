package segmenter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func newTestRouter(t *testing.T) (*chi.Mux, *Controller) {
	t.Helper()
	ctrl, _ := newTestController(t, nil)
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	r := chi.NewRouter()
	NewHandler(ctrl, log).Routes(r)
	return r, ctrl
}

func TestHandler_GetStatus_stopped(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
	var st Status
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.State != StateStopped {
		t.Errorf("expected stopped, got %q", st.State)
	}
}

func TestHandler_GetStatus_started(t *testing.T) {
	r, ctrl := newTestRouter(t)
	ctrl.Start()
	cycle(t, ctrl, 0, 6*time.Second)
	cycle(t, ctrl, 6*time.Second, 12*time.Second)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var st Status
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.State != StateStarted || st.NextSequence != 2 || len(st.Entries) != 2 {
		t.Errorf("unexpected status: %+v", st)
	}
	if st.Entries[1].Path != "segment00001.ts" {
		t.Errorf("expected segment00001.ts, got %q", st.Entries[1].Path)
	}
}

func TestHandler_GetEntry(t *testing.T) {
	r, ctrl := newTestRouter(t)
	ctrl.Start()
	cycle(t, ctrl, 0, 6*time.Second)

	tests := []struct {
		path string
		code int
	}{
		{"/status/entries/0", http.StatusOK},
		{"/status/entries/1", http.StatusNotFound},
		{"/status/entries/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tt.code {
			t.Errorf("GET %s: expected %d, got %d", tt.path, tt.code, rec.Code)
		}
	}
}

func TestHandler_method_not_allowed(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/status", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_level_and_format(t *testing.T) {
	var b bytes.Buffer
	log := New(&b, "warn", "json")
	log.Info("hidden")
	log.Warn("shown", slog.String("k", "v"))

	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "v", rec["k"])

	b.Reset()
	New(&b, "", "TEXT").Info("plain")
	assert.Contains(t, b.String(), "msg=plain")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestWithRunID(t *testing.T) {
	var b bytes.Buffer
	log, id := WithRunID(New(&b, "info", "json"))
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	log.Info("tagged")
	assert.Contains(t, b.String(), `"run_id":"`+id+`"`)
}

func TestRequestLogger_route_pattern(t *testing.T) {
	var b bytes.Buffer
	r := chi.NewRouter()
	r.Use(RequestLogger(New(&b, "debug", "json")))
	r.Get("/status/entries/{sequence}", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/status/entries/7", nil))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(b.Bytes()), &rec))
	assert.Equal(t, "/status/entries/{sequence}", rec["route"])
	assert.Equal(t, "/status/entries/7", rec["path"])
	assert.Equal(t, float64(http.StatusOK), rec["status"])
}

func TestRequestLogger(t *testing.T) {
	var b bytes.Buffer
	log := New(&b, "debug", "json")
	h := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	require.Len(t, lines, 2)

	var ok, missing map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ok))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &missing))
	assert.Equal(t, "DEBUG", ok["level"])
	assert.Equal(t, float64(2), ok["size"])
	assert.Equal(t, "WARN", missing["level"])
	assert.Equal(t, float64(http.StatusNotFound), missing["status"])
}

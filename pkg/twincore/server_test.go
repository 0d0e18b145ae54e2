package twincore

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// ---------------------------------------------------------------------------
// JSON / Error helpers
// ---------------------------------------------------------------------------

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, map[string]string{"id": "sub_1"})

	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal body: %v", err)
	}
	if body["id"] != "sub_1" {
		t.Errorf("expected id=sub_1, got %+v", body)
	}
}

func TestJSONNilBody(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusNoContent, nil)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %s", rec.Body.String())
	}
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusNotFound, "Subscription with ID 7 not found")

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if body["error"] != "Subscription with ID 7 not found" {
		t.Errorf("unexpected error body: %+v", body)
	}
}

// ---------------------------------------------------------------------------
// Flags
// ---------------------------------------------------------------------------

func TestParseFlagsDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := ParseFlags("twin-subscriptions", nil)
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("expected port %d, got %d", DefaultPort, cfg.Port)
	}
	if cfg.Name != "twin-subscriptions" {
		t.Errorf("expected name twin-subscriptions, got %q", cfg.Name)
	}
}

func TestParseFlagsValues(t *testing.T) {
	cfg, err := ParseFlags("t", []string{
		"--port", "9001", "--latency", "50ms", "--fail-rate", "0.25",
		"--seed-file", "seed.json", "--verbose", "--auth-secret", "k",
	})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if cfg.Port != 9001 || cfg.Latency != 50*time.Millisecond || cfg.FailRate != 0.25 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.SeedFile != "seed.json" || !cfg.Verbose || cfg.AuthSecret != "k" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestParseFlagsPortEnvFallback(t *testing.T) {
	t.Setenv("PORT", "7070")
	cfg, err := ParseFlags("t", nil)
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if cfg.Port != 7070 {
		t.Errorf("expected PORT fallback 7070, got %d", cfg.Port)
	}

	cfg, err = ParseFlags("t", []string{"--port", "9000"})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("expected explicit flag to win, got %d", cfg.Port)
	}
}

func TestParseFlagsRejectsBadValues(t *testing.T) {
	for _, args := range [][]string{
		{"--fail-rate", "1.5"},
		{"--latency", "-1s"},
		{"--port", "abc"},
		{"--unknown"},
	} {
		if _, err := ParseFlags("t", args); err == nil {
			t.Errorf("expected error for %v", args)
		}
	}
}

// ---------------------------------------------------------------------------
// Twin
// ---------------------------------------------------------------------------

func TestNewTwin(t *testing.T) {
	cfg := &Config{Port: 9999, Name: "test-twin"}
	twin := NewWithLogger(cfg, quietLogger())

	if twin.Config != cfg {
		t.Error("expected Config to match")
	}
	if twin.Router == nil || twin.Logger == nil || twin.Middleware() == nil || twin.Metrics() == nil {
		t.Error("expected router, logger, middleware, and metrics to be set")
	}
}

func TestTwinUpdateConfig(t *testing.T) {
	twin := NewWithLogger(&Config{Name: "t"}, quietLogger())

	err := twin.UpdateConfig(map[string]any{"latency": "10ms", "fail_rate": 0.5, "verbose": true})
	if err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	got := twin.GetConfig()
	if got["latency"] != "10ms" || got["fail_rate"] != 0.5 || got["verbose"] != true {
		t.Errorf("unexpected config after update: %+v", got)
	}
}

func TestTwinUpdateConfigIsAtomic(t *testing.T) {
	twin := NewWithLogger(&Config{Name: "t"}, quietLogger())

	err := twin.UpdateConfig(map[string]any{"latency": "10ms", "fail_rate": 3.0})
	if err == nil {
		t.Fatal("expected error for out-of-range fail_rate")
	}
	if twin.GetConfig()["latency"] != "0s" {
		t.Error("expected no field applied when validation fails")
	}
	if err := twin.UpdateConfig(map[string]any{"port": 1}); err == nil {
		t.Error("expected port to be immutable")
	}
}

func TestTwinMetricsUseRoutePattern(t *testing.T) {
	twin := NewWithLogger(&Config{Name: "t"}, quietLogger())
	twin.Router.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"id": chi.URLParam(r, "id")})
	})
	twin.Router.Get("/metrics", twin.Metrics().Handler().ServeHTTP)

	srv := httptest.NewServer(twin)
	defer srv.Close()

	for _, id := range []string{"a", "b", "c"} {
		resp, err := http.Get(srv.URL + "/items/" + id)
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	want := `twin_http_requests_total{code="200",method="GET",route="/items/{id}"} 3`
	if !strings.Contains(string(body), want) {
		t.Errorf("expected metrics to contain %q\n%s", want, body)
	}
}

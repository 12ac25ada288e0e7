package health_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crewfund/crew/internal/app/features/health"
	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/testutil"
	"go.uber.org/zap"
)

type healthBody struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Backend  string `json:"backend"`
	Error    string `json:"error"`
}

func TestServe_DatabaseConnected(t *testing.T) {
	ds := testutil.NewMemStore(t)
	handler := health.NewHandler(ds, "memory", zap.NewNop())

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()

	handler.Serve(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", contentType, "application/json")
	}

	var response healthBody
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response.Status != "ok" {
		t.Errorf("status: got %q, want %q", response.Status, "ok")
	}
	if response.Database != "connected" {
		t.Errorf("database: got %q, want %q", response.Database, "connected")
	}
	if response.Backend != "memory" {
		t.Errorf("backend: got %q, want %q", response.Backend, "memory")
	}
}

func TestServe_DatabaseDown(t *testing.T) {
	ds := testutil.NewMemStore(t)
	ds.FailAll(docstore.ErrUnavailable)
	handler := health.NewHandler(ds, "memory", zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Serve(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
	var response healthBody
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response.Status != "error" || response.Database != "disconnected" {
		t.Errorf("response = %+v", response)
	}
	if response.Error == "" {
		t.Error("expected error detail")
	}
}

func TestRoutes(t *testing.T) {
	r := health.Routes(health.NewHandler(testutil.NewMemStore(t), "memory", zap.NewNop()))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET / via router: got %d", rec.Code)
	}
}

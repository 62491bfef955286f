package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)
	handler := NewHealthHandler(app.db, app.backend, "test-version")

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.Health(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, body %s", w.Code, w.Body.String())
	}

	var response HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}

	if response.Status != "healthy" {
		t.Errorf("status = %q, want healthy", response.Status)
	}
	if response.Version != "test-version" {
		t.Errorf("version = %q, want test-version", response.Version)
	}
	if response.Checks["database"].Status != "healthy" {
		t.Errorf("database check = %q, want healthy", response.Checks["database"].Status)
	}
	if response.Checks["storage"].Status != "healthy" {
		t.Errorf("storage check = %q, want healthy", response.Checks["storage"].Status)
	}
}

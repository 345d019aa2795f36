package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"keyledger.app/cloud/internal/testutil"
)

func TestHealth(t *testing.T) {
	store := testutil.TestStore()
	server := testServer(store)
	server.Version = "1.2.3"

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if response.Status != "healthy" {
		t.Errorf("status = %q", response.Status)
	}
	if response.Version != "1.2.3" {
		t.Errorf("version = %q", response.Version)
	}
	if response.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestHealth_CountsActivations(t *testing.T) {
	store := testutil.TestStore()
	server := testServer(store)

	postActivation(t, server, testutil.ActivationRequest("alice@x.com", "machine-1", "PC", "req-1"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, req)

	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if response.RequestsServed != 1 {
		t.Errorf("requestsServed = %d, want 1", response.RequestsServed)
	}
	if response.ActivationsGranted != 1 {
		t.Errorf("activationsGranted = %d, want 1", response.ActivationsGranted)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	store := testutil.TestStore()
	server := testServer(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/licenses/activate", nil)
	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRegistryHandler_Get(t *testing.T) {
	env := newTestEnv(t)
	env.enroll(t, "Alice", 1, []float32{1})
	env.enroll(t, "Bob", 2, []float32{2})

	recorder := httptest.NewRecorder()
	NewRegistryHandler(env.registry).Get(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/registry", nil))

	var resp RegistryResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Size != 2 || resp.Version != 2 || len(resp.Names) != 2 {
		t.Errorf("unexpected registry response %+v", resp)
	}
}

func TestRegistryHandler_Rebuild(t *testing.T) {
	env := newTestEnv(t)
	env.enroll(t, "Alice", 1, []float32{1})
	env.enrollments.Put(t.Context(), "Ghost", testPNG(t, 9))

	recorder := httptest.NewRecorder()
	NewRegistryHandler(env.registry).Rebuild(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/registry/rebuild", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	var resp RebuildResponse
	json.Unmarshal(recorder.Body.Bytes(), &resp)
	if len(resp.Loaded) != 1 || len(resp.Skipped) != 1 || resp.Skipped[0].Name != "Ghost" {
		t.Errorf("unexpected rebuild response %+v", resp)
	}
}

func TestRegistryHandler_RebuildStoreDown(t *testing.T) {
	env := newTestEnv(t)
	env.enrollments.KeysError = errors.New("gone")

	recorder := httptest.NewRecorder()
	NewRegistryHandler(env.registry).Rebuild(recorder, httptest.NewRequest(http.MethodPost, "/", nil))

	if recorder.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", recorder.Code)
	}
}

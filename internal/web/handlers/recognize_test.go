package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/session"
)

func TestRecognizeHandler_RecordsOncePerDay(t *testing.T) {
	env := newTestEnv(t)
	env.enroll(t, "Alice", 1, []float32{0, 0})
	h := NewRecognizeHandler(env.session)
	frame := []byte("frame")
	env.provider.SetFaces(frame, []float32{0.1, 0.1}, []float32{9, 9})

	var statuses []session.Status
	for range 2 {
		recorder := httptest.NewRecorder()
		h.Recognize(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/recognize", bytes.NewReader(frame)))

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
		var resp RecognizeResponse
		if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if len(resp.Sightings) != 2 {
			t.Fatalf("expected 2 sightings, got %d", len(resp.Sightings))
		}
		if resp.Sightings[1].Match.Name != "unknown" {
			t.Errorf("expected second face unknown, got %s", resp.Sightings[1].Match.Name)
		}
		statuses = append(statuses, resp.Sightings[0].Status)
	}

	if statuses[0] != session.StatusRecorded || statuses[1] != session.StatusSeen {
		t.Errorf("expected recorded then seen, got %v", statuses)
	}
	records, _ := env.attendance.List(t.Context())
	if len(records) != 1 {
		t.Errorf("expected one attendance record, got %d", len(records))
	}
}

func TestRecognizeHandler_Errors(t *testing.T) {
	t.Run("empty frame", func(t *testing.T) {
		env := newTestEnv(t)
		recorder := httptest.NewRecorder()
		NewRecognizeHandler(env.session).Recognize(recorder, httptest.NewRequest(http.MethodPost, "/", nil))
		if recorder.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", recorder.Code)
		}
	})

	t.Run("provider down", func(t *testing.T) {
		env := newTestEnv(t)
		env.provider.DetectError = errors.New("connection refused")
		recorder := httptest.NewRecorder()
		NewRecognizeHandler(env.session).Recognize(recorder, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("f"))))
		if recorder.Code != http.StatusBadGateway {
			t.Errorf("expected status 502, got %d", recorder.Code)
		}
	})

	t.Run("ledger down", func(t *testing.T) {
		env := newTestEnv(t)
		env.enroll(t, "Alice", 1, []float32{0, 0})
		frame := []byte("frame")
		env.provider.SetFaces(frame, []float32{0, 0})
		env.attendance.AppendError = errors.New("disk full")

		recorder := httptest.NewRecorder()
		NewRecognizeHandler(env.session).Recognize(recorder, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(frame)))

		if recorder.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", recorder.Code)
		}
		var resp RecognizeResponse
		json.Unmarshal(recorder.Body.Bytes(), &resp)
		if len(resp.Sightings) != 1 || resp.Sightings[0].Status != session.StatusFailed || resp.Error == "" {
			t.Errorf("expected failed sighting with error, got %+v", resp)
		}
	})
}

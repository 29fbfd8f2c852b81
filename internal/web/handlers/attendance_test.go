package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAttendanceHandler_List(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	day := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	env.ledger.Record(ctx, "Alice", day)
	env.ledger.Record(ctx, "Bob", day)
	env.ledger.Record(ctx, "Alice", day.AddDate(0, 0, 1))

	h := NewAttendanceHandler(env.ledger)
	h.now = func() time.Time { return day.AddDate(0, 0, 1) }

	tests := []struct {
		query      string
		wantStatus int
		wantCount  int
	}{
		{"", http.StatusOK, 3},
		{"?date=2024-03-14", http.StatusOK, 2},
		{"?name=ALICE", http.StatusOK, 2},
		{"?date=today", http.StatusOK, 1},
		{"?date=14.03.2024", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/attendance"+tt.query, nil))

			if recorder.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, recorder.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp AttendanceResponse
			if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if resp.Count != tt.wantCount {
				t.Errorf("expected %d records, got %d", tt.wantCount, resp.Count)
			}
		})
	}
}

func TestAttendanceHandler_StoreDown(t *testing.T) {
	env := newTestEnv(t)
	env.attendance.ListError = errors.New("permission denied")

	recorder := httptest.NewRecorder()
	NewAttendanceHandler(env.ledger).List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/attendance", nil))

	if recorder.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", recorder.Code)
	}
}

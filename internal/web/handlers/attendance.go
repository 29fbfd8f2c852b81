package handlers

import (
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceHandler serves the attendance log
type AttendanceHandler struct {
	ledger *attendance.Ledger
	now    func() time.Time
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(ledger *attendance.Ledger) *AttendanceHandler {
	return &AttendanceHandler{ledger: ledger, now: time.Now}
}

// AttendanceResponse lists attendance records
type AttendanceResponse struct {
	Records []database.AttendanceRecord `json:"records"`
	Count   int                         `json:"count"`
}

// List returns records filtered by the optional date and name query parameters.
// date accepts YYYY-MM-DD or "today".
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := attendance.Filter{
		Date: r.URL.Query().Get("date"),
		Name: r.URL.Query().Get("name"),
	}
	if filter.Date == "today" {
		filter.Date = h.now().Format(database.DateLayout)
	}
	if filter.Date != "" {
		if _, err := time.Parse(database.DateLayout, filter.Date); err != nil {
			respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	records, err := h.ledger.Records(r.Context(), filter)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, AttendanceResponse{Records: records, Count: len(records)})
}

package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/session"
)

// RecognizeHandler feeds uploaded frames into one long-lived session
type RecognizeHandler struct {
	session *session.Session
}

// NewRecognizeHandler creates a new recognize handler
func NewRecognizeHandler(s *session.Session) *RecognizeHandler {
	return &RecognizeHandler{session: s}
}

// RecognizeResponse holds the sightings of one frame
type RecognizeResponse struct {
	SessionID string             `json:"session_id"`
	Sightings []session.Sighting `json:"sightings"`
	Error     string             `json:"error,omitempty"`
}

// Recognize processes the uploaded frame
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	frame, err := readImage(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(frame) == 0 {
		respondError(w, http.StatusBadRequest, "empty frame")
		return
	}

	sightings, err := h.session.ProcessFrame(r.Context(), frame)
	if err != nil && sightings == nil {
		// Detection failed before any matching happened.
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	resp := RecognizeResponse{SessionID: h.session.ID(), Sightings: sightings}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = statusFor(err)
	}
	respondJSON(w, status, resp)
}

// Summary returns the session counters
func (h *RecognizeHandler) Summary(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.Summary())
}

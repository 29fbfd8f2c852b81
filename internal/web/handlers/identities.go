package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/enrollment"
	"github.com/kozaktomas/face-attendance/internal/registry"
)

// IdentitiesHandler handles enrollment endpoints
type IdentitiesHandler struct {
	lifecycle *enrollment.Lifecycle
	registry  *registry.Registry
}

// NewIdentitiesHandler creates a new identities handler
func NewIdentitiesHandler(lifecycle *enrollment.Lifecycle, reg *registry.Registry) *IdentitiesHandler {
	return &IdentitiesHandler{lifecycle: lifecycle, registry: reg}
}

// IdentitiesResponse lists enrolled names
type IdentitiesResponse struct {
	Identities      []string `json:"identities"`
	Count           int      `json:"count"`
	RegistryVersion uint64   `json:"registry_version"`
}

// EnrollResponse is returned after a successful enrollment
type EnrollResponse struct {
	Name            string `json:"name"`
	RegistryVersion uint64 `json:"registry_version"`
	RegistrySize    int    `json:"registry_size"`
}

// List returns enrolled names in store order
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.lifecycle.List(r.Context())
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	respondJSON(w, http.StatusOK, IdentitiesResponse{
		Identities:      names,
		Count:           len(names),
		RegistryVersion: h.registry.Snapshot().Version(),
	})
}

// Enroll stores the uploaded image for the name in the URL
func (h *IdentitiesHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	image, err := readImage(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.lifecycle.Enroll(r.Context(), name, image); err != nil {
		respondEngineError(w, r, err)
		return
	}

	snap := h.registry.Snapshot()
	slog.Info("identity enrolled over HTTP", "name", sanitizeForLog(name))
	respondJSON(w, http.StatusCreated, EnrollResponse{
		Name:            name,
		RegistryVersion: snap.Version(),
		RegistrySize:    snap.Size(),
	})
}

// Delete removes every enrollment matching the name case-insensitively
func (h *IdentitiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.lifecycle.Delete(r.Context(), name); err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

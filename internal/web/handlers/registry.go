package handlers

import (
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/registry"
)

// RegistryHandler exposes the identity registry
type RegistryHandler struct {
	registry *registry.Registry
}

// NewRegistryHandler creates a new registry handler
func NewRegistryHandler(reg *registry.Registry) *RegistryHandler {
	return &RegistryHandler{registry: reg}
}

// RegistryResponse describes the current snapshot
type RegistryResponse struct {
	Version uint64    `json:"version"`
	Size    int       `json:"size"`
	BuiltAt time.Time `json:"built_at"`
	Names   []string  `json:"names"`
}

// SkippedEntry is an enrollment left out of a rebuild
type SkippedEntry struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// RebuildResponse reports a rebuild
type RebuildResponse struct {
	Version        uint64         `json:"version"`
	Loaded         []string       `json:"loaded"`
	Skipped        []SkippedEntry `json:"skipped"`
	DetectFailures int            `json:"detect_failures"`
	DurationMs     int64          `json:"duration_ms"`
}

// Get returns the current snapshot metadata
func (h *RegistryHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap := h.registry.Snapshot()
	names := snap.Names()
	if names == nil {
		names = []string{}
	}
	respondJSON(w, http.StatusOK, RegistryResponse{
		Version: snap.Version(),
		Size:    snap.Size(),
		BuiltAt: snap.BuiltAt(),
		Names:   names,
	})
}

// Rebuild reloads the registry from the enrollment store
func (h *RegistryHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	report, err := h.registry.Rebuild(r.Context())
	if err != nil {
		respondEngineError(w, r, err)
		return
	}

	resp := RebuildResponse{
		Version:        report.Version,
		Loaded:         report.Loaded,
		Skipped:        make([]SkippedEntry, 0, len(report.Skipped)),
		DetectFailures: report.DetectFailures,
		DurationMs:     report.Duration.Milliseconds(),
	}
	if resp.Loaded == nil {
		resp.Loaded = []string{}
	}
	for _, s := range report.Skipped {
		resp.Skipped = append(resp.Skipped, SkippedEntry{Name: s.Key, Reason: s.Reason.Error()})
	}
	respondJSON(w, http.StatusOK, resp)
}

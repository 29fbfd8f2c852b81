// Package session drives recognition over a sequence of frames.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/registry"
)

// SnapshotSource yields the registry snapshot used for one frame.
type SnapshotSource interface {
	Snapshot() *registry.Snapshot
}

// Recorder records attendance for a recognized person.
type Recorder interface {
	Record(ctx context.Context, name string, at time.Time) (attendance.Outcome, error)
}

// Status describes what happened to a face in a frame.
type Status string

const (
	StatusUnknown         Status = "unknown"
	StatusRecorded        Status = "recorded"
	StatusAlreadyRecorded Status = "already_recorded"
	StatusSeen            Status = "seen" // already marked earlier in this session today
	StatusFailed          Status = "failed"
)

// Sighting is one face found in a frame.
type Sighting struct {
	FaceIndex       int                   `json:"face_index"`
	Region          embedding.Region      `json:"region"`
	Match           facematch.MatchResult `json:"match"`
	Status          Status                `json:"status"`
	Error           string                `json:"error,omitempty"`
	RegistryVersion uint64                `json:"registry_version"`
	Candidates      []registry.Candidate  `json:"candidates,omitempty"`
}

// Summary counts the work done by a session.
type Summary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	Frames     int       `json:"frames"`
	Faces      int       `json:"faces"`
	Recognized int       `json:"recognized"`
	Recorded   int       `json:"recorded"`
	Marked     []string  `json:"marked"`
}

// Options configures a Session.
type Options struct {
	Threshold float64
	// NearestK attaches the k closest identities to every sighting; 0 disables it.
	NearestK  int
	Now       func() time.Time
	Logger    *slog.Logger
}

// Session processes frames one at a time and records attendance for the
// people it recognizes. Each person is sent to the recorder at most once per
// day of the session; the recorder still deduplicates across sessions.
type Session struct {
	id        string
	registry  SnapshotSource
	provider  embedding.Provider
	recorder  Recorder
	threshold float64
	nearestK  int
	now       func() time.Time
	logger    *slog.Logger

	mu      sync.Mutex
	started time.Time
	marked  map[markKey]bool
	order   []string
	frames  int
	faces   int
	known   int
	written int
}

// New starts a session. A zero threshold uses facematch.DefaultThreshold.
func New(reg SnapshotSource, provider embedding.Provider, recorder Recorder, opts Options) *Session {
	if opts.Threshold <= 0 {
		opts.Threshold = facematch.DefaultThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		id:        id,
		registry:  reg,
		provider:  provider,
		recorder:  recorder,
		threshold: opts.Threshold,
		nearestK:  opts.NearestK,
		now:       opts.Now,
		logger:    opts.Logger.With("session", id),
		started:   opts.Now(),
		marked:    make(map[markKey]bool),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// ProcessFrame detects every face in frame, matches each one independently
// against a single registry snapshot and records attendance for the known ones.
//
// A recorder failure is returned together with the sightings for all faces;
// the affected person is not marked, so a later frame retries. A provider
// failure returns no sightings and leaves the session untouched.
func (s *Session) ProcessFrame(ctx context.Context, frame []byte) ([]Sighting, error) {
	faces, err := s.provider.Detect(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("detecting faces: %w", err)
	}
	snap := s.registry.Snapshot()
	at := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	s.faces += len(faces)

	sightings := make([]Sighting, 0, len(faces))
	var errs []error
	for _, face := range faces {
		result := snap.Match(face.Embedding, s.threshold)
		sighting := Sighting{
			FaceIndex:       face.Index,
			Region:          face.Region,
			Match:           result,
			Status:          StatusUnknown,
			RegistryVersion: snap.Version(),
		}
		if s.nearestK > 0 {
			sighting.Candidates = snap.Nearest(face.Embedding, s.nearestK)
		}
		if result.Known() {
			s.known++
			if err := s.mark(ctx, result.Name, at, &sighting); err != nil {
				errs = append(errs, err)
			}
		}
		sightings = append(sightings, sighting)
	}
	return sightings, errors.Join(errs...)
}

// markKey partitions the marked set by day so a long-running session
// records people again after midnight.
type markKey struct {
	name string
	date string
}

// mark sends name to the recorder unless this session already did on the day of at.
func (s *Session) mark(ctx context.Context, name string, at time.Time, sighting *Sighting) error {
	key := markKey{name: name, date: at.Format(database.DateLayout)}
	if s.marked[key] {
		sighting.Status = StatusSeen
		return nil
	}
	outcome, err := s.recorder.Record(ctx, name, at)
	if err != nil {
		sighting.Status = StatusFailed
		sighting.Error = err.Error()
		s.logger.Warn("failed to record attendance", "name", name, "error", err)
		return fmt.Errorf("recording %q: %w", name, err)
	}

	s.marked[key] = true
	if !slices.Contains(s.order, name) {
		s.order = append(s.order, name)
	}
	switch outcome {
	case attendance.Recorded:
		s.written++
		sighting.Status = StatusRecorded
	case attendance.AlreadyRecorded:
		sighting.Status = StatusAlreadyRecorded
	}
	return nil
}

// Summary returns counters for the session so far.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		ID:         s.id,
		StartedAt:  s.started,
		Frames:     s.frames,
		Faces:      s.faces,
		Recognized: s.known,
		Recorded:   s.written,
		Marked:     append([]string(nil), s.order...),
	}
}

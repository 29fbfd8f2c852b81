// Package registry holds the in-memory set of enrolled identities.
//
// The registry is rebuilt wholesale from the enrollment store and published as
// an immutable Snapshot through an atomic pointer swap. Readers never block and
// never observe a half-built registry; a match that started on an older
// snapshot keeps using it.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Skip reasons reported by Rebuild.
var (
	ErrNoFace        = errors.New("no face found in enrollment image")
	ErrDuplicateName = errors.New("name already loaded from another entry")
	ErrDetectFailed  = errors.New("face detection failed")
	ErrReservedName  = errors.New("name is reserved for unrecognized faces")
)

// SkippedEntry is an enrollment entry left out of a rebuild.
type SkippedEntry struct {
	Key    string
	Reason error
}

// RebuildReport describes the outcome of a rebuild.
type RebuildReport struct {
	Version  uint64
	Loaded   []string
	Skipped  []SkippedEntry
	// DetectFailures counts skipped entries whose detection call failed.
	DetectFailures int
	Duration       time.Duration
}

// Registry owns the current Snapshot.
type Registry struct {
	store    database.EnrollmentReader
	provider embedding.Provider
	logger   *slog.Logger
	now      func() time.Time

	current atomic.Pointer[Snapshot]
	mu      sync.Mutex // serializes rebuilds
}

// New creates a registry with an empty snapshot. Call Rebuild to load identities.
// A nil logger uses slog.Default().
func New(store database.EnrollmentReader, provider embedding.Provider, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		store:    store,
		provider: provider,
		logger:   logger,
		now:      time.Now,
	}
	r.current.Store(newSnapshot(0, r.now(), nil, provider.Distance))
	return r
}

// Snapshot returns the current snapshot.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Size returns the number of identities in the current snapshot.
func (r *Registry) Size() int {
	return r.Snapshot().Size()
}

// All returns a copy of the identities in the current snapshot.
func (r *Registry) All() []facematch.Identity {
	return r.Snapshot().All()
}

// Rebuild reads every enrollment entry, detects its face and publishes a new snapshot.
//
// Entries that cannot be read, contain no face or repeat an already loaded
// name are skipped with a warning, as are entries the provider fails on. When
// an entry yields several faces the first one is kept. The new snapshot only
// ever holds keys the store listed. The previous snapshot stays current when
// the store cannot be listed or the context is cancelled.
func (r *Registry) Rebuild(ctx context.Context) (*RebuildReport, error) {
	return r.RebuildWithProgress(ctx, nil)
}

// RebuildWithProgress is Rebuild with a callback invoked after each entry.
func (r *Registry) RebuildWithProgress(ctx context.Context, progress func(done, total int)) (*RebuildReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := r.now()
	keys, err := r.store.Keys(ctx)
	if err != nil {
		return nil, database.Unavailable("list enrollments", err)
	}

	report := &RebuildReport{}
	identities := make([]facematch.Identity, 0, len(keys))
	seen := make(map[string]string, len(keys))

	skip := func(key string, reason error) {
		r.logger.Warn("skipping enrollment entry", "name", key, "reason", reason)
		report.Skipped = append(report.Skipped, SkippedEntry{Key: key, Reason: reason})
	}

	for i, key := range keys {
		if progress != nil && i > 0 {
			progress(i, len(keys))
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("rebuild cancelled: %w", err)
		}

		if facematch.SameName(key, facematch.Unknown) {
			skip(key, ErrReservedName)
			continue
		}
		normalized := facematch.NormalizeName(key)
		if first, ok := seen[normalized]; ok {
			skip(key, fmt.Errorf("%w: %q", ErrDuplicateName, first))
			continue
		}

		image, err := r.store.Get(ctx, key)
		if err != nil {
			skip(key, fmt.Errorf("reading image: %w", err))
			continue
		}

		faces, err := r.provider.Detect(ctx, image)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("rebuild cancelled: %w", ctxErr)
			}
			report.DetectFailures++
			skip(key, fmt.Errorf("%w: %w", ErrDetectFailed, err))
			continue
		}
		if len(faces) == 0 || len(faces[0].Embedding) == 0 {
			skip(key, ErrNoFace)
			continue
		}
		if len(faces) > 1 {
			r.logger.Warn("enrollment image has several faces, using the first", "name", key, "faces", len(faces))
		}

		seen[normalized] = key
		identities = append(identities, facematch.Identity{Name: key, Embedding: faces[0].Embedding})
		report.Loaded = append(report.Loaded, key)
	}

	if progress != nil && len(keys) > 0 {
		progress(len(keys), len(keys))
	}

	if report.DetectFailures > 0 && report.DetectFailures == len(keys) {
		r.logger.Warn("face detection failed for every enrollment entry", "entries", len(keys))
	}

	prev := r.current.Load()
	next := newSnapshot(prev.Version()+1, r.now(), identities, r.provider.Distance)
	r.current.Store(next)

	report.Version = next.Version()
	report.Duration = r.now().Sub(start)
	r.logger.Info("registry rebuilt", "version", next.Version(), "identities", next.Size(), "skipped", len(report.Skipped))
	return report, nil
}

// Package enrollment adds and removes identities in the enrollment store and
// keeps the registry in step with it.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/registry"
)

// Enrollment errors. Every rejection happens before the store is touched.
var (
	ErrEmptyName      = errors.New("name is empty")
	ErrInvalidName    = errors.New("name cannot be used as an enrollment key")
	ErrInvalidImage   = errors.New("image cannot be decoded")
	ErrNoFaceDetected = errors.New("no face detected in image")
	ErrMultipleFaces  = errors.New("multiple faces detected, expected one")

	ErrNotFound = database.ErrNotFound
)

// Rebuilder refreshes the registry after the store changed.
type Rebuilder interface {
	Rebuild(ctx context.Context) (*registry.RebuildReport, error)
}

// Options configures a Lifecycle.
type Options struct {
	// MaxImageSize bounds the longer side of stored images in pixels; 0 keeps originals.
	MaxImageSize int
	Logger       *slog.Logger
}

// Lifecycle enrolls, deletes and lists identities.
type Lifecycle struct {
	store        database.EnrollmentStore
	provider     embedding.Provider
	rebuilder    Rebuilder
	maxImageSize int
	logger       *slog.Logger

	// mu serializes store mutations so case variants of one name cannot
	// be written concurrently.
	mu sync.Mutex
}

// New creates a lifecycle over store. rebuilder is typically the *registry.Registry
// built over the same store.
func New(store database.EnrollmentStore, provider embedding.Provider, rebuilder Rebuilder, opts Options) *Lifecycle {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		store:        store,
		provider:     provider,
		rebuilder:    rebuilder,
		maxImageSize: opts.MaxImageSize,
		logger:       logger,
	}
}

// Enroll stores image as the enrollment photo for name and rebuilds the registry.
//
// The image must decode and contain exactly one face. An existing entry for
// the same name is replaced, including entries that differ only in letter case.
func (l *Lifecycle) Enroll(ctx context.Context, name string, image []byte) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	cfg, format, err := checkImage(image)
	if err != nil {
		return err
	}

	faces, err := l.provider.Detect(ctx, image)
	if err != nil {
		return fmt.Errorf("detecting faces: %w", err)
	}
	switch {
	case len(faces) == 0:
		return ErrNoFaceDetected
	case len(faces) > 1:
		return fmt.Errorf("%w: found %d", ErrMultipleFaces, len(faces))
	}

	stored, resized, err := downscale(image, cfg, l.maxImageSize)
	if err != nil {
		return err
	}
	if resized {
		l.logger.Debug("downscaled enrollment image", "name", name, "format", format, "width", cfg.Width, "height", cfg.Height)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	keys, err := l.store.Keys(ctx)
	if err != nil {
		return database.Unavailable("list enrollments", err)
	}
	if err := l.store.Put(ctx, name, stored); err != nil {
		return database.Unavailable("store enrollment", err)
	}
	replaced := false
	for _, key := range keys {
		if key != name && facematch.SameName(key, name) {
			if err := l.store.Delete(ctx, key); err != nil && !errors.Is(err, database.ErrNotFound) {
				return database.Unavailable("replace enrollment", err)
			}
			replaced = true
			l.logger.Info("replaced enrollment with different case", "old", key, "new", name)
		}
	}
	if replaced {
		if err := l.ensureStored(ctx, name, stored); err != nil {
			return err
		}
	}

	l.logger.Info("enrolled identity", "name", name)
	return l.rebuild(ctx)
}

// ensureStored writes image again when removing a case variant also removed
// name, which happens on stores that fold case such as a case-insensitive
// filesystem.
func (l *Lifecycle) ensureStored(ctx context.Context, name string, image []byte) error {
	_, err := l.store.Get(ctx, name)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, database.ErrNotFound):
		return database.Unavailable("verify enrollment", err)
	}
	l.logger.Debug("store folds case, writing enrollment again", "name", name)
	if err := l.store.Put(ctx, name, image); err != nil {
		return database.Unavailable("store enrollment", err)
	}
	return nil
}

// Delete removes every enrollment whose name matches name case-insensitively
// and rebuilds the registry. Attendance records are left alone.
func (l *Lifecycle) Delete(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	keys, err := l.store.Keys(ctx)
	if err != nil {
		return database.Unavailable("list enrollments", err)
	}

	removed := 0
	for _, key := range keys {
		if !facematch.SameName(key, name) {
			continue
		}
		if err := l.store.Delete(ctx, key); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				continue
			}
			return database.Unavailable("delete enrollment", err)
		}
		removed++
		l.logger.Info("deleted identity", "name", key)
	}
	if removed == 0 {
		return fmt.Errorf("identity %q: %w", name, ErrNotFound)
	}
	return l.rebuild(ctx)
}

// List returns enrolled names in store order.
func (l *Lifecycle) List(ctx context.Context) ([]string, error) {
	keys, err := l.store.Keys(ctx)
	if err != nil {
		return nil, database.Unavailable("list enrollments", err)
	}
	return keys, nil
}

func (l *Lifecycle) rebuild(ctx context.Context) error {
	if l.rebuilder == nil {
		return nil
	}
	report, err := l.rebuilder.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuilding registry: %w", err)
	}
	for _, s := range report.Skipped {
		l.logger.Warn("enrollment entry not loaded", "name", s.Key, "reason", s.Reason)
	}
	return nil
}

// cleanName trims name and checks it is usable as a store key.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if facematch.SameName(name, facematch.Unknown) {
		return "", fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return name, nil
}

// Package filestore keeps enrollment images and the attendance log on the local filesystem.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/renameio"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// imageExtensions are the file extensions recognised as enrollment images, in lookup order.
var imageExtensions = []string{".jpg", ".jpeg", ".png"}

// ErrInvalidKey is returned for keys that cannot be used as a file name.
var ErrInvalidKey = errors.New("invalid enrollment key")

// Dir stores one image per name as <name>.jpg inside a directory.
type Dir struct {
	path string
	mu   sync.Mutex
}

// NewDir opens an enrollment directory, creating it if missing.
func NewDir(path string) (*Dir, error) {
	if path == "" {
		return nil, errors.New("enrollment directory is required")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, database.Unavailable("create enrollment directory", err)
	}
	return &Dir{path: path}, nil
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// ValidKey reports whether key can be stored as a file name.
func ValidKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	if strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return false
	}
	return key == strings.TrimSpace(key)
}

// splitImageName returns the key of an image file name, or false if it is not an image.
func splitImageName(name string) (string, bool) {
	ext := filepath.Ext(name)
	for _, e := range imageExtensions {
		if strings.EqualFold(ext, e) {
			key := strings.TrimSuffix(name, ext)
			return key, key != ""
		}
	}
	return "", false
}

// Keys returns the names of all stored images in file name order.
func (d *Dir) Keys(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, database.Unavailable("read enrollment directory", err)
	}

	seen := make(map[string]bool, len(entries))
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key, ok := splitImageName(e.Name())
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys, nil
}

// files returns the existing image files for key.
func (d *Dir) files(key string) ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, database.Unavailable("read enrollment directory", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if k, ok := splitImageName(e.Name()); ok && k == key {
			files = append(files, filepath.Join(d.path, e.Name()))
		}
	}
	return files, nil
}

// Get reads the image stored for key.
func (d *Dir) Get(ctx context.Context, key string) ([]byte, error) {
	if !ValidKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	files, err := d.files(key)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("enrollment %q: %w", key, database.ErrNotFound)
	}

	data, err := os.ReadFile(files[0]) //nolint:gosec // path is built from a validated key
	if err != nil {
		return nil, database.Unavailable("read enrollment image", err)
	}
	return data, nil
}

// Put writes the image as <key>.jpg and removes other images stored under the
// same key or under a spelling of it that differs only in case.
func (d *Dir) Put(ctx context.Context, key string, image []byte) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	target := filepath.Join(d.path, key+".jpg")
	if err := renameio.WriteFile(target, image, 0o644); err != nil {
		return database.Unavailable("write enrollment image", err)
	}

	return d.dropVariants(key, target)
}

// dropVariants removes images of key other than target, including case
// variants. On a case-insensitive filesystem a variant can be target itself;
// such an entry is renamed to the new spelling instead of removed.
func (d *Dir) dropVariants(key, target string) error {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return database.Unavailable("read enrollment directory", err)
	}
	targetInfo, err := os.Stat(target)
	if err != nil {
		return database.Unavailable("stat enrollment image", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		k, ok := splitImageName(e.Name())
		if !ok || !facematch.SameName(k, key) {
			continue
		}
		f := filepath.Join(d.path, e.Name())
		if f == target {
			continue
		}
		info, err := os.Stat(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return database.Unavailable("stat enrollment image", err)
		}
		if os.SameFile(info, targetInfo) {
			if err := os.Rename(f, target); err != nil {
				return database.Unavailable("rename enrollment image", err)
			}
			continue
		}
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return database.Unavailable("remove previous enrollment image", err)
		}
	}
	return nil
}

// Delete removes every image stored for key.
func (d *Dir) Delete(ctx context.Context, key string) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	files, err := d.files(key)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("enrollment %q: %w", key, database.ErrNotFound)
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return database.Unavailable("remove enrollment image", err)
		}
	}
	return nil
}

var _ database.EnrollmentStore = (*Dir)(nil)

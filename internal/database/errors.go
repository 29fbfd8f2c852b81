package database

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a key or record does not exist
	ErrNotFound = errors.New("not found")

	// ErrStorageUnavailable is returned when a durable store cannot be read or written.
	// Callers decide whether to retry; stores never retry on their own.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Unavailable wraps err so that errors.Is(err, ErrStorageUnavailable) holds.
// It returns nil for a nil err and leaves already wrapped errors alone.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorageUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

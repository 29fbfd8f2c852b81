package database

import (
	"context"
)

// EnrollmentReader provides read-only access to enrollment images keyed by name
type EnrollmentReader interface {
	// Keys returns every stored name in the store's iteration order
	Keys(ctx context.Context) ([]string, error)
	// Get returns the image stored under key, or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)
}

// EnrollmentStore provides read and write access to enrollment images.
// Keys are case-sensitive; one image is kept per key.
type EnrollmentStore interface {
	EnrollmentReader

	// Put stores the image under key, replacing any previous image for that key
	Put(ctx context.Context, key string, image []byte) error
	// Delete removes the image stored under key, or returns ErrNotFound
	Delete(ctx context.Context, key string) error
}

// AttendanceReader provides read-only access to the attendance log
type AttendanceReader interface {
	// Contains reports whether a record for (name, date) exists.
	// Implementations read the durable log on every call.
	Contains(ctx context.Context, name, date string) (bool, error)
	// List returns all records in append order, without the header
	List(ctx context.Context) ([]AttendanceRecord, error)
}

// AttendanceStore is an append-only attendance log
type AttendanceStore interface {
	AttendanceReader

	// Append adds a record at the end of the log. It does not deduplicate.
	Append(ctx context.Context, rec AttendanceRecord) error
}

// DetectionCache stores face detection results keyed by image digest
type DetectionCache interface {
	// GetDetections returns cached detections; ok is false when the image was never processed
	GetDetections(ctx context.Context, digest string) (detections []StoredDetection, ok bool, err error)
	// SaveDetections stores detections for an image (replaces existing ones, zero faces allowed)
	SaveDetections(ctx context.Context, digest, model string, detections []StoredDetection) error
}

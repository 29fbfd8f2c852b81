// Package attendance records who was seen on which day.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// ErrInvalidRecord is returned for a record without a name or date.
var ErrInvalidRecord = errors.New("invalid attendance record")

// Outcome is the result of Record.
type Outcome int

const (
	// Recorded means a new record was appended.
	Recorded Outcome = iota
	// AlreadyRecorded means the person was already recorded that day and nothing was written.
	AlreadyRecorded
)

func (o Outcome) String() string {
	switch o {
	case Recorded:
		return "recorded"
	case AlreadyRecorded:
		return "already recorded"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Filter narrows Records. Zero values match everything.
type Filter struct {
	Date string // YYYY-MM-DD
	Name string // case-insensitive
}

func (f Filter) matches(rec database.AttendanceRecord) bool {
	if f.Date != "" && rec.Date != f.Date {
		return false
	}
	if f.Name != "" && !facematch.SameName(rec.Name, f.Name) {
		return false
	}
	return true
}

// Ledger enforces at most one record per name and day on top of an append-only store.
//
// Every check reads through to the store. The check and the append run under
// a mutex, so two goroutines sharing a Ledger cannot both record the same
// person on the same day. Separate processes sharing one store are not
// coordinated.
type Ledger struct {
	store  database.AttendanceStore
	logger *slog.Logger
	mu     sync.Mutex
}

// NewLedger creates a ledger over store. A nil logger uses slog.Default().
func NewLedger(store database.AttendanceStore, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: store, logger: logger}
}

// AlreadyRecorded reports whether name has a record on date.
func (l *Ledger) AlreadyRecorded(ctx context.Context, name, date string) (bool, error) {
	if err := validate(name, date); err != nil {
		return false, err
	}
	found, err := l.store.Contains(ctx, name, date)
	if err != nil {
		return false, database.Unavailable("check attendance", err)
	}
	return found, nil
}

// Record appends a record for name at the given instant unless one already
// exists for that day. Store failures are returned as-is for the caller to
// retry or drop; Record never retries.
func (l *Ledger) Record(ctx context.Context, name string, at time.Time) (Outcome, error) {
	rec := database.NewAttendanceRecord(strings.TrimSpace(name), at)
	if err := validate(rec.Name, rec.Date); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	found, err := l.store.Contains(ctx, rec.Name, rec.Date)
	if err != nil {
		return 0, database.Unavailable("check attendance", err)
	}
	if found {
		l.logger.Debug("attendance already recorded", "name", rec.Name, "date", rec.Date)
		return AlreadyRecorded, nil
	}

	if err := l.store.Append(ctx, rec); err != nil {
		return 0, database.Unavailable("append attendance", err)
	}
	l.logger.Info("attendance recorded", "name", rec.Name, "date", rec.Date, "time", rec.Time)
	return Recorded, nil
}

// Records returns the stored records matching filter, in log order.
func (l *Ledger) Records(ctx context.Context, filter Filter) ([]database.AttendanceRecord, error) {
	all, err := l.store.List(ctx)
	if err != nil {
		return nil, database.Unavailable("list attendance", err)
	}
	out := make([]database.AttendanceRecord, 0, len(all))
	for _, rec := range all {
		if filter.matches(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func validate(name, date string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidRecord)
	}
	if _, err := time.Parse(database.DateLayout, date); err != nil {
		return fmt.Errorf("%w: date %q", ErrInvalidRecord, date)
	}
	return nil
}

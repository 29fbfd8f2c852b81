package filestore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// CSVLedger is an append-only attendance log stored as CSV with a Name,Date,Time header.
type CSVLedger struct {
	path string
	mu   sync.Mutex
}

// NewCSVLedger opens the attendance file, creating it with the header row if missing.
func NewCSVLedger(path string) (*CSVLedger, error) {
	if path == "" {
		return nil, errors.New("attendance file path is required")
	}
	l := &CSVLedger{path: path}
	if err := l.ensure(); err != nil {
		return nil, err
	}
	return l, nil
}

// Path returns the CSV file path.
func (l *CSVLedger) Path() string {
	return l.path
}

// ensure creates the file with its header when it does not exist yet.
func (l *CSVLedger) ensure() error {
	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return database.Unavailable("create attendance directory", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // path is from trusted config
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	if err != nil {
		return database.Unavailable("create attendance file", err)
	}
	defer f.Close()

	return writeRows(f, database.AttendanceHeader)
}

func writeRows(w io.Writer, rows ...[]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return database.Unavailable("write attendance file", err)
	}
	return nil
}

// each calls fn for every record after the header until fn returns false.
func (l *CSVLedger) each(fn func(database.AttendanceRecord) bool) error {
	f, err := os.Open(l.path)
	if err != nil {
		return database.Unavailable("open attendance file", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	for first := true; ; first = false {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return database.Unavailable("read attendance file", err)
		}
		if first && slices.Equal(row, database.AttendanceHeader) {
			continue
		}
		if len(row) < 2 {
			continue
		}
		rec := database.AttendanceRecord{Name: row[0], Date: row[1]}
		if len(row) >= 3 {
			rec.Time = row[2]
		}
		if !fn(rec) {
			return nil
		}
	}
}

// Contains scans the whole file for a (name, date) row.
func (l *CSVLedger) Contains(ctx context.Context, name, date string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	found := false
	err := l.each(func(rec database.AttendanceRecord) bool {
		if rec.Name == name && rec.Date == date {
			found = true
			return false
		}
		return true
	})
	return found, err
}

// List returns all records with at least name, date and time columns.
func (l *CSVLedger) List(ctx context.Context) ([]database.AttendanceRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var records []database.AttendanceRecord
	err := l.each(func(rec database.AttendanceRecord) bool {
		if rec.Time != "" {
			records = append(records, rec)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Append writes one row at the end of the file.
func (l *CSVLedger) Append(ctx context.Context, rec database.AttendanceRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644) //nolint:gosec // path is from trusted config
	if err != nil {
		return database.Unavailable("open attendance file", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return database.Unavailable("stat attendance file", err)
	}

	rows := [][]string{{rec.Name, rec.Date, rec.Time}}
	if info.Size() == 0 {
		rows = append([][]string{database.AttendanceHeader}, rows...)
	}
	if err := writeRows(f, rows...); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return database.Unavailable("close attendance file", err)
	}
	return nil
}

// String describes the ledger for log output.
func (l *CSVLedger) String() string {
	return fmt.Sprintf("csv:%s", l.path)
}

var _ database.AttendanceStore = (*CSVLedger)(nil)

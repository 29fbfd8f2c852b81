package attendance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var morning = time.Date(2024, 3, 14, 9, 5, 30, 0, time.UTC)

func TestLedger_RecordTwice(t *testing.T) {
	store := mock.NewMockAttendanceStore()
	ledger := NewLedger(store, quietLogger())
	ctx := context.Background()

	first, err := ledger.Record(ctx, "Alice", morning)
	if err != nil {
		t.Fatalf("first Record failed: %v", err)
	}
	second, err := ledger.Record(ctx, "Alice", morning.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("second Record failed: %v", err)
	}

	if first != Recorded {
		t.Errorf("expected Recorded, got %s", first)
	}
	if second != AlreadyRecorded {
		t.Errorf("expected AlreadyRecorded, got %s", second)
	}
	if store.AppendCalls != 1 {
		t.Errorf("expected exactly one append, got %d", store.AppendCalls)
	}

	records, _ := store.List(ctx)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	want := database.AttendanceRecord{Name: "Alice", Date: "2024-03-14", Time: "09:05:30"}
	if records[0] != want {
		t.Errorf("expected %+v, got %+v", want, records[0])
	}
}

func TestLedger_NewDayRecordsAgain(t *testing.T) {
	ledger := NewLedger(mock.NewMockAttendanceStore(), quietLogger())
	ctx := context.Background()

	if _, err := ledger.Record(ctx, "Alice", morning); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	outcome, err := ledger.Record(ctx, "Alice", morning.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if outcome != Recorded {
		t.Errorf("expected Recorded on the next day, got %s", outcome)
	}
}

func TestLedger_AlreadyRecorded(t *testing.T) {
	ledger := NewLedger(mock.NewMockAttendanceStore(), quietLogger())
	ctx := context.Background()
	if _, err := ledger.Record(ctx, "Bob", morning); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	tests := []struct {
		name string
		date string
		want bool
	}{
		{"Bob", "2024-03-14", true},
		{"Bob", "2024-03-15", false},
		{"Alice", "2024-03-14", false},
	}

	for _, tt := range tests {
		got, err := ledger.AlreadyRecorded(ctx, tt.name, tt.date)
		if err != nil {
			t.Errorf("AlreadyRecorded(%q, %q) error: %v", tt.name, tt.date, err)
			continue
		}
		if got != tt.want {
			t.Errorf("AlreadyRecorded(%q, %q) = %v, want %v", tt.name, tt.date, got, tt.want)
		}
	}
}

func TestLedger_InvalidInput(t *testing.T) {
	store := mock.NewMockAttendanceStore()
	ledger := NewLedger(store, quietLogger())
	ctx := context.Background()

	if _, err := ledger.Record(ctx, "   ", morning); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord for blank name, got %v", err)
	}
	if _, err := ledger.AlreadyRecorded(ctx, "Bob", "14/03/2024"); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord for bad date, got %v", err)
	}
	if store.ContainsCalls != 0 || store.AppendCalls != 0 {
		t.Error("expected no store access on invalid input")
	}
}

func TestLedger_StorageUnavailable(t *testing.T) {
	ctx := context.Background()

	t.Run("contains fails", func(t *testing.T) {
		store := mock.NewMockAttendanceStore()
		store.ContainsError = errors.New("file locked")
		ledger := NewLedger(store, quietLogger())

		_, err := ledger.Record(ctx, "Alice", morning)
		if !errors.Is(err, database.ErrStorageUnavailable) {
			t.Errorf("expected ErrStorageUnavailable, got %v", err)
		}
		if store.AppendCalls != 0 {
			t.Error("expected no append after a failed check")
		}
	})

	t.Run("append fails", func(t *testing.T) {
		store := mock.NewMockAttendanceStore()
		store.AppendError = errors.New("disk full")
		ledger := NewLedger(store, quietLogger())

		_, err := ledger.Record(ctx, "Alice", morning)
		if !errors.Is(err, database.ErrStorageUnavailable) {
			t.Errorf("expected ErrStorageUnavailable, got %v", err)
		}
		if store.AppendCalls != 1 {
			t.Errorf("expected a single attempt, got %d", store.AppendCalls)
		}
	})

	t.Run("list fails", func(t *testing.T) {
		store := mock.NewMockAttendanceStore()
		store.ListError = errors.New("permission denied")
		ledger := NewLedger(store, quietLogger())

		if _, err := ledger.Records(ctx, Filter{}); !errors.Is(err, database.ErrStorageUnavailable) {
			t.Errorf("expected ErrStorageUnavailable, got %v", err)
		}
	})
}

func TestLedger_RecordsFilter(t *testing.T) {
	ledger := NewLedger(mock.NewMockAttendanceStore(), quietLogger())
	ctx := context.Background()
	next := morning.AddDate(0, 0, 1)
	for _, r := range []struct {
		name string
		at   time.Time
	}{
		{"Alice", morning},
		{"Bob", morning},
		{"Alice", next},
	} {
		if _, err := ledger.Record(ctx, r.name, r.at); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	tests := []struct {
		desc   string
		filter Filter
		want   int
	}{
		{"no filter", Filter{}, 3},
		{"by date", Filter{Date: "2024-03-14"}, 2},
		{"by name", Filter{Name: "alice"}, 2},
		{"by both", Filter{Date: "2024-03-15", Name: "Alice"}, 1},
		{"no match", Filter{Name: "Carol"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, err := ledger.Records(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Records failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d records, got %d", tt.want, len(got))
			}
		})
	}
}

func TestLedger_ConcurrentRecordSameName(t *testing.T) {
	store := mock.NewMockAttendanceStore()
	ledger := NewLedger(store, quietLogger())
	ctx := context.Background()

	results := make(chan Outcome, 16)
	for range 16 {
		go func() {
			outcome, err := ledger.Record(ctx, "Alice", morning)
			if err != nil {
				t.Errorf("Record failed: %v", err)
			}
			results <- outcome
		}()
	}

	recorded := 0
	for range 16 {
		if <-results == Recorded {
			recorded++
		}
	}
	if recorded != 1 {
		t.Errorf("expected exactly one Recorded outcome, got %d", recorded)
	}
	if store.AppendCalls != 1 {
		t.Errorf("expected exactly one append, got %d", store.AppendCalls)
	}
}

func TestLedger_IdempotentProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := mock.NewMockAttendanceStore()
		ledger := NewLedger(store, quietLogger())
		ctx := context.Background()

		names := rapid.SliceOfN(rapid.SampledFrom([]string{"Alice", "Bob", "Carol"}), 1, 30).Draw(t, "names")
		days := rapid.SliceOfN(rapid.IntRange(0, 3), len(names), len(names)).Draw(t, "days")

		for i, name := range names {
			at := morning.AddDate(0, 0, days[i])
			before, err := ledger.AlreadyRecorded(ctx, name, at.Format(database.DateLayout))
			if err != nil {
				t.Fatalf("AlreadyRecorded failed: %v", err)
			}
			outcome, err := ledger.Record(ctx, name, at)
			if err != nil {
				t.Fatalf("Record failed: %v", err)
			}
			if before && outcome != AlreadyRecorded {
				t.Fatalf("%s on day %d: expected AlreadyRecorded, got %s", name, days[i], outcome)
			}
			if !before && outcome != Recorded {
				t.Fatalf("%s on day %d: expected Recorded, got %s", name, days[i], outcome)
			}
		}

		records, _ := store.List(ctx)
		seen := make(map[[2]string]bool)
		for _, rec := range records {
			key := [2]string{rec.Name, rec.Date}
			if seen[key] {
				t.Fatalf("duplicate record for %s on %s", rec.Name, rec.Date)
			}
			seen[key] = true
		}
	})
}

package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	dbmock "github.com/kozaktomas/face-attendance/internal/database/mock"
	embmock "github.com/kozaktomas/face-attendance/internal/embedding/mock"
	"github.com/kozaktomas/face-attendance/internal/registry"
)

var testNow = time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)

type fixture struct {
	provider   *embmock.MockProvider
	attendance *dbmock.MockAttendanceStore
	registry   *registry.Registry
	ledger     *attendance.Ledger
	logger     *slog.Logger
}

// setupFixture enrolls Alice at (0,0) and Bob at (10,10).
func setupFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := dbmock.NewMockEnrollmentStore()
	provider := embmock.NewMockProvider()
	ctx := context.Background()

	for name, emb := range map[string][]float32{"Alice": {0, 0}, "Bob": {10, 10}} {
		img := []byte("enroll-" + name)
		store.Put(ctx, name, img)
		provider.SetFaces(img, emb)
	}
	reg := registry.New(store, provider, logger)
	if _, err := reg.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	attendanceStore := dbmock.NewMockAttendanceStore()
	return &fixture{
		provider:   provider,
		attendance: attendanceStore,
		registry:   reg,
		ledger:     attendance.NewLedger(attendanceStore, logger),
		logger:     logger,
	}
}

func (f *fixture) newSession() *Session {
	return New(f.registry, f.provider, f.ledger, Options{
		Now:    func() time.Time { return testNow },
		Logger: f.logger,
	})
}

func TestSession_MultiFaceFrame(t *testing.T) {
	f := setupFixture(t)
	s := f.newSession()
	frame := []byte("frame-1")
	f.provider.SetFaces(frame, []float32{0.1, 0}, []float32{50, 50}, []float32{10, 10.2})

	sightings, err := s.ProcessFrame(context.Background(), frame)
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}

	if len(sightings) != 3 {
		t.Fatalf("expected 3 sightings, got %d", len(sightings))
	}
	want := []struct {
		name   string
		status Status
	}{
		{"Alice", StatusRecorded},
		{"unknown", StatusUnknown},
		{"Bob", StatusRecorded},
	}
	for i, w := range want {
		if sightings[i].Match.Name != w.name || sightings[i].Status != w.status {
			t.Errorf("sighting %d: expected %s/%s, got %s/%s", i, w.name, w.status, sightings[i].Match.Name, sightings[i].Status)
		}
		if sightings[i].RegistryVersion != 1 {
			t.Errorf("sighting %d: expected registry version 1, got %d", i, sightings[i].RegistryVersion)
		}
	}
}

func TestSession_MarksOncePerSession(t *testing.T) {
	f := setupFixture(t)
	s := f.newSession()
	frame := []byte("alice-frame")
	f.provider.SetFaces(frame, []float32{0, 0.1})
	ctx := context.Background()

	for i := range 5 {
		sightings, err := s.ProcessFrame(ctx, frame)
		if err != nil {
			t.Fatalf("frame %d failed: %v", i, err)
		}
		wantStatus := StatusSeen
		if i == 0 {
			wantStatus = StatusRecorded
		}
		if sightings[0].Status != wantStatus {
			t.Errorf("frame %d: expected %s, got %s", i, wantStatus, sightings[0].Status)
		}
	}

	if f.attendance.ContainsCalls != 1 {
		t.Errorf("expected one ledger check, got %d", f.attendance.ContainsCalls)
	}
	summary := s.Summary()
	if summary.Frames != 5 || summary.Faces != 5 || summary.Recognized != 5 || summary.Recorded != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if !slices.Equal(summary.Marked, []string{"Alice"}) {
		t.Errorf("expected [Alice] marked, got %v", summary.Marked)
	}
}

func TestSession_RecordsAgainNextDay(t *testing.T) {
	f := setupFixture(t)
	now := testNow
	s := New(f.registry, f.provider, f.ledger, Options{
		Now:    func() time.Time { return now },
		Logger: f.logger,
	})
	frame := []byte("alice-frame")
	f.provider.SetFaces(frame, []float32{0, 0.1})
	ctx := context.Background()

	days := []struct {
		advance time.Duration
		want    Status
	}{
		{0, StatusRecorded},
		{time.Hour, StatusSeen},
		{24 * time.Hour, StatusRecorded},
		{time.Minute, StatusSeen},
	}
	for i, d := range days {
		now = now.Add(d.advance)
		sightings, err := s.ProcessFrame(ctx, frame)
		if err != nil {
			t.Fatalf("frame %d failed: %v", i, err)
		}
		if sightings[0].Status != d.want {
			t.Errorf("frame %d at %s: expected %s, got %s", i, now.Format(time.DateTime), d.want, sightings[0].Status)
		}
	}

	records, err := f.ledger.Records(ctx, attendance.Filter{Name: "Alice"})
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records) != 2 || records[0].Date != "2024-03-14" || records[1].Date != "2024-03-15" {
		t.Errorf("expected one record on each day, got %v", records)
	}
	summary := s.Summary()
	if summary.Recorded != 2 || !slices.Equal(summary.Marked, []string{"Alice"}) {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestSession_SecondSessionSameDay(t *testing.T) {
	f := setupFixture(t)
	frame := []byte("alice-frame")
	f.provider.SetFaces(frame, []float32{0, 0})
	ctx := context.Background()

	if _, err := f.newSession().ProcessFrame(ctx, frame); err != nil {
		t.Fatalf("first session failed: %v", err)
	}
	sightings, err := f.newSession().ProcessFrame(ctx, frame)
	if err != nil {
		t.Fatalf("second session failed: %v", err)
	}

	if sightings[0].Status != StatusAlreadyRecorded {
		t.Errorf("expected already_recorded, got %s", sightings[0].Status)
	}
	records, _ := f.attendance.List(ctx)
	if len(records) != 1 {
		t.Errorf("expected one record, got %d", len(records))
	}
}

func TestSession_StorageFailureRetriesLater(t *testing.T) {
	f := setupFixture(t)
	s := f.newSession()
	frame := []byte("alice-frame")
	f.provider.SetFaces(frame, []float32{0, 0})
	ctx := context.Background()

	f.attendance.AppendError = errors.New("disk full")
	sightings, err := s.ProcessFrame(ctx, frame)
	if !errors.Is(err, database.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if len(sightings) != 1 || sightings[0].Status != StatusFailed {
		t.Fatalf("expected one failed sighting, got %+v", sightings)
	}

	f.attendance.AppendError = nil
	sightings, err = s.ProcessFrame(ctx, frame)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if sightings[0].Status != StatusRecorded {
		t.Errorf("expected recorded on retry, got %s", sightings[0].Status)
	}
}

func TestSession_ProviderFailure(t *testing.T) {
	f := setupFixture(t)
	s := f.newSession()
	f.provider.DetectError = errors.New("timeout")

	sightings, err := s.ProcessFrame(context.Background(), []byte("frame"))
	if err == nil {
		t.Fatal("expected error")
	}
	if sightings != nil {
		t.Errorf("expected no sightings, got %+v", sightings)
	}
	if s.Summary().Frames != 0 {
		t.Error("expected failed frame not to be counted")
	}
	if f.attendance.AppendCalls != 0 {
		t.Error("expected no ledger writes")
	}
}

func TestSession_EmptyRegistry(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := embmock.NewMockProvider()
	reg := registry.New(dbmock.NewMockEnrollmentStore(), provider, logger)
	store := dbmock.NewMockAttendanceStore()
	s := New(reg, provider, attendance.NewLedger(store, logger), Options{Logger: logger})
	frame := []byte("frame")
	provider.SetFaces(frame, []float32{1, 2})

	sightings, err := s.ProcessFrame(context.Background(), frame)
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}
	if sightings[0].Match.Known() || sightings[0].Match.HasDistance {
		t.Errorf("expected unknown without distance, got %+v", sightings[0].Match)
	}
	if store.AppendCalls != 0 {
		t.Error("expected no ledger writes")
	}
}

func TestSession_IDsAreUnique(t *testing.T) {
	f := setupFixture(t)
	a, b := f.newSession(), f.newSession()
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("expected distinct ids, got %q and %q", a.ID(), b.ID())
	}
}

func TestSession_NearestCandidates(t *testing.T) {
	f := setupFixture(t)
	s := New(f.registry, f.provider, f.ledger, Options{NearestK: 2, Logger: f.logger})
	frame := []byte("stranger")
	f.provider.SetFaces(frame, []float32{4, 4})

	sightings, err := s.ProcessFrame(context.Background(), frame)
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}

	got := sightings[0].Candidates
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %+v", got)
	}
	if got[0].Name != "Alice" || got[1].Name != "Bob" {
		t.Errorf("expected Alice then Bob, got %+v", got)
	}
	if sightings[0].Match.Known() {
		t.Errorf("expected unknown match, got %s", sightings[0].Match.Name)
	}
}

package handlers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	dbmock "github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/enrollment"
	embmock "github.com/kozaktomas/face-attendance/internal/embedding/mock"
	"github.com/kozaktomas/face-attendance/internal/registry"
	"github.com/kozaktomas/face-attendance/internal/session"
)

// testEnv wires the engine over in-memory stores
type testEnv struct {
	enrollments *dbmock.MockEnrollmentStore
	attendance  *dbmock.MockAttendanceStore
	provider    *embmock.MockProvider
	registry    *registry.Registry
	ledger      *attendance.Ledger
	lifecycle   *enrollment.Lifecycle
	session     *session.Session
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		enrollments: dbmock.NewMockEnrollmentStore(),
		attendance:  dbmock.NewMockAttendanceStore(),
		provider:    embmock.NewMockProvider(),
	}
	env.registry = registry.New(env.enrollments, env.provider, logger)
	env.ledger = attendance.NewLedger(env.attendance, logger)
	env.lifecycle = enrollment.New(env.enrollments, env.provider, env.registry, enrollment.Options{Logger: logger})
	env.session = session.New(env.registry, env.provider, env.ledger, session.Options{
		Now:    func() time.Time { return time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC) },
		Logger: logger,
	})
	return env
}

// enroll adds an identity through the lifecycle so the registry is rebuilt
func (e *testEnv) enroll(t *testing.T, name string, shade uint8, emb []float32) {
	t.Helper()
	img := testPNG(t, shade)
	e.provider.SetFaces(img, emb)
	if err := e.lifecycle.Enroll(context.Background(), name, img); err != nil {
		t.Fatalf("failed to enroll %s: %v", name, err)
	}
}

// testPNG encodes a tiny PNG whose content depends on shade
func testPNG(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := range 4 {
		for x := range 4 {
			img.Set(x, y, color.RGBA{R: shade, G: 10, B: 20, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

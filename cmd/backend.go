package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/filestore"
	"github.com/kozaktomas/face-attendance/internal/database/mariadb"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/enrollment"
	"github.com/kozaktomas/face-attendance/internal/registry"
)

// engine bundles the stores and services every command works with.
type engine struct {
	cfg         *config.Config
	enrollments database.EnrollmentStore
	attendance  database.AttendanceStore
	// provider serves live recognition; enrolled also serves registry
	// rebuilds and enrollment and may be backed by the detection cache.
	provider    embedding.Provider
	enrolled    embedding.Provider
	registry    *registry.Registry
	ledger      *attendance.Ledger
	lifecycle   *enrollment.Lifecycle
	pg          *postgres.Pool
	closers     []func() error
}

// openEngine connects the configured storage backend and embedding server.
// The registry starts empty; commands that match faces rebuild it first.
func openEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	e := &engine{cfg: cfg}
	if err := e.openStores(ctx); err != nil {
		e.Close()
		return nil, err
	}

	client, err := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.Metric)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("embedding client: %w", err)
	}
	var cache database.DetectionCache
	if cfg.Embedding.Cache {
		pool, err := e.postgresPool(ctx)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("detection cache: %w", err)
		}
		cache = postgres.NewDetectionCacheRepository(pool)
	}
	e.provider, e.enrolled = detectionProviders(client, cache)

	e.registry = registry.New(e.enrollments, e.enrolled, slog.Default())
	e.ledger = attendance.NewLedger(e.attendance, slog.Default())
	e.lifecycle = enrollment.New(e.enrollments, e.enrolled, e.registry, enrollment.Options{
		MaxImageSize: cfg.Enrollment.MaxImageSize,
		Logger:       slog.Default(),
	})
	return e, nil
}

// detectionProviders returns the provider for live frames and the one for
// enrollment images. Only enrollment images go through cache: frames are
// almost never seen twice.
func detectionProviders(client embedding.Provider, cache database.DetectionCache) (live, enrolled embedding.Provider) {
	if cache == nil {
		return client, client
	}
	return client, embedding.NewCachedProvider(client, cache, slog.Default())
}

func (e *engine) openStores(ctx context.Context) error {
	switch e.cfg.Storage.Backend {
	case config.BackendFilesystem, "":
		dir, err := filestore.NewDir(e.cfg.Storage.EnrollmentDir)
		if err != nil {
			return err
		}
		ledger, err := filestore.NewCSVLedger(e.cfg.Storage.AttendanceFile)
		if err != nil {
			return err
		}
		e.enrollments, e.attendance = dir, ledger

	case config.BackendPostgres:
		pool, err := e.postgresPool(ctx)
		if err != nil {
			return err
		}
		e.enrollments = postgres.NewEnrollmentRepository(pool)
		e.attendance = postgres.NewAttendanceRepository(pool)

	case config.BackendMySQL:
		if e.cfg.MySQL.DSN == "" {
			return errors.New("MYSQL_DSN environment variable is required for the mysql backend")
		}
		dir, err := filestore.NewDir(e.cfg.Storage.EnrollmentDir)
		if err != nil {
			return err
		}
		pool, err := mariadb.NewPool(e.cfg.MySQL.DSN)
		if err != nil {
			return fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		e.closers = append(e.closers, pool.Close)
		repo, err := mariadb.NewAttendanceRepository(ctx, pool)
		if err != nil {
			return err
		}
		e.enrollments, e.attendance = dir, repo

	default:
		return fmt.Errorf("unknown storage backend %q (want %s, %s or %s)",
			e.cfg.Storage.Backend, config.BackendFilesystem, config.BackendPostgres, config.BackendMySQL)
	}
	return nil
}

// postgresPool opens the PostgreSQL pool once per engine.
func (e *engine) postgresPool(ctx context.Context) (*postgres.Pool, error) {
	if e.pg != nil {
		return e.pg, nil
	}
	if e.cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	pool, err := postgres.Initialize(ctx, &e.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	e.pg = pool
	e.closers = append(e.closers, pool.Close)
	return pool, nil
}

// Close releases database connections.
func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
	e.closers = nil
}

// describe returns a one-line description of where data lives.
func (e *engine) describe() string {
	switch e.cfg.Storage.Backend {
	case config.BackendPostgres:
		return "PostgreSQL"
	case config.BackendMySQL:
		return fmt.Sprintf("%s + MySQL", e.cfg.Storage.EnrollmentDir)
	default:
		return fmt.Sprintf("%s + %s", e.cfg.Storage.EnrollmentDir, e.cfg.Storage.AttendanceFile)
	}
}

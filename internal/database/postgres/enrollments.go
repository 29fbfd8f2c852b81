package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// EnrollmentRepository keeps enrollment images in the enrollments table.
type EnrollmentRepository struct {
	pool *Pool
}

// NewEnrollmentRepository creates a new PostgreSQL enrollment repository.
func NewEnrollmentRepository(pool *Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// Keys returns enrolled names ordered by name.
func (r *EnrollmentRepository) Keys(ctx context.Context) ([]string, error) {
	rows, err := r.pool.db.QueryContext(ctx, "SELECT name FROM enrollments ORDER BY name")
	if err != nil {
		return nil, database.Unavailable("query enrollments", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, database.Unavailable("scan enrollment", err)
		}
		keys = append(keys, name)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Unavailable("iterate enrollments", err)
	}
	return keys, nil
}

// Get returns the image stored for key.
func (r *EnrollmentRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var image []byte
	err := r.pool.db.QueryRowContext(ctx, "SELECT image FROM enrollments WHERE name = $1", key).Scan(&image)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("enrollment %q: %w", key, database.ErrNotFound)
	}
	if err != nil {
		return nil, database.Unavailable("get enrollment", err)
	}
	return image, nil
}

// Put stores image under key, replacing any previous image.
func (r *EnrollmentRepository) Put(ctx context.Context, key string, image []byte) error {
	query := `
		INSERT INTO enrollments (name, image, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET image = EXCLUDED.image, updated_at = NOW()
	`
	if _, err := r.pool.db.ExecContext(ctx, query, key, image); err != nil {
		return database.Unavailable("put enrollment", err)
	}
	return nil
}

// Delete removes the enrollment stored under key.
func (r *EnrollmentRepository) Delete(ctx context.Context, key string) error {
	res, err := r.pool.db.ExecContext(ctx, "DELETE FROM enrollments WHERE name = $1", key)
	if err != nil {
		return database.Unavailable("delete enrollment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return database.Unavailable("delete enrollment", err)
	}
	if n == 0 {
		return fmt.Errorf("enrollment %q: %w", key, database.ErrNotFound)
	}
	return nil
}

var _ database.EnrollmentStore = (*EnrollmentRepository)(nil)

package postgres

import (
	"context"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceRepository is an append-only attendance log in PostgreSQL.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// Contains reports whether a record for (name, date) exists.
func (r *AttendanceRepository) Contains(ctx context.Context, name, date string) (bool, error) {
	var exists bool
	err := r.pool.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM attendance WHERE name = $1 AND date = $2)", name, date,
	).Scan(&exists)
	if err != nil {
		return false, database.Unavailable("check attendance", err)
	}
	return exists, nil
}

// Append inserts rec.
func (r *AttendanceRepository) Append(ctx context.Context, rec database.AttendanceRecord) error {
	_, err := r.pool.db.ExecContext(ctx,
		"INSERT INTO attendance (name, date, time) VALUES ($1, $2, $3)", rec.Name, rec.Date, rec.Time,
	)
	if err != nil {
		return database.Unavailable("append attendance", err)
	}
	return nil
}

// List returns every record in insertion order.
func (r *AttendanceRepository) List(ctx context.Context) ([]database.AttendanceRecord, error) {
	rows, err := r.pool.db.QueryContext(ctx, "SELECT name, date, time FROM attendance ORDER BY id")
	if err != nil {
		return nil, database.Unavailable("query attendance", err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		var rec database.AttendanceRecord
		if err := rows.Scan(&rec.Name, &rec.Date, &rec.Time); err != nil {
			return nil, database.Unavailable("scan attendance", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Unavailable("iterate attendance", err)
	}
	return records, nil
}

var _ database.AttendanceStore = (*AttendanceRepository)(nil)

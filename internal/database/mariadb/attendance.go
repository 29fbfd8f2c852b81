package mariadb

import (
	"context"
	"database/sql"

	"github.com/kozaktomas/face-attendance/internal/database"
)

const createAttendanceTable = `
	CREATE TABLE IF NOT EXISTS attendance (
		id         BIGINT AUTO_INCREMENT PRIMARY KEY,
		name       VARCHAR(255) NOT NULL,
		date       CHAR(10) NOT NULL,
		time       CHAR(8) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_attendance_name_date (name, date)
	) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin
`

// AttendanceRepository is an append-only attendance log in MySQL or MariaDB.
// Names are compared with a binary collation, matching the other stores.
type AttendanceRepository struct {
	db *sql.DB
}

// NewAttendanceRepository creates the attendance table if needed.
func NewAttendanceRepository(ctx context.Context, pool *Pool) (*AttendanceRepository, error) {
	if _, err := pool.db.ExecContext(ctx, createAttendanceTable); err != nil {
		return nil, database.Unavailable("create attendance table", err)
	}
	return &AttendanceRepository{db: pool.db}, nil
}

// Contains reports whether a record for (name, date) exists.
func (r *AttendanceRepository) Contains(ctx context.Context, name, date string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM attendance WHERE name = ? AND date = ?)", name, date,
	).Scan(&exists)
	if err != nil {
		return false, database.Unavailable("check attendance", err)
	}
	return exists, nil
}

// Append inserts rec.
func (r *AttendanceRepository) Append(ctx context.Context, rec database.AttendanceRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO attendance (name, date, time) VALUES (?, ?, ?)", rec.Name, rec.Date, rec.Time,
	)
	if err != nil {
		return database.Unavailable("append attendance", err)
	}
	return nil
}

// List returns every record in insertion order.
func (r *AttendanceRepository) List(ctx context.Context) ([]database.AttendanceRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name, date, time FROM attendance ORDER BY id")
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

package database

import (
	"time"
)

// Attendance log formats.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// AttendanceHeader is the first logical record of a freshly created attendance log
var AttendanceHeader = []string{"Name", "Date", "Time"}

// AttendanceRecord is one row of the attendance log
type AttendanceRecord struct {
	Name string `json:"name"`
	Date string `json:"date"` // YYYY-MM-DD
	Time string `json:"time"` // HH:MM:SS
}

// NewAttendanceRecord formats t into an attendance record for name
func NewAttendanceRecord(name string, t time.Time) AttendanceRecord {
	return AttendanceRecord{
		Name: name,
		Date: t.Format(DateLayout),
		Time: t.Format(TimeLayout),
	}
}

// StoredDetection represents a cached face detection
type StoredDetection struct {
	FaceIndex int
	Embedding []float32
	BBox      []float64 // [x1, y1, x2, y2] in raw pixel coordinates
	DetScore  float64
	Model     string
	CreatedAt time.Time
}

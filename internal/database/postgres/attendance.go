package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/database"
)

// AttendanceRepository stores one attendance record per identity per day.
type AttendanceRepository struct {
	pool *Pool
}

func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// RecordAttendance upserts the event on (date, uid); a repeat check-in overwrites the time.
func (r *AttendanceRepository) RecordAttendance(ctx context.Context, event database.AttendanceEvent) error {
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO attendance (attendance_date, uid, name, attendance_time, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (attendance_date, uid) DO UPDATE SET
			name = EXCLUDED.name,
			attendance_time = EXCLUDED.attendance_time,
			recorded_at = EXCLUDED.recorded_at
	`, event.Date, event.UID, event.Name, event.Time, event.Timestamp)
	if err != nil {
		return fmt.Errorf("record attendance for uid %d: %w", event.UID, err)
	}
	return nil
}

// AttendanceDates returns the distinct dates recorded for uid.
func (r *AttendanceRepository) AttendanceDates(ctx context.Context, uid int64) ([]string, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT attendance_date
		FROM attendance
		WHERE uid = $1
		ORDER BY attendance_date
	`, uid)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan attendance date: %w", err)
		}
		dates = append(dates, d.Format("2006-01-02"))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return dates, nil
}

var _ database.AttendanceLedger = (*AttendanceRepository)(nil)

package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
)

type attendanceRepositoryImpl struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.AttendanceRepository {
	return &attendanceRepositoryImpl{db: db}
}

// SumPeriodMinutes implements attendance.AttendanceRepository.
func (r *attendanceRepositoryImpl) SumPeriodMinutes(ctx context.Context, companyID string, employeeIDs []string, from, to time.Time) (map[string]attendance.PeriodMinutes, error) {
	totals := make(map[string]attendance.PeriodMinutes)
	if len(employeeIDs) == 0 {
		return totals, nil
	}
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT
			a.employee_id,
			COALESCE(SUM(a.overtime_minutes) FILTER (WHERE a.status = ANY($5)), 0),
			COALESCE(SUM(a.work_hours_in_minutes) FILTER (WHERE a.status = $6), 0)
		FROM attendances a
		WHERE a.company_id = $1 AND a.employee_id = ANY($2)
			AND a.date BETWEEN $3 AND $4
		GROUP BY a.employee_id
	`

	attended := []string{string(attendance.StatusPresent), string(attendance.StatusLate)}
	rows, err := q.Query(ctx, query, companyID, employeeIDs, from, to, attended, attendance.StatusHoliday)
	if err != nil {
		return nil, fmt.Errorf("failed to sum attendance minutes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var employeeID string
		var m attendance.PeriodMinutes
		if err := rows.Scan(&employeeID, &m.Overtime, &m.Holiday); err != nil {
			return nil, fmt.Errorf("failed to scan attendance minutes: %w", err)
		}
		totals[employeeID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendance minutes: %w", err)
	}

	return totals, nil
}

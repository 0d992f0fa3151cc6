package attendance

import (
	"context"
	"time"
)

// AttendanceRepository defines data access methods for attendance records.
// All methods include companyID parameter to prevent cross-company data access attacks.
type AttendanceRepository interface {
	// SumPeriodMinutes totals overtime and holiday minutes per employee for
	// attendance dated within [from, to]. Employees without records are absent
	// from the map.
	SumPeriodMinutes(ctx context.Context, companyID string, employeeIDs []string, from, to time.Time) (map[string]PeriodMinutes, error)
}

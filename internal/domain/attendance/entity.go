package attendance

import (
	"time"
)

type Attendance struct {
	ID                 string
	EmployeeID         string
	CompanyID          string
	Date               time.Time
	ClockIn            *time.Time
	ClockOut           *time.Time
	WorkHoursInMinutes *int
	Status             Status
	OvertimeMinutes    *int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Status string

const (
	StatusPresent         Status = "present"
	StatusAbsent          Status = "absent"
	StatusLate            Status = "late"
	StatusOnLeave         Status = "on_leave"
	StatusHoliday         Status = "holiday"
	StatusWaitingApproval Status = "waiting_approval"
)

// PeriodMinutes totals an employee's payable minutes for a pay period.
// Overtime counts only on attended working days; Holiday counts minutes worked
// on public holidays.
type PeriodMinutes struct {
	Overtime int
	Holiday  int
}

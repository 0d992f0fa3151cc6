package leave

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LeaveRequestRepository - interface for leave_requests table
type LeaveRequestRepository interface {
	// SumUnpaidDays totals approved unpaid leave working days per employee
	// falling within [from, to]. Requests crossing a boundary count the share
	// of their days inside the range.
	SumUnpaidDays(ctx context.Context, companyID string, employeeIDs []string, from, to time.Time) (map[string]decimal.Decimal, error)
}

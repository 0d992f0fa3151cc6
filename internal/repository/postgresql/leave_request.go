package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/shopspring/decimal"
)

type leaveRequestRepositoryImpl struct {
	db *database.DB
}

func NewLeaveRequestRepository(db *database.DB) leave.LeaveRequestRepository {
	return &leaveRequestRepositoryImpl{db: db}
}

// SumUnpaidDays implements leave.LeaveRequestRepository.
func (r *leaveRequestRepositoryImpl) SumUnpaidDays(ctx context.Context, companyID string, employeeIDs []string, from, to time.Time) (map[string]decimal.Decimal, error) {
	totals := make(map[string]decimal.Decimal)
	if len(employeeIDs) == 0 {
		return totals, nil
	}
	q := GetQuerier(ctx, r.db)

	// Overlap share: working_days scaled by the calendar days inside [from, to].
	query := `
		SELECT
			lr.employee_id,
			COALESCE(SUM(
				lr.working_days
				* (LEAST(lr.end_date, $4::date) - GREATEST(lr.start_date, $3::date) + 1)::numeric
				/ (lr.end_date - lr.start_date + 1)::numeric
			), 0)
		FROM leave_requests lr
		JOIN leave_types lt ON lr.leave_type_id = lt.id
		WHERE lr.company_id = $1 AND lr.employee_id = ANY($2)
			AND lr.status = $5 AND lt.is_paid = false
			AND lr.start_date <= $4::date AND lr.end_date >= $3::date
		GROUP BY lr.employee_id
	`

	rows, err := q.Query(ctx, query, companyID, employeeIDs, from, to, leave.LeaveRequestStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to sum unpaid leave: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var employeeID string
		var days decimal.Decimal
		if err := rows.Scan(&employeeID, &days); err != nil {
			return nil, fmt.Errorf("failed to scan unpaid leave: %w", err)
		}
		totals[employeeID] = days.Round(2)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unpaid leave: %w", err)
	}

	return totals, nil
}

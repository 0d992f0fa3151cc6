package postgresql_test

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/repository/postgresql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaveRequestRepository_SumUnpaidDays(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewLeaveRequestRepository(setup.DB)
	ctx := context.Background()
	companyID := setup.NewCompany(t)
	alice := setup.InsertEmployee(t, companyID, "E001", dec("4000"))

	leaveType := func(paid bool) string {
		var id string
		err := setup.DB.QueryRow(ctx, `
			INSERT INTO leave_types (company_id, name, is_paid) VALUES ($1, 'leave', $2) RETURNING id
		`, companyID, paid).Scan(&id)
		require.NoError(t, err)
		return id
	}
	unpaid, paid := leaveType(false), leaveType(true)

	day := func(month, d int) time.Time { return time.Date(2025, time.Month(month), d, 0, 0, 0, 0, time.UTC) }
	insert := func(typeID string, start, end time.Time, days, status string) {
		_, err := setup.DB.Exec(ctx, `
			INSERT INTO leave_requests (company_id, employee_id, leave_type_id, start_date, end_date, total_days, working_days, status)
			VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		`, companyID, alice, typeID, start, end, dec(days), status)
		require.NoError(t, err)
	}
	insert(unpaid, day(3, 10), day(3, 11), "2", "approved")
	insert(unpaid, day(3, 30), day(4, 2), "4", "approved")
	insert(unpaid, day(3, 17), day(3, 17), "1", "rejected")
	insert(unpaid, day(3, 18), day(3, 18), "1", "waiting_approval")
	insert(paid, day(3, 20), day(3, 21), "2", "approved")

	from, to := day(3, 1), day(3, 31)
	totals, err := repo.SumUnpaidDays(ctx, companyID, []string{alice}, from, to)
	require.NoError(t, err)

	// Two full days plus half of the request crossing into April.
	assert.True(t, dec("4").Equal(totals[alice]), totals[alice].String())

	empty, err := repo.SumUnpaidDays(ctx, companyID, nil, from, to)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

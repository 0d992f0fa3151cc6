package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

type payrollRepository struct {
	db *database.DB
}

func NewPayrollRepository(db *database.DB) payroll.PayrollRepository {
	return &payrollRepository{db: db}
}

// ========== SETTINGS ==========

const settingsColumns = `
	id, company_id, include_overtime, include_holiday_pay, include_allowances, include_incentives,
	epf_enabled, socso_enabled, eis_enabled, pcb_enabled,
	auto_generate_enabled, auto_approve_enabled, variance_threshold,
	created_at, updated_at`

func scanSettings(row pgx.Row) (payroll.PayrollSettings, error) {
	var s payroll.PayrollSettings
	err := row.Scan(
		&s.ID, &s.CompanyID, &s.IncludeOvertime, &s.IncludeHolidayPay, &s.IncludeAllowances, &s.IncludeIncentives,
		&s.EPFEnabled, &s.SOCSOEnabled, &s.EISEnabled, &s.PCBEnabled,
		&s.AutoGenerateEnabled, &s.AutoApproveEnabled, &s.VarianceThreshold,
		&s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

func (r *payrollRepository) GetSettings(ctx context.Context, companyID string) (payroll.PayrollSettings, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + settingsColumns + ` FROM payroll_settings WHERE company_id = $1`

	s, err := scanSettings(q.QueryRow(ctx, query, companyID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return payroll.PayrollSettings{}, payroll.ErrPayrollSettingsNotFound
		}
		return payroll.PayrollSettings{}, fmt.Errorf("failed to get payroll settings: %w", err)
	}

	return s, nil
}

func (r *payrollRepository) UpsertSettings(ctx context.Context, settings payroll.PayrollSettings) (payroll.PayrollSettings, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_settings (
			company_id, include_overtime, include_holiday_pay, include_allowances, include_incentives,
			epf_enabled, socso_enabled, eis_enabled, pcb_enabled,
			auto_generate_enabled, auto_approve_enabled, variance_threshold
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (company_id) DO UPDATE SET
			include_overtime = EXCLUDED.include_overtime,
			include_holiday_pay = EXCLUDED.include_holiday_pay,
			include_allowances = EXCLUDED.include_allowances,
			include_incentives = EXCLUDED.include_incentives,
			epf_enabled = EXCLUDED.epf_enabled,
			socso_enabled = EXCLUDED.socso_enabled,
			eis_enabled = EXCLUDED.eis_enabled,
			pcb_enabled = EXCLUDED.pcb_enabled,
			auto_generate_enabled = EXCLUDED.auto_generate_enabled,
			auto_approve_enabled = EXCLUDED.auto_approve_enabled,
			variance_threshold = EXCLUDED.variance_threshold,
			updated_at = NOW()
		RETURNING ` + settingsColumns

	s, err := scanSettings(q.QueryRow(ctx, query,
		settings.CompanyID, settings.IncludeOvertime, settings.IncludeHolidayPay, settings.IncludeAllowances, settings.IncludeIncentives,
		settings.EPFEnabled, settings.SOCSOEnabled, settings.EISEnabled, settings.PCBEnabled,
		settings.AutoGenerateEnabled, settings.AutoApproveEnabled, settings.VarianceThreshold,
	))
	if err != nil {
		return payroll.PayrollSettings{}, fmt.Errorf("failed to upsert payroll settings: %w", err)
	}

	return s, nil
}

func (r *payrollRepository) ListAutoGenerateCompanyIDs(ctx context.Context) ([]string, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT company_id FROM payroll_settings WHERE auto_generate_enabled = true ORDER BY company_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list auto-generate companies: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan company id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// ========== RUNS ==========

const runColumns = `
	id, company_id, department_id, period_month, period_year, status,
	total_gross, total_net, total_deductions, total_employer_cost, employee_count,
	variance_from_previous, variance_percentage, has_previous,
	approved_by, approved_at, approval_type, edited_by, edited_at, edit_reason,
	locked_by, locked_at, created_by, created_at, updated_at`

func scanRun(row pgx.Row) (payroll.PayrollRun, error) {
	var run payroll.PayrollRun
	err := row.Scan(
		&run.ID, &run.CompanyID, &run.DepartmentID, &run.PeriodMonth, &run.PeriodYear, &run.Status,
		&run.TotalGross, &run.TotalNet, &run.TotalDeductions, &run.TotalEmployerCost, &run.EmployeeCount,
		&run.VarianceFromPrevious, &run.VariancePercentage, &run.HasPrevious,
		&run.ApprovedBy, &run.ApprovedAt, &run.ApprovalType, &run.EditedBy, &run.EditedAt, &run.EditReason,
		&run.LockedBy, &run.LockedAt, &run.CreatedBy, &run.CreatedAt, &run.UpdatedAt,
	)
	return run, err
}

func (r *payrollRepository) CreateRun(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_runs (company_id, department_id, period_month, period_year, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + runColumns

	created, err := scanRun(q.QueryRow(ctx, query,
		run.CompanyID, run.DepartmentID, run.PeriodMonth, run.PeriodYear, run.Status, run.CreatedBy,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return payroll.PayrollRun{}, payroll.ErrPayrollRunAlreadyExists
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to create payroll run: %w", err)
	}

	return created, nil
}

func (r *payrollRepository) GetRunByID(ctx context.Context, id string, companyID string) (payroll.PayrollRun, error) {
	return r.getRun(ctx, id, companyID, false)
}

// GetRunByIDForUpdate locks the run row until the surrounding transaction ends.
func (r *payrollRepository) GetRunByIDForUpdate(ctx context.Context, id string, companyID string) (payroll.PayrollRun, error) {
	return r.getRun(ctx, id, companyID, true)
}

func (r *payrollRepository) getRun(ctx context.Context, id string, companyID string, forUpdate bool) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + runColumns + ` FROM payroll_runs WHERE id = $1 AND company_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	run, err := scanRun(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return payroll.PayrollRun{}, payroll.ErrPayrollRunNotFound
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to get payroll run: %w", err)
	}

	return run, nil
}

func (r *payrollRepository) GetRunByPeriod(ctx context.Context, companyID string, departmentID *string, month, year int) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + runColumns + `
		FROM payroll_runs
		WHERE company_id = $1 AND department_id IS NOT DISTINCT FROM $2
			AND period_month = $3 AND period_year = $4
	`

	run, err := scanRun(q.QueryRow(ctx, query, companyID, departmentID, month, year))
	if err != nil {
		if err == pgx.ErrNoRows {
			return payroll.PayrollRun{}, payroll.ErrPayrollRunNotFound
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to get payroll run by period: %w", err)
	}

	return run, nil
}

func (r *payrollRepository) ListRuns(ctx context.Context, companyID string, filter payroll.RunFilter) ([]payroll.PayrollRun, int64, error) {
	q := GetQuerier(ctx, r.db)

	baseQuery := ` FROM payroll_runs WHERE company_id = $1`
	args := []interface{}{companyID}
	argIdx := 2

	if filter.PeriodMonth != nil {
		baseQuery += fmt.Sprintf(" AND period_month = $%d", argIdx)
		args = append(args, *filter.PeriodMonth)
		argIdx++
	}
	if filter.PeriodYear != nil {
		baseQuery += fmt.Sprintf(" AND period_year = $%d", argIdx)
		args = append(args, *filter.PeriodYear)
		argIdx++
	}
	if filter.Status != nil {
		baseQuery += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.DepartmentID != nil {
		baseQuery += fmt.Sprintf(" AND department_id = $%d", argIdx)
		args = append(args, *filter.DepartmentID)
		argIdx++
	}

	// Count query
	var totalCount int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*)"+baseQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count payroll runs: %w", err)
	}

	// Pagination
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	offset := (filter.Page - 1) * filter.Limit

	selectQuery := fmt.Sprintf(`SELECT %s %s ORDER BY period_year DESC, period_month DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		runColumns, baseQuery, argIdx, argIdx+1)
	args = append(args, filter.Limit, offset)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payroll runs: %w", err)
	}
	defer rows.Close()

	var runs []payroll.PayrollRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate payroll runs: %w", err)
	}

	return runs, totalCount, nil
}

// UpdateRunStatus moves a run from update.From to update.To and stamps the
// metadata belonging to the target status.
func (r *payrollRepository) UpdateRunStatus(ctx context.Context, companyID string, update payroll.RunStatusUpdate) error {
	q := GetQuerier(ctx, r.db)

	setParts := []string{"status = $3", "updated_at = NOW()"}
	args := []interface{}{update.RunID, companyID, update.To, update.From}
	argIdx := 5

	at := update.At
	if at.IsZero() {
		at = time.Now()
	}

	switch update.To {
	case payroll.RunStatusApproved, payroll.RunStatusAutoApproved:
		setParts = append(setParts,
			fmt.Sprintf("approved_by = $%d", argIdx),
			fmt.Sprintf("approved_at = $%d", argIdx+1),
			fmt.Sprintf("approval_type = $%d", argIdx+2),
		)
		args = append(args, update.Actor, at, update.ApprovalType)
	case payroll.RunStatusEdited:
		setParts = append(setParts,
			fmt.Sprintf("edited_by = $%d", argIdx),
			fmt.Sprintf("edited_at = $%d", argIdx+1),
			fmt.Sprintf("edit_reason = $%d", argIdx+2),
		)
		args = append(args, update.Actor, at, update.Reason)
	case payroll.RunStatusLocked:
		setParts = append(setParts,
			fmt.Sprintf("locked_by = $%d", argIdx),
			fmt.Sprintf("locked_at = $%d", argIdx+1),
		)
		args = append(args, update.Actor, at)
	}

	query := fmt.Sprintf(`
		UPDATE payroll_runs
		SET %s
		WHERE id = $1 AND company_id = $2 AND status = $4
		RETURNING id
	`, strings.Join(setParts, ", "))

	var updatedID string
	err := q.QueryRow(ctx, query, args...).Scan(&updatedID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: run %s is no longer %s", payroll.ErrInvalidTransition, update.RunID, update.From)
		}
		return fmt.Errorf("failed to update payroll run status: %w", err)
	}

	return nil
}

func (r *payrollRepository) UpdateRunVariance(ctx context.Context, runID string, companyID string, variance payroll.Variance) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_runs
		SET variance_from_previous = $3, variance_percentage = $4, has_previous = $5, updated_at = NOW()
		WHERE id = $1 AND company_id = $2
	`

	tag, err := q.Exec(ctx, query, runID, companyID, variance.Amount, variance.Percentage, variance.HasPrevious)
	if err != nil {
		return fmt.Errorf("failed to update payroll run variance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrPayrollRunNotFound
	}

	return nil
}

// RefreshRunTotals recomputes the run totals as the sum of its non-deleted items.
func (r *payrollRepository) RefreshRunTotals(ctx context.Context, runID string, companyID string) (payroll.RunTotals, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_runs pr
		SET total_gross = s.gross,
			total_net = s.net,
			total_deductions = s.deductions,
			total_employer_cost = s.employer_cost,
			employee_count = s.employee_count,
			updated_at = NOW()
		FROM (
			SELECT
				COALESCE(SUM(gross_salary), 0) AS gross,
				COALESCE(SUM(net_pay), 0) AS net,
				COALESCE(SUM(total_deductions), 0) AS deductions,
				COALESCE(SUM(employer_total_cost), 0) AS employer_cost,
				COUNT(*) AS employee_count
			FROM payroll_items
			WHERE payroll_run_id = $1 AND deleted_at IS NULL
		) s
		WHERE pr.id = $1 AND pr.company_id = $2
		RETURNING pr.total_gross, pr.total_net, pr.total_deductions, pr.total_employer_cost, pr.employee_count
	`

	var t payroll.RunTotals
	err := q.QueryRow(ctx, query, runID, companyID).Scan(&t.Gross, &t.Net, &t.Deductions, &t.EmployerCost, &t.EmployeeCount)
	if err != nil {
		if err == pgx.ErrNoRows {
			return payroll.RunTotals{}, payroll.ErrPayrollRunNotFound
		}
		return payroll.RunTotals{}, fmt.Errorf("failed to refresh payroll run totals: %w", err)
	}

	return t, nil
}

// ========== ITEMS ==========

const itemColumns = `
	pi.id, pi.payroll_run_id, pi.company_id, pi.employee_id,
	pi.basic_salary, pi.fixed_allowance, pi.overtime_amount, pi.holiday_pay, pi.commission_amount,
	pi.bonus, pi.incentive_amount, pi.trade_commission_amount, pi.outstation_amount, pi.claims_amount,
	pi.unpaid_leave_deduction, pi.other_deductions, pi.deduction_remarks, pi.pcb_override,
	pi.epf_employee, pi.epf_employer, pi.socso_employee, pi.socso_employer, pi.eis_employee, pi.eis_employer, pi.pcb,
	pi.gross_salary, pi.statutory_base, pi.total_deductions, pi.net_pay, pi.employer_total_cost,
	pi.created_at, pi.updated_at, pi.deleted_at,
	e.full_name, e.employee_code`

func scanItem(row pgx.Row) (payroll.PayrollItem, error) {
	var i payroll.PayrollItem
	err := row.Scan(
		&i.ID, &i.PayrollRunID, &i.CompanyID, &i.EmployeeID,
		&i.BasicSalary, &i.FixedAllowance, &i.OvertimeAmount, &i.HolidayPay, &i.CommissionAmount,
		&i.Bonus, &i.IncentiveAmount, &i.TradeCommissionAmount, &i.OutstationAmount, &i.ClaimsAmount,
		&i.UnpaidLeaveDeduction, &i.OtherDeductions, &i.DeductionRemarks, &i.PCBOverride,
		&i.EPFEmployee, &i.EPFEmployer, &i.SOCSOEmployee, &i.SOCSOEmployer, &i.EISEmployee, &i.EISEmployer, &i.PCB,
		&i.GrossSalary, &i.StatutoryBase, &i.TotalDeductions, &i.NetPay, &i.EmployerTotalCost,
		&i.CreatedAt, &i.UpdatedAt, &i.DeletedAt,
		&i.EmployeeName, &i.EmployeeCode,
	)
	return i, err
}

// CreateItems inserts all items in one batch round trip.
func (r *payrollRepository) CreateItems(ctx context.Context, items []payroll.PayrollItem) error {
	if len(items) == 0 {
		return nil
	}
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_items (
			payroll_run_id, company_id, employee_id,
			basic_salary, fixed_allowance, overtime_amount, holiday_pay, commission_amount,
			bonus, incentive_amount, trade_commission_amount, outstation_amount, claims_amount,
			unpaid_leave_deduction, other_deductions, deduction_remarks, pcb_override,
			epf_employee, epf_employer, socso_employee, socso_employer, eis_employee, eis_employer, pcb,
			gross_salary, statutory_base, total_deductions, net_pay, employer_total_cost
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24,
			$25, $26, $27, $28, $29
		)
	`

	batch := &pgx.Batch{}
	for _, i := range items {
		batch.Queue(query,
			i.PayrollRunID, i.CompanyID, i.EmployeeID,
			i.BasicSalary, i.FixedAllowance, i.OvertimeAmount, i.HolidayPay, i.CommissionAmount,
			i.Bonus, i.IncentiveAmount, i.TradeCommissionAmount, i.OutstationAmount, i.ClaimsAmount,
			i.UnpaidLeaveDeduction, i.OtherDeductions, i.DeductionRemarks, i.PCBOverride,
			i.EPFEmployee, i.EPFEmployer, i.SOCSOEmployee, i.SOCSOEmployer, i.EISEmployee, i.EISEmployer, i.PCB,
			i.GrossSalary, i.StatutoryBase, i.TotalDeductions, i.NetPay, i.EmployerTotalCost,
		)
	}

	br := q.SendBatch(ctx, batch)
	defer br.Close()

	for idx := range items {
		if _, err := br.Exec(); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("duplicate payroll item for employee %s: %w", items[idx].EmployeeID, err)
			}
			return fmt.Errorf("failed to insert payroll item for employee %s: %w", items[idx].EmployeeID, err)
		}
	}

	return nil
}

func (r *payrollRepository) GetItemByID(ctx context.Context, id string, companyID string) (payroll.PayrollItem, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + itemColumns + `
		FROM payroll_items pi
		JOIN employees e ON pi.employee_id = e.id
		WHERE pi.id = $1 AND pi.company_id = $2 AND pi.deleted_at IS NULL
	`

	item, err := scanItem(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return payroll.PayrollItem{}, payroll.ErrPayrollItemNotFound
		}
		return payroll.PayrollItem{}, fmt.Errorf("failed to get payroll item: %w", err)
	}

	return item, nil
}

func (r *payrollRepository) ListItemsByRun(ctx context.Context, runID string, companyID string) ([]payroll.PayrollItem, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + itemColumns + `
		FROM payroll_items pi
		JOIN employees e ON pi.employee_id = e.id
		WHERE pi.payroll_run_id = $1 AND pi.company_id = $2 AND pi.deleted_at IS NULL
		ORDER BY e.full_name, pi.id
	`

	rows, err := q.Query(ctx, query, runID, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll items: %w", err)
	}
	defer rows.Close()

	var items []payroll.PayrollItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payroll items: %w", err)
	}

	return items, nil
}

// UpdateItemInputs persists the editable inputs of an item. Derived columns are untouched.
func (r *payrollRepository) UpdateItemInputs(ctx context.Context, companyID string, item payroll.PayrollItem) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_items
		SET basic_salary = $3, fixed_allowance = $4, bonus = $5, commission_amount = $6,
			incentive_amount = $7, other_deductions = $8, deduction_remarks = $9,
			trade_commission_amount = $10, outstation_amount = $11, pcb_override = $12,
			updated_at = NOW()
		WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL
	`

	tag, err := q.Exec(ctx, query, item.ID, companyID,
		item.BasicSalary, item.FixedAllowance, item.Bonus, item.CommissionAmount,
		item.IncentiveAmount, item.OtherDeductions, item.DeductionRemarks,
		item.TradeCommissionAmount, item.OutstationAmount, item.PCBOverride,
	)
	if err != nil {
		return fmt.Errorf("failed to update payroll item inputs: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrPayrollItemNotFound
	}

	return nil
}

// UpdateItemDerived writes every derived amount in a single statement.
func (r *payrollRepository) UpdateItemDerived(ctx context.Context, itemID string, companyID string, d payroll.Derived) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_items
		SET gross_salary = $3, statutory_base = $4,
			epf_employee = $5, epf_employer = $6,
			socso_employee = $7, socso_employer = $8,
			eis_employee = $9, eis_employer = $10, pcb = $11,
			total_deductions = $12, net_pay = $13, employer_total_cost = $14,
			updated_at = NOW()
		WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL
	`

	tag, err := q.Exec(ctx, query, itemID, companyID,
		d.GrossSalary, d.StatutoryBase,
		d.EPFEmployee, d.EPFEmployer,
		d.SOCSOEmployee, d.SOCSOEmployer,
		d.EISEmployee, d.EISEmployer, d.PCB,
		d.TotalDeductions, d.NetPay, d.EmployerTotalCost,
	)
	if err != nil {
		return fmt.Errorf("failed to update payroll item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrPayrollItemNotFound
	}

	return nil
}

// GetYearToDate sums the statutory base, EPF and PCB of the employee's items
// in earlier months of the same year. Only runs that count as paid are read,
// and each month contributes one item: locked runs first, then the most
// recently updated.
func (r *payrollRepository) GetYearToDate(ctx context.Context, companyID string, employeeID string, year, beforeMonth int) (payroll.YearToDate, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(m.statutory_base), 0),
			COALESCE(SUM(m.epf_employee), 0),
			COALESCE(SUM(m.pcb), 0)
		FROM (
			SELECT DISTINCT ON (pr.period_month)
				pi.statutory_base, pi.epf_employee, pi.pcb
			FROM payroll_items pi
			JOIN payroll_runs pr ON pi.payroll_run_id = pr.id
			WHERE pi.company_id = $1 AND pi.employee_id = $2
				AND pr.period_year = $3 AND pr.period_month < $4
				AND pr.status = ANY($5)
				AND pi.deleted_at IS NULL
			ORDER BY pr.period_month, (pr.status = 'locked') DESC, pr.updated_at DESC, pr.id
		) m
	`

	var ytd payroll.YearToDate
	err := q.QueryRow(ctx, query, companyID, employeeID, year, beforeMonth, payroll.YearToDateStatuses()).Scan(
		&ytd.Months, &ytd.StatutoryBase, &ytd.EPF, &ytd.TaxPaid,
	)
	if err != nil {
		return payroll.YearToDate{}, fmt.Errorf("failed to get year-to-date totals: %w", err)
	}

	return ytd, nil
}

// ========== CLAIMS ==========

// GetUnlinkedClaimTotals sums approved claims not yet paid through a run.
func (r *payrollRepository) GetUnlinkedClaimTotals(ctx context.Context, companyID string, employeeIDs []string, until time.Time) (map[string]decimal.Decimal, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT employee_id, COALESCE(SUM(amount), 0)
		FROM claims
		WHERE company_id = $1 AND employee_id = ANY($2)
			AND status = $3 AND payroll_run_id IS NULL AND claim_date <= $4
		GROUP BY employee_id
	`

	rows, err := q.Query(ctx, query, companyID, employeeIDs, payroll.ClaimStatusApproved, until)
	if err != nil {
		return nil, fmt.Errorf("failed to sum claims: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var employeeID string
		var amount decimal.Decimal
		if err := rows.Scan(&employeeID, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan claim total: %w", err)
		}
		totals[employeeID] = amount
	}

	return totals, rows.Err()
}

func (r *payrollRepository) LinkClaims(ctx context.Context, companyID string, runID string, employeeIDs []string, until time.Time) (int64, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE claims
		SET payroll_run_id = $2, updated_at = NOW()
		WHERE company_id = $1 AND employee_id = ANY($3)
			AND status = $4 AND payroll_run_id IS NULL AND claim_date <= $5
	`

	tag, err := q.Exec(ctx, query, companyID, runID, employeeIDs, payroll.ClaimStatusApproved, until)
	if err != nil {
		return 0, fmt.Errorf("failed to link claims: %w", err)
	}

	return tag.RowsAffected(), nil
}

package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type employeeRepositoryImpl struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.EmployeeRepository {
	return &employeeRepositoryImpl{db: db}
}

const employeeColumns = `
	id, company_id, department_id, employee_code, full_name, dob, hire_date, resignation_date,
	marital_status, spouse_working, dependents, employment_status, base_salary, fixed_allowance,
	created_at, updated_at, deleted_at`

func scanEmployee(row pgx.Row) (employee.Employee, error) {
	var emp employee.Employee
	err := row.Scan(
		&emp.ID, &emp.CompanyID, &emp.DepartmentID, &emp.EmployeeCode, &emp.FullName, &emp.DOB,
		&emp.HireDate, &emp.ResignationDate, &emp.MaritalStatus, &emp.SpouseWorking, &emp.Dependents,
		&emp.EmploymentStatus, &emp.BaseSalary, &emp.FixedAllowance,
		&emp.CreatedAt, &emp.UpdatedAt, &emp.DeletedAt,
	)
	return emp, err
}

// GetByID implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) GetByID(ctx context.Context, id string, companyID string) (employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL`

	emp, err := scanEmployee(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, fmt.Errorf("failed to get employee with id %s: %w", id, err)
	}

	return emp, nil
}

// GetByIDs implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) GetByIDs(ctx context.Context, companyID string, ids []string) ([]employee.Employee, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := GetQuerier(ctx, e.db)

	query := `SELECT ` + employeeColumns + ` FROM employees WHERE company_id = $1 AND id = ANY($2) AND deleted_at IS NULL`

	return e.list(ctx, q, query, companyID, ids)
}

// GetActiveByCompanyID implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) GetActiveByCompanyID(ctx context.Context, companyID string, departmentID *string) ([]employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := `
		SELECT ` + employeeColumns + `
		FROM employees
		WHERE company_id = $1 AND employment_status = $2 AND deleted_at IS NULL
			AND ($3::uuid IS NULL OR department_id = $3)
		ORDER BY full_name, id
	`

	return e.list(ctx, q, query, companyID, employee.EmploymentStatusActive, departmentID)
}

func (e *employeeRepositoryImpl) list(ctx context.Context, q database.Querier, query string, args ...interface{}) ([]employee.Employee, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []employee.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, emp)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return employees, nil
}

package employee

import "context"

type EmployeeRepository interface {
	GetByID(ctx context.Context, id string, companyID string) (Employee, error)
	GetByIDs(ctx context.Context, companyID string, ids []string) ([]Employee, error)
	// GetActiveByCompanyID lists active employees, optionally limited to one department.
	GetActiveByCompanyID(ctx context.Context, companyID string, departmentID *string) ([]Employee, error)
}

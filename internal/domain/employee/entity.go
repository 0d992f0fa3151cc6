package employee

import (
	"time"

	"github.com/shopspring/decimal"
)

type Employee struct {
	ID               string
	CompanyID        string
	DepartmentID     *string
	EmployeeCode     string
	FullName         string
	DOB              *time.Time
	HireDate         time.Time
	ResignationDate  *time.Time
	MaritalStatus    MaritalStatus
	SpouseWorking    bool
	Dependents       int
	EmploymentStatus EmploymentStatus
	BaseSalary       *decimal.Decimal
	FixedAllowance   *decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
}

type MaritalStatus string

const (
	MaritalStatusSingle   MaritalStatus = "single"
	MaritalStatusMarried  MaritalStatus = "married"
	MaritalStatusDivorced MaritalStatus = "divorced"
	MaritalStatusWidowed  MaritalStatus = "widowed"
)

type EmploymentStatus string

const (
	EmploymentStatusActive     EmploymentStatus = "active"
	EmploymentStatusResigned   EmploymentStatus = "resigned"
	EmploymentStatusTerminated EmploymentStatus = "terminated"
)

// DefaultBasicSalary returns the configured base salary or zero.
func (e Employee) DefaultBasicSalary() decimal.Decimal {
	if e.BaseSalary == nil {
		return decimal.Zero
	}
	return *e.BaseSalary
}

func (e Employee) DefaultFixedAllowance() decimal.Decimal {
	if e.FixedAllowance == nil {
		return decimal.Zero
	}
	return *e.FixedAllowance
}

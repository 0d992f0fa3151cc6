package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayrollSettings - Company payroll configuration
type PayrollSettings struct {
	ID        string
	CompanyID string

	// Statutory base toggles
	IncludeOvertime   bool
	IncludeHolidayPay bool
	IncludeAllowances bool
	IncludeIncentives bool

	// Schemes
	EPFEnabled   bool
	SOCSOEnabled bool
	EISEnabled   bool
	PCBEnabled   bool

	AutoGenerateEnabled bool
	AutoApproveEnabled  bool
	VarianceThreshold   decimal.Decimal // percent

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultVarianceThreshold is used when a company has not configured one.
var DefaultVarianceThreshold = decimal.NewFromInt(5)

// DefaultSettings returns the configuration applied to companies without stored settings.
func DefaultSettings(companyID string) PayrollSettings {
	return PayrollSettings{
		CompanyID:           companyID,
		IncludeOvertime:     false,
		IncludeHolidayPay:   false,
		IncludeAllowances:   true,
		IncludeIncentives:   true,
		EPFEnabled:          true,
		SOCSOEnabled:        true,
		EISEnabled:          true,
		PCBEnabled:          true,
		AutoGenerateEnabled: false,
		AutoApproveEnabled:  true,
		VarianceThreshold:   DefaultVarianceThreshold,
	}
}

func (s PayrollSettings) Toggles() BaseToggles {
	return BaseToggles{
		IncludeOvertime:   s.IncludeOvertime,
		IncludeHolidayPay: s.IncludeHolidayPay,
		IncludeAllowances: s.IncludeAllowances,
		IncludeIncentives: s.IncludeIncentives,
	}
}

// BaseToggles selects the optional components counted in the statutory base.
type BaseToggles struct {
	IncludeOvertime   bool
	IncludeHolidayPay bool
	IncludeAllowances bool
	IncludeIncentives bool
}

// ApprovalType enum
type ApprovalType string

const (
	ApprovalTypeAuto   ApprovalType = "auto"
	ApprovalTypeManual ApprovalType = "manual"
)

// PayrollRun - One payroll per company, optional department and period
type PayrollRun struct {
	ID           string
	CompanyID    string
	DepartmentID *string
	PeriodMonth  int
	PeriodYear   int
	Status       RunStatus

	TotalGross        decimal.Decimal
	TotalNet          decimal.Decimal
	TotalDeductions   decimal.Decimal
	TotalEmployerCost decimal.Decimal
	EmployeeCount     int

	VarianceFromPrevious decimal.Decimal
	VariancePercentage   decimal.Decimal
	HasPrevious          bool

	ApprovedBy   *string
	ApprovedAt   *time.Time
	ApprovalType *ApprovalType
	EditedBy     *string
	EditedAt     *time.Time
	EditReason   *string
	LockedBy     *string
	LockedAt     *time.Time

	CreatedBy *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r PayrollRun) Totals() RunTotals {
	return RunTotals{
		Gross:         r.TotalGross,
		Net:           r.TotalNet,
		Deductions:    r.TotalDeductions,
		EmployerCost:  r.TotalEmployerCost,
		EmployeeCount: r.EmployeeCount,
	}
}

// RunTotals is always produced by summing a run's non-deleted items.
type RunTotals struct {
	Gross         decimal.Decimal `json:"total_gross"`
	Net           decimal.Decimal `json:"total_net"`
	Deductions    decimal.Decimal `json:"total_deductions"`
	EmployerCost  decimal.Decimal `json:"total_employer_cost"`
	EmployeeCount int             `json:"employee_count"`
}

// Variance compares a run's net total with the prior period's run.
type Variance struct {
	Amount      decimal.Decimal `json:"variance"`
	Percentage  decimal.Decimal `json:"percentage"`
	HasPrevious bool            `json:"has_previous"`
}

// PayrollItem - Per employee line of a payroll run
type PayrollItem struct {
	ID           string
	PayrollRunID string
	CompanyID    string
	EmployeeID   string

	// Earnings
	BasicSalary           decimal.Decimal
	FixedAllowance        decimal.Decimal
	OvertimeAmount        decimal.Decimal
	HolidayPay            decimal.Decimal
	CommissionAmount      decimal.Decimal
	Bonus                 decimal.Decimal
	IncentiveAmount       decimal.Decimal
	TradeCommissionAmount decimal.Decimal
	OutstationAmount      decimal.Decimal
	ClaimsAmount          decimal.Decimal
	UnpaidLeaveDeduction  decimal.Decimal

	// Manual inputs
	OtherDeductions  decimal.Decimal
	DeductionRemarks *string
	PCBOverride      *decimal.Decimal

	// Statutory
	EPFEmployee   decimal.Decimal
	EPFEmployer   decimal.Decimal
	SOCSOEmployee decimal.Decimal
	SOCSOEmployer decimal.Decimal
	EISEmployee   decimal.Decimal
	EISEmployer   decimal.Decimal
	PCB           decimal.Decimal

	// Derived
	GrossSalary       decimal.Decimal
	StatutoryBase     decimal.Decimal
	TotalDeductions   decimal.Decimal
	NetPay            decimal.Decimal
	EmployerTotalCost decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time

	// Joined fields
	EmployeeName *string
	EmployeeCode *string
}

// Components returns the item's earning inputs keyed by component.
func (i PayrollItem) Components() Components {
	return Components{
		ComponentBasicSalary:          i.BasicSalary,
		ComponentFixedAllowance:       i.FixedAllowance,
		ComponentOvertime:             i.OvertimeAmount,
		ComponentHolidayPay:           i.HolidayPay,
		ComponentCommission:           i.CommissionAmount,
		ComponentBonus:                i.Bonus,
		ComponentIncentive:            i.IncentiveAmount,
		ComponentTradeCommission:      i.TradeCommissionAmount,
		ComponentOutstation:           i.OutstationAmount,
		ComponentClaims:               i.ClaimsAmount,
		ComponentUnpaidLeaveDeduction: i.UnpaidLeaveDeduction,
	}
}

// Apply copies derived values onto the item.
func (i *PayrollItem) Apply(d Derived) {
	i.GrossSalary = d.GrossSalary
	i.StatutoryBase = d.StatutoryBase
	i.EPFEmployee = d.EPFEmployee
	i.EPFEmployer = d.EPFEmployer
	i.SOCSOEmployee = d.SOCSOEmployee
	i.SOCSOEmployer = d.SOCSOEmployer
	i.EISEmployee = d.EISEmployee
	i.EISEmployer = d.EISEmployer
	i.PCB = d.PCB
	i.TotalDeductions = d.TotalDeductions
	i.NetPay = d.NetPay
	i.EmployerTotalCost = d.EmployerTotalCost
}

// Derived holds every value the recalculator writes back to an item.
type Derived struct {
	GrossSalary       decimal.Decimal
	StatutoryBase     decimal.Decimal
	EPFEmployee       decimal.Decimal
	EPFEmployer       decimal.Decimal
	SOCSOEmployee     decimal.Decimal
	SOCSOEmployer     decimal.Decimal
	EISEmployee       decimal.Decimal
	EISEmployer       decimal.Decimal
	PCB               decimal.Decimal
	TotalDeductions   decimal.Decimal
	NetPay            decimal.Decimal
	EmployerTotalCost decimal.Decimal
}

// YearToDate sums an employee's earlier items in the same year.
type YearToDate struct {
	Months        int
	StatutoryBase decimal.Decimal
	EPF           decimal.Decimal
	TaxPaid       decimal.Decimal
}

// ClaimStatus enum
type ClaimStatus string

const (
	ClaimStatusPending  ClaimStatus = "pending"
	ClaimStatusApproved ClaimStatus = "approved"
	ClaimStatusRejected ClaimStatus = "rejected"
)

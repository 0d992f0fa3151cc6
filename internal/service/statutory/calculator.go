package statutory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativeBase  = errors.New("statutory base must not be negative")
	ErrInvalidTables = errors.New("invalid statutory tables")
)

// Split is an employee/employer contribution pair.
type Split struct {
	Employee decimal.Decimal `json:"employee" yaml:"employee"`
	Employer decimal.Decimal `json:"employer" yaml:"employer"`
}

func (s Split) Total() decimal.Decimal {
	return s.Employee.Add(s.Employer)
}

type MaritalStatus string

const (
	MaritalStatusSingle   MaritalStatus = "single"
	MaritalStatusMarried  MaritalStatus = "married"
	MaritalStatusDivorced MaritalStatus = "divorced"
	MaritalStatusWidowed  MaritalStatus = "widowed"
)

// Profile is the employee snapshot used for age exemptions and tax reliefs.
type Profile struct {
	Age           int
	MaritalStatus MaritalStatus
	SpouseWorking bool
	Dependents    int
}

func (p Profile) spouseReliefApplies() bool {
	return p.MaritalStatus == MaritalStatusMarried && !p.SpouseWorking
}

// AgeAt returns full years between dob and ref. A nil dob yields 0.
func AgeAt(dob *time.Time, ref time.Time) int {
	if dob == nil {
		return 0
	}
	age := ref.Year() - dob.Year()
	if ref.Month() < dob.Month() || (ref.Month() == dob.Month() && ref.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

type Period struct {
	Month int
	Year  int
}

// ReferenceDate is the last day of the period.
func (p Period) ReferenceDate() time.Time {
	return time.Date(p.Year, time.Month(p.Month)+1, 0, 0, 0, 0, 0, time.UTC)
}

// RemainingMonths is the number of months in the year after this one.
func (p Period) RemainingMonths() int {
	n := 12 - p.Month
	if n < 0 {
		return 0
	}
	return n
}

// YearToDate carries figures already paid this year. When present PCB uses the
// month-to-date formula instead of an even annual split.
type YearToDate struct {
	Gross   decimal.Decimal
	EPF     decimal.Decimal
	TaxPaid decimal.Decimal
}

// Overrides replace computed values as-is.
type Overrides struct {
	EPF   *Split
	SOCSO *Split
	EIS   *Split
	PCB   *decimal.Decimal
}

// Disabled marks schemes that a company does not run.
type Disabled struct {
	EPF   bool
	SOCSO bool
	EIS   bool
	PCB   bool
}

type Options struct {
	Overrides Overrides
	Disabled  Disabled
	YTD       *YearToDate
}

type Result struct {
	EPF   Split           `json:"epf"`
	SOCSO Split           `json:"socso"`
	EIS   Split           `json:"eis"`
	PCB   decimal.Decimal `json:"pcb"`
}

// EmployeeTotal is the amount withheld from the employee across all schemes.
func (r Result) EmployeeTotal() decimal.Decimal {
	return r.EPF.Employee.Add(r.SOCSO.Employee).Add(r.EIS.Employee).Add(r.PCB)
}

func (r Result) EmployerTotal() decimal.Decimal {
	return r.EPF.Employer.Add(r.SOCSO.Employer).Add(r.EIS.Employer)
}

// Calculator computes statutory contributions from an injected table set.
// It holds no mutable state and is safe for concurrent use.
type Calculator struct {
	tables Tables
}

func NewCalculator(tables Tables) (*Calculator, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{tables: tables}, nil
}

// NewDefaultCalculator uses DefaultTables.
func NewDefaultCalculator() *Calculator {
	return &Calculator{tables: DefaultTables()}
}

func (c *Calculator) Calculate(base decimal.Decimal, profile Profile, period Period, opts Options) (Result, error) {
	if base.IsNegative() {
		return Result{}, ErrNegativeBase
	}

	var res Result
	if base.IsPositive() {
		if !opts.Disabled.EPF {
			res.EPF = c.EPF(base, profile.Age)
		}
		if !opts.Disabled.SOCSO {
			res.SOCSO = c.SOCSO(base)
		}
		if !opts.Disabled.EIS {
			res.EIS = c.EIS(base, profile.Age)
		}
	}

	if opts.Overrides.EPF != nil {
		res.EPF = *opts.Overrides.EPF
	}
	if opts.Overrides.SOCSO != nil {
		res.SOCSO = *opts.Overrides.SOCSO
	}
	if opts.Overrides.EIS != nil {
		res.EIS = *opts.Overrides.EIS
	}

	// PCB depends on the final EPF employee amount for its relief.
	switch {
	case opts.Overrides.PCB != nil:
		res.PCB = *opts.Overrides.PCB
	case base.IsPositive() && !opts.Disabled.PCB:
		res.PCB = c.PCB(base, res.EPF.Employee, profile, period, opts.YTD)
	default:
		res.PCB = decimal.Zero
	}

	return res, nil
}

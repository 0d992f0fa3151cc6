package statutory

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Tables holds every rate, threshold and lookup table the calculator needs.
// DefaultTables returns the Malaysian reference set; LoadTables reads an override from YAML.
type Tables struct {
	Version int       `yaml:"version"`
	EPF     EPFTable  `yaml:"epf"`
	SOCSO   StepTable `yaml:"socso"`
	EIS     EISTable  `yaml:"eis"`
	PCB     PCBTable  `yaml:"pcb"`
}

type EPFTable struct {
	WageCeiling          decimal.Decimal `yaml:"wage_ceiling"`
	EmployeeRate         decimal.Decimal `yaml:"employee_rate"`
	EmployerRateLow      decimal.Decimal `yaml:"employer_rate_low"`
	EmployerRateHigh     decimal.Decimal `yaml:"employer_rate_high"`
	EmployerLowThreshold decimal.Decimal `yaml:"employer_low_threshold"`
	SeniorAge            int             `yaml:"senior_age"`
	SeniorEmployeeRate   decimal.Decimal `yaml:"senior_employee_rate"`
	SeniorEmployerRate   decimal.Decimal `yaml:"senior_employer_rate"`
}

// Step is one wage row of a contribution table. A row covers (previous UpTo, UpTo].
type Step struct {
	UpTo     decimal.Decimal `yaml:"up_to"`
	Employee decimal.Decimal `yaml:"employee"`
	Employer decimal.Decimal `yaml:"employer"`
}

// StepTable is an ordered contribution table with a fixed amount above Ceiling.
type StepTable struct {
	Ceiling      decimal.Decimal `yaml:"ceiling"`
	Steps        []Step          `yaml:"steps"`
	AboveCeiling Split           `yaml:"above_ceiling"`
}

type EISTable struct {
	StepTable `yaml:",inline"`
	// Contributions stop from this age onward.
	ExemptAge int `yaml:"exempt_age"`
}

type Bracket struct {
	Floor decimal.Decimal `yaml:"floor"`
	Rate  decimal.Decimal `yaml:"rate"`
	Base  decimal.Decimal `yaml:"base"`
}

type PCBTable struct {
	Brackets         []Bracket       `yaml:"brackets"`
	IndividualRelief decimal.Decimal `yaml:"individual_relief"`
	SpouseRelief     decimal.Decimal `yaml:"spouse_relief"`
	DependentRelief  decimal.Decimal `yaml:"dependent_relief"`
	EPFReliefCap     decimal.Decimal `yaml:"epf_relief_cap"`
	RebateThreshold  decimal.Decimal `yaml:"rebate_threshold"`
	IndividualRebate decimal.Decimal `yaml:"individual_rebate"`
	SpouseRebate     decimal.Decimal `yaml:"spouse_rebate"`
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DefaultTables returns the Malaysian EPF, SOCSO (first category), EIS and PCB reference tables.
func DefaultTables() Tables {
	return Tables{
		Version: 1,
		EPF: EPFTable{
			WageCeiling:          d("20000"),
			EmployeeRate:         d("0.11"),
			EmployerRateLow:      d("0.13"),
			EmployerRateHigh:     d("0.12"),
			EmployerLowThreshold: d("5000"),
			SeniorAge:            60,
			SeniorEmployeeRate:   decimal.Zero,
			SeniorEmployerRate:   d("0.04"),
		},
		SOCSO: StepTable{
			Ceiling:      d("5000"),
			Steps:        socsoSteps(),
			AboveCeiling: Split{Employee: d("24.75"), Employer: d("69.05")},
		},
		EIS: EISTable{
			StepTable: StepTable{
				Ceiling:      d("5000"),
				Steps:        eisSteps(),
				AboveCeiling: Split{Employee: d("9.90"), Employer: d("9.90")},
			},
			ExemptAge: 57,
		},
		PCB: PCBTable{
			Brackets: []Bracket{
				{Floor: d("0"), Rate: d("0"), Base: d("0")},
				{Floor: d("5000"), Rate: d("0.01"), Base: d("0")},
				{Floor: d("20000"), Rate: d("0.03"), Base: d("150")},
				{Floor: d("35000"), Rate: d("0.06"), Base: d("600")},
				{Floor: d("50000"), Rate: d("0.11"), Base: d("1500")},
				{Floor: d("70000"), Rate: d("0.19"), Base: d("3700")},
				{Floor: d("100000"), Rate: d("0.25"), Base: d("9400")},
				{Floor: d("400000"), Rate: d("0.26"), Base: d("84400")},
				{Floor: d("600000"), Rate: d("0.28"), Base: d("136400")},
				{Floor: d("2000000"), Rate: d("0.30"), Base: d("528400")},
			},
			IndividualRelief: d("9000"),
			SpouseRelief:     d("4000"),
			DependentRelief:  d("2000"),
			EPFReliefCap:     d("4000"),
			RebateThreshold:  d("35000"),
			IndividualRebate: d("400"),
			SpouseRebate:     d("400"),
		},
	}
}

// socsoSteps builds the first-category rows up to RM5,000.
// From the 500.01-600 row onward the employer amount alternates +1.80 / +1.70 per row
// and the employee amount rises by 0.50.
func socsoSteps() []Step {
	steps := []Step{
		{UpTo: d("30"), Employee: d("0.10"), Employer: d("0.40")},
		{UpTo: d("50"), Employee: d("0.20"), Employer: d("0.70")},
		{UpTo: d("70"), Employee: d("0.30"), Employer: d("1.10")},
		{UpTo: d("100"), Employee: d("0.40"), Employer: d("1.50")},
		{UpTo: d("140"), Employee: d("0.60"), Employer: d("2.10")},
		{UpTo: d("200"), Employee: d("0.85"), Employer: d("2.95")},
		{UpTo: d("300"), Employee: d("1.25"), Employer: d("4.35")},
		{UpTo: d("400"), Employee: d("1.75"), Employer: d("6.15")},
		{UpTo: d("500"), Employee: d("2.25"), Employer: d("7.85")},
	}

	employee := d("2.25")
	employer := d("7.85")
	for upTo, i := int64(600), 0; upTo <= 5000; upTo, i = upTo+100, i+1 {
		employee = employee.Add(d("0.50"))
		if i%2 == 0 {
			employer = employer.Add(d("1.80"))
		} else {
			employer = employer.Add(d("1.70"))
		}
		steps = append(steps, Step{UpTo: decimal.NewFromInt(upTo), Employee: employee, Employer: employer})
	}
	return steps
}

// eisSteps builds the EIS rows up to RM5,000. Each side pays 0.2% of the row midpoint
// from the 400.01-500 row onward.
func eisSteps() []Step {
	fixed := []struct{ upTo, amount string }{
		{"30", "0.05"},
		{"50", "0.10"},
		{"70", "0.15"},
		{"100", "0.20"},
		{"140", "0.25"},
		{"200", "0.35"},
		{"300", "0.50"},
		{"400", "0.70"},
	}

	steps := make([]Step, 0, len(fixed)+46)
	for _, f := range fixed {
		steps = append(steps, Step{UpTo: d(f.upTo), Employee: d(f.amount), Employer: d(f.amount)})
	}

	rate := d("0.002")
	for upTo := int64(500); upTo <= 5000; upTo += 100 {
		amount := decimal.NewFromInt(upTo - 50).Mul(rate).Round(2)
		steps = append(steps, Step{UpTo: decimal.NewFromInt(upTo), Employee: amount, Employer: amount})
	}
	return steps
}

// LoadTables reads a YAML table set from path.
func LoadTables(path string) (Tables, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read statutory tables: %w", err)
	}
	return ParseTablesYAML(b)
}

func ParseTablesYAML(b []byte) (Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(b, &t); err != nil {
		return Tables{}, fmt.Errorf("parse statutory tables: %w", err)
	}
	if t.Version != 1 {
		return Tables{}, errors.New("statutory tables: unsupported version")
	}
	if err := t.Validate(); err != nil {
		return Tables{}, err
	}
	return t, nil
}

// Validate checks ordering so lookups can rely on a linear scan.
func (t Tables) Validate() error {
	if err := t.SOCSO.validate("socso"); err != nil {
		return err
	}
	if err := t.EIS.validate("eis"); err != nil {
		return err
	}
	if len(t.PCB.Brackets) == 0 {
		return fmt.Errorf("%w: pcb brackets are empty", ErrInvalidTables)
	}
	for i := 1; i < len(t.PCB.Brackets); i++ {
		if !t.PCB.Brackets[i].Floor.GreaterThan(t.PCB.Brackets[i-1].Floor) {
			return fmt.Errorf("%w: pcb bracket %d is out of order", ErrInvalidTables, i)
		}
	}
	if t.EPF.WageCeiling.IsNegative() || t.EPF.WageCeiling.IsZero() {
		return fmt.Errorf("%w: epf wage ceiling must be positive", ErrInvalidTables)
	}
	return nil
}

func (s StepTable) validate(name string) error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("%w: %s steps are empty", ErrInvalidTables, name)
	}
	for i := 1; i < len(s.Steps); i++ {
		prev, cur := s.Steps[i-1], s.Steps[i]
		if !cur.UpTo.GreaterThan(prev.UpTo) {
			return fmt.Errorf("%w: %s row %d is out of order", ErrInvalidTables, name, i)
		}
		if cur.Employee.LessThan(prev.Employee) || cur.Employer.LessThan(prev.Employer) {
			return fmt.Errorf("%w: %s row %d decreases", ErrInvalidTables, name, i)
		}
	}
	if !s.Steps[len(s.Steps)-1].UpTo.Equal(s.Ceiling) {
		return fmt.Errorf("%w: %s last row must end at the ceiling", ErrInvalidTables, name)
	}
	return nil
}

// lookup returns the row amounts for wage. Callers handle zero and above-ceiling wages.
func (s StepTable) lookup(wage decimal.Decimal) Split {
	if wage.GreaterThan(s.Ceiling) {
		return s.AboveCeiling
	}
	for _, step := range s.Steps {
		if wage.LessThanOrEqual(step.UpTo) {
			return Split{Employee: step.Employee, Employer: step.Employer}
		}
	}
	return s.AboveCeiling
}

package statutory

import "github.com/shopspring/decimal"

// EPF returns the retirement fund split, each side rounded to the nearest ringgit.
func (c *Calculator) EPF(base decimal.Decimal, age int) Split {
	t := c.tables.EPF
	if !base.IsPositive() {
		return Split{}
	}

	wage := decimal.Min(base, t.WageCeiling)

	employeeRate := t.EmployeeRate
	employerRate := t.EmployerRateHigh
	if base.LessThanOrEqual(t.EmployerLowThreshold) {
		employerRate = t.EmployerRateLow
	}
	if t.SeniorAge > 0 && age > t.SeniorAge {
		employeeRate = t.SeniorEmployeeRate
		employerRate = t.SeniorEmployerRate
	}

	return Split{
		Employee: wage.Mul(employeeRate).Round(0),
		Employer: wage.Mul(employerRate).Round(0),
	}
}

// SOCSO returns the first-category social security split for base.
func (c *Calculator) SOCSO(base decimal.Decimal) Split {
	if !base.IsPositive() {
		return Split{}
	}
	return c.tables.SOCSO.lookup(base)
}

// EIS returns the employment insurance split. Nothing is due from the exempt age onward.
func (c *Calculator) EIS(base decimal.Decimal, age int) Split {
	if !base.IsPositive() {
		return Split{}
	}
	if c.tables.EIS.ExemptAge > 0 && age >= c.tables.EIS.ExemptAge {
		return Split{}
	}
	return c.tables.EIS.lookup(base)
}

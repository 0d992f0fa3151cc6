package statutory

import "github.com/shopspring/decimal"

var twelve = decimal.NewFromInt(12)

// PCB returns the monthly tax deduction for a monthly base with epfEmployee already withheld.
//
// Chargeable income P is projected over the year and reduced by reliefs:
//
//	P = annual(Y - K) - K_relief - D - S - Q*C
//	monthly = [(P - M) * R + B - rebate - X] / (n + 1)
//
// Without year-to-date figures the annual tax is spread evenly over twelve months.
func (c *Calculator) PCB(base, epfEmployee decimal.Decimal, profile Profile, period Period, ytd *YearToDate) decimal.Decimal {
	if !base.IsPositive() {
		return decimal.Zero
	}
	t := c.tables.PCB

	var income, epf decimal.Decimal
	months := twelve
	if ytd != nil {
		// remaining months plus the current one
		months = decimal.NewFromInt(int64(period.RemainingMonths() + 1))
		income = ytd.Gross.Add(base.Mul(months))
		epf = ytd.EPF.Add(epfEmployee.Mul(months))
	} else {
		income = base.Mul(twelve)
		epf = epfEmployee.Mul(twelve)
	}

	chargeable := income.Sub(decimal.Min(epf, t.EPFReliefCap)).Sub(c.reliefs(profile))
	if chargeable.IsNegative() {
		chargeable = decimal.Zero
	}

	tax := c.annualTax(chargeable, profile)

	var monthly decimal.Decimal
	if ytd != nil {
		monthly = tax.Sub(ytd.TaxPaid).Div(months)
	} else {
		monthly = tax.Div(twelve)
	}

	if monthly.IsNegative() {
		return decimal.Zero
	}
	return monthly.Round(2)
}

func (c *Calculator) reliefs(profile Profile) decimal.Decimal {
	t := c.tables.PCB
	total := t.IndividualRelief
	if profile.spouseReliefApplies() {
		total = total.Add(t.SpouseRelief)
	}
	if profile.Dependents > 0 {
		total = total.Add(t.DependentRelief.Mul(decimal.NewFromInt(int64(profile.Dependents))))
	}
	return total
}

// annualTax applies the bracket formula and rebates to chargeable income, never below zero.
func (c *Calculator) annualTax(chargeable decimal.Decimal, profile Profile) decimal.Decimal {
	t := c.tables.PCB
	b := c.bracketFor(chargeable)

	tax := chargeable.Sub(b.Floor).Mul(b.Rate).Add(b.Base)

	if chargeable.LessThanOrEqual(t.RebateThreshold) {
		tax = tax.Sub(t.IndividualRebate)
		if profile.spouseReliefApplies() {
			tax = tax.Sub(t.SpouseRebate)
		}
	}

	if tax.IsNegative() {
		return decimal.Zero
	}
	return tax
}

// bracketFor scans the ordered brackets and returns the highest one whose floor is at or below income.
func (c *Calculator) bracketFor(income decimal.Decimal) Bracket {
	brackets := c.tables.PCB.Brackets
	selected := brackets[0]
	for _, b := range brackets {
		if income.LessThan(b.Floor) {
			break
		}
		selected = b
	}
	return selected
}

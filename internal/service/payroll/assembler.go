package payroll

import (
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

// Gross is the output of AssembleGross.
type Gross struct {
	GrossPay      decimal.Decimal
	StatutoryBase decimal.Decimal
}

// Proration scales the listed components by MonthsEmployed/12 when tenure is under a year.
type Proration struct {
	MonthsEmployed int
	Fields         []payroll.Component
}

var twelve = decimal.NewFromInt(12)

// statutoryAlways are part of the statutory base regardless of company toggles.
var statutoryAlways = []payroll.Component{
	payroll.ComponentBasicSalary,
	payroll.ComponentCommission,
	payroll.ComponentTradeCommission,
	payroll.ComponentBonus,
}

// AssembleGross sums earnings into gross pay and the statutory base.
// Missing components read as zero.
func AssembleGross(components payroll.Components, toggles payroll.BaseToggles, proration *Proration) Gross {
	c := components
	if proration != nil {
		c = proration.apply(components)
	}

	gross := decimal.Zero
	for _, name := range payroll.EarningComponents {
		gross = gross.Add(c.Get(name))
	}
	gross = gross.Sub(c.Get(payroll.ComponentUnpaidLeaveDeduction))

	base := decimal.Zero
	for _, name := range statutoryAlways {
		base = base.Add(c.Get(name))
	}
	if toggles.IncludeOvertime {
		base = base.Add(c.Get(payroll.ComponentOvertime))
	}
	if toggles.IncludeHolidayPay {
		base = base.Add(c.Get(payroll.ComponentHolidayPay))
	}
	if toggles.IncludeAllowances {
		base = base.Add(c.Get(payroll.ComponentFixedAllowance)).Add(c.Get(payroll.ComponentOutstation))
	}
	if toggles.IncludeIncentives {
		base = base.Add(c.Get(payroll.ComponentIncentive))
	}

	return Gross{GrossPay: gross, StatutoryBase: base}
}

func (p Proration) apply(in payroll.Components) payroll.Components {
	months := p.MonthsEmployed
	if months >= 12 || len(p.Fields) == 0 {
		return in
	}
	if months < 0 {
		months = 0
	}

	out := make(payroll.Components, len(in))
	for k, v := range in {
		out[k] = v
	}
	factor := decimal.NewFromInt(int64(months))
	for _, name := range p.Fields {
		out[name] = in.Get(name).Mul(factor).Div(twelve).Round(2)
	}
	return out
}

// MonthsEmployed counts whole months from join to ref. A join date after ref yields 0.
func MonthsEmployed(join, ref time.Time) int {
	if ref.Before(join) {
		return 0
	}
	jy, jm, jd := join.Date()
	ry, rm, rd := ref.Date()

	months := (ry-jy)*12 + int(rm) - int(jm)
	// The last day of a month completes a month started on a later day number.
	lastDay := time.Date(ry, rm+1, 0, 0, 0, 0, 0, ref.Location()).Day()
	if rd < jd && rd != lastDay {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// Ordinary rate of pay: monthly basic over 26 working days of 8 normal hours.
var (
	workingDaysPerMonth = decimal.NewFromInt(26)
	normalHoursPerDay   = decimal.NewFromInt(8)
	minutesPerHour      = decimal.NewFromInt(60)
	overtimeMultiplier  = decimal.RequireFromString("1.5")
	holidayMultiplier   = decimal.NewFromInt(2)
)

// PeriodPay holds the item components derived from attendance and leave.
type PeriodPay struct {
	Overtime             decimal.Decimal
	HolidayPay           decimal.Decimal
	UnpaidLeaveDeduction decimal.Decimal
}

// ComputePeriodPay prices overtime and holiday minutes at the hourly ordinary
// rate and unpaid leave at the daily rate. The leave deduction never exceeds basic.
func ComputePeriodPay(basic decimal.Decimal, minutes attendance.PeriodMinutes, unpaidDays decimal.Decimal) PeriodPay {
	if !basic.IsPositive() {
		return PeriodPay{}
	}
	daily := basic.Div(workingDaysPerMonth)
	hourly := daily.Div(normalHoursPerDay)

	var p PeriodPay
	if minutes.Overtime > 0 {
		p.Overtime = hourly.Mul(overtimeMultiplier).
			Mul(decimal.NewFromInt(int64(minutes.Overtime))).Div(minutesPerHour).Round(2)
	}
	if minutes.Holiday > 0 {
		p.HolidayPay = hourly.Mul(holidayMultiplier).
			Mul(decimal.NewFromInt(int64(minutes.Holiday))).Div(minutesPerHour).Round(2)
	}
	if unpaidDays.IsPositive() {
		p.UnpaidLeaveDeduction = decimal.Min(daily.Mul(unpaidDays).Round(2), basic)
	}
	return p
}

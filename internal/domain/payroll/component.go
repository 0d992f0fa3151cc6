package payroll

import "github.com/shopspring/decimal"

// Component names an earning input of a payroll item.
type Component string

const (
	ComponentBasicSalary          Component = "basic_salary"
	ComponentFixedAllowance       Component = "fixed_allowance"
	ComponentOvertime             Component = "overtime_amount"
	ComponentHolidayPay           Component = "holiday_pay"
	ComponentCommission           Component = "commission_amount"
	ComponentBonus                Component = "bonus"
	ComponentIncentive            Component = "incentive_amount"
	ComponentTradeCommission      Component = "trade_commission_amount"
	ComponentOutstation           Component = "outstation_amount"
	ComponentClaims               Component = "claims_amount"
	ComponentUnpaidLeaveDeduction Component = "unpaid_leave_deduction"
)

// EarningComponents lists every component added to gross pay.
var EarningComponents = []Component{
	ComponentBasicSalary,
	ComponentFixedAllowance,
	ComponentOvertime,
	ComponentHolidayPay,
	ComponentCommission,
	ComponentBonus,
	ComponentIncentive,
	ComponentTradeCommission,
	ComponentOutstation,
	ComponentClaims,
}

// Components maps component names to amounts. A missing key reads as zero.
type Components map[Component]decimal.Decimal

func (c Components) Get(name Component) decimal.Decimal {
	if v, ok := c[name]; ok {
		return v
	}
	return decimal.Zero
}

package payroll

import (
	"context"
	"errors"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// previousPeriod steps back one month, wrapping January to December of the prior year.
func previousPeriod(month, year int) (int, int) {
	if month <= 1 {
		return 12, year - 1
	}
	return month - 1, year
}

// compareNet derives the variance of current against the prior net total.
// A zero prior total yields a zero percentage.
func compareNet(current, previous decimal.Decimal) payroll.Variance {
	v := payroll.Variance{
		Amount:      current.Sub(previous),
		Percentage:  decimal.Zero,
		HasPrevious: true,
	}
	if !previous.IsZero() {
		v.Percentage = v.Amount.Div(previous.Abs()).Mul(hundred).Round(2)
	}
	return v
}

func (s *PayrollServiceImpl) variance(ctx context.Context, companyID string, departmentID *string, month, year int, current decimal.Decimal) (payroll.Variance, error) {
	prevMonth, prevYear := previousPeriod(month, year)

	prev, err := s.payrollRepo.GetRunByPeriod(ctx, companyID, departmentID, prevMonth, prevYear)
	if err != nil {
		if errors.Is(err, payroll.ErrPayrollRunNotFound) {
			return payroll.Variance{Amount: decimal.Zero, Percentage: decimal.Zero}, nil
		}
		return payroll.Variance{}, err
	}

	return compareNet(current, prev.TotalNet), nil
}

// ComputeVariance compares currentTotal with the net total of the equivalent prior-month run.
func (s *PayrollServiceImpl) ComputeVariance(ctx context.Context, req payroll.VarianceRequest) (payroll.Variance, error) {
	if err := req.Validate(); err != nil {
		return payroll.Variance{}, err
	}

	actor, err := actorFromContext(ctx)
	if err != nil {
		return payroll.Variance{}, err
	}

	return s.variance(ctx, actor.CompanyID, req.DepartmentID, req.PeriodMonth, req.PeriodYear, req.CurrentTotal)
}

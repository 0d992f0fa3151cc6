package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/audit"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/cmlabs-hris/payroll-engine/internal/service/statutory"
	"golang.org/x/sync/errgroup"
)

// computeDerived is the pure per-item pipeline: assemble gross, run the
// statutory calculator and derive totals. Same inputs give identical output.
func computeDerived(
	calc *statutory.Calculator,
	item payroll.PayrollItem,
	emp employee.Employee,
	period statutory.Period,
	settings payroll.PayrollSettings,
	ytd *payroll.YearToDate,
) (payroll.Derived, error) {
	gross := AssembleGross(item.Components(), settings.Toggles(), nil)

	profile := statutory.Profile{
		Age:           statutory.AgeAt(emp.DOB, period.ReferenceDate()),
		MaritalStatus: statutory.MaritalStatus(emp.MaritalStatus),
		SpouseWorking: emp.SpouseWorking,
		Dependents:    emp.Dependents,
	}

	opts := statutory.Options{
		Overrides: statutory.Overrides{PCB: item.PCBOverride},
		Disabled:  disabledSchemes(settings),
	}
	if ytd != nil && ytd.Months > 0 {
		opts.YTD = &statutory.YearToDate{
			Gross:   ytd.StatutoryBase,
			EPF:     ytd.EPF,
			TaxPaid: ytd.TaxPaid,
		}
	}

	res, err := calc.Calculate(gross.StatutoryBase, profile, period, opts)
	if err != nil {
		return payroll.Derived{}, err
	}

	totalDeductions := res.EmployeeTotal().Add(item.OtherDeductions)

	return payroll.Derived{
		GrossSalary:       gross.GrossPay,
		StatutoryBase:     gross.StatutoryBase,
		EPFEmployee:       res.EPF.Employee,
		EPFEmployer:       res.EPF.Employer,
		SOCSOEmployee:     res.SOCSO.Employee,
		SOCSOEmployer:     res.SOCSO.Employer,
		EISEmployee:       res.EIS.Employee,
		EISEmployer:       res.EIS.Employer,
		PCB:               res.PCB,
		TotalDeductions:   totalDeductions,
		NetPay:            gross.GrossPay.Sub(totalDeductions),
		EmployerTotalCost: gross.GrossPay.Add(res.EmployerTotal()),
	}, nil
}

// computed is the outcome of one item computation.
type computed struct {
	derived payroll.Derived
	err     error
}

// loadEmployees fetches the employees referenced by items, keyed by id.
func (s *PayrollServiceImpl) loadEmployees(ctx context.Context, companyID string, items []payroll.PayrollItem) (map[string]employee.Employee, error) {
	ids := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if !seen[item.EmployeeID] {
			seen[item.EmployeeID] = true
			ids = append(ids, item.EmployeeID)
		}
	}

	employees, err := s.employeeRepo.GetByIDs(ctx, companyID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load employees: %w", err)
	}
	byID := make(map[string]employee.Employee, len(employees))
	for _, emp := range employees {
		byID[emp.ID] = emp
	}
	return byID, nil
}

// computeItems loads year-to-date figures, then computes every item
// concurrently. Failures are reported per item.
func (s *PayrollServiceImpl) computeItems(
	ctx context.Context,
	companyID string,
	period statutory.Period,
	settings payroll.PayrollSettings,
	items []payroll.PayrollItem,
	byID map[string]employee.Employee,
) ([]computed, error) {
	out := make([]computed, len(items))
	if len(items) == 0 {
		return out, nil
	}

	ytds := make(map[string]*payroll.YearToDate, len(byID))
	if settings.PCBEnabled {
		for _, item := range items {
			if _, ok := byID[item.EmployeeID]; !ok || ytds[item.EmployeeID] != nil {
				continue
			}
			ytd, err := s.payrollRepo.GetYearToDate(ctx, companyID, item.EmployeeID, period.Year, period.Month)
			if err != nil {
				return nil, err
			}
			ytds[item.EmployeeID] = &ytd
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			emp, ok := byID[items[i].EmployeeID]
			if !ok {
				out[i] = computed{err: fmt.Errorf("%w: %s", payroll.ErrEmployeeNotFound, items[i].EmployeeID)}
				return nil
			}
			d, err := computeDerived(s.calculator, items[i], emp, period, settings, ytds[emp.ID])
			out[i] = computed{derived: d, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// recalculateItems computes and persists items of one run. Items that cannot
// be computed are skipped and reported; write failures abort.
func (s *PayrollServiceImpl) recalculateItems(
	ctx context.Context,
	run payroll.PayrollRun,
	settings payroll.PayrollSettings,
	items []payroll.PayrollItem,
) ([]payroll.ItemResult, error) {
	period := statutory.Period{Month: run.PeriodMonth, Year: run.PeriodYear}

	byID, err := s.loadEmployees(ctx, run.CompanyID, items)
	if err != nil {
		return nil, err
	}
	results, err := s.computeItems(ctx, run.CompanyID, period, settings, items, byID)
	if err != nil {
		return nil, err
	}

	out := make([]payroll.ItemResult, len(items))
	for i, item := range items {
		if results[i].err != nil {
			out[i] = payroll.ItemResult{ItemID: item.ID, Reason: results[i].err.Error()}
			continue
		}
		if err := s.payrollRepo.UpdateItemDerived(ctx, item.ID, run.CompanyID, results[i].derived); err != nil {
			if errors.Is(err, payroll.ErrPayrollItemNotFound) {
				out[i] = payroll.ItemResult{ItemID: item.ID, Reason: err.Error()}
				continue
			}
			return nil, err
		}
		item.Apply(results[i].derived)
		resp := mapToItemResponse(item)
		out[i] = payroll.ItemResult{ItemID: item.ID, Success: true, Item: &resp}
	}

	return out, nil
}

// refreshAggregates re-sums the run totals and stores the variance against the prior period.
func (s *PayrollServiceImpl) refreshAggregates(ctx context.Context, run *payroll.PayrollRun) error {
	totals, err := s.payrollRepo.RefreshRunTotals(ctx, run.ID, run.CompanyID)
	if err != nil {
		return err
	}
	run.TotalGross = totals.Gross
	run.TotalNet = totals.Net
	run.TotalDeductions = totals.Deductions
	run.TotalEmployerCost = totals.EmployerCost
	run.EmployeeCount = totals.EmployeeCount

	v, err := s.variance(ctx, run.CompanyID, run.DepartmentID, run.PeriodMonth, run.PeriodYear, totals.Net)
	if err != nil {
		return err
	}
	if err := s.payrollRepo.UpdateRunVariance(ctx, run.ID, run.CompanyID, v); err != nil {
		return err
	}
	run.VarianceFromPrevious = v.Amount
	run.VariancePercentage = v.Percentage
	run.HasPrevious = v.HasPrevious

	return nil
}

// RecalculateItem recomputes one item and re-aggregates its run. A missing
// item, employee or a locked run is reported in the result, not as an error.
func (s *PayrollServiceImpl) RecalculateItem(ctx context.Context, itemID string) (payroll.ItemResult, error) {
	if itemID == "" {
		return payroll.ItemResult{}, payroll.ErrItemIDRequired
	}
	if !validator.IsValidUUID(itemID) {
		return payroll.ItemResult{ItemID: itemID, Reason: payroll.ErrPayrollItemNotFound.Error()}, nil
	}

	actor, err := actorFromContext(ctx)
	if err != nil {
		return payroll.ItemResult{}, err
	}

	var result payroll.ItemResult
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		item, err := s.payrollRepo.GetItemByID(ctx, itemID, actor.CompanyID)
		if err != nil {
			if errors.Is(err, payroll.ErrPayrollItemNotFound) {
				result = payroll.ItemResult{ItemID: itemID, Reason: err.Error()}
				return nil
			}
			return err
		}

		run, err := s.payrollRepo.GetRunByIDForUpdate(ctx, item.PayrollRunID, actor.CompanyID)
		if err != nil {
			return err
		}
		if run.Status.IsLocked() {
			result = payroll.ItemResult{ItemID: itemID, Reason: payroll.ErrPayrollRunLocked.Error()}
			return nil
		}

		settings, err := s.loadSettings(ctx, actor.CompanyID)
		if err != nil {
			return err
		}

		results, err := s.recalculateItems(ctx, run, settings, []payroll.PayrollItem{item})
		if err != nil {
			return err
		}
		result = results[0]
		if !result.Success {
			return nil
		}

		return s.refreshAggregates(ctx, &run)
	})
	if err != nil {
		return payroll.ItemResult{}, err
	}

	return result, nil
}

// RecalculateRun recomputes every item of a run and re-aggregates totals in one transaction.
func (s *PayrollServiceImpl) RecalculateRun(ctx context.Context, runID string) (payroll.RecalculateRunResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return payroll.RecalculateRunResponse{}, err
	}

	resp := payroll.RecalculateRunResponse{RunID: runID}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		run, err := s.payrollRepo.GetRunByIDForUpdate(ctx, runID, actor.CompanyID)
		if err != nil {
			return err
		}
		if run.Status.IsLocked() {
			return payroll.ErrPayrollRunLocked
		}

		settings, err := s.loadSettings(ctx, actor.CompanyID)
		if err != nil {
			return err
		}

		items, err := s.payrollRepo.ListItemsByRun(ctx, run.ID, actor.CompanyID)
		if err != nil {
			return err
		}

		resp.Results, err = s.recalculateItems(ctx, run, settings, items)
		if err != nil {
			return err
		}
		for _, r := range resp.Results {
			if r.Success {
				resp.Succeeded++
			} else {
				resp.Failed++
			}
		}

		if err := s.refreshAggregates(ctx, &run); err != nil {
			return err
		}
		resp.Totals = run.Totals()

		return s.record(ctx, audit.NewEntry(actor.CompanyID, actor.ID(), audit.ActionRunRecalc,
			"payroll_run", run.ID, nil, map[string]int{"succeeded": resp.Succeeded, "failed": resp.Failed}))
	})
	if err != nil {
		return payroll.RecalculateRunResponse{}, err
	}

	if resp.Failed > 0 {
		slog.Warn("Payroll run recalculated with failures", "run_id", runID, "failed", resp.Failed)
	}

	return resp, nil
}

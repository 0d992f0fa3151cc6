package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/audit"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/service/statutory"
	"github.com/shopspring/decimal"
)

// GenerateRun creates the run for a (company, department, period) key and
// populates one item per active employee from their default salary, the
// period's attendance and unpaid leave, and any unlinked approved claims.
func (s *PayrollServiceImpl) GenerateRun(ctx context.Context, req payroll.GenerateRunRequest) (payroll.PayrollRunResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	actor, err := actorFromContext(ctx)
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	createdBy := actor.ID()
	var run payroll.PayrollRun
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		_, err := s.payrollRepo.GetRunByPeriod(ctx, actor.CompanyID, req.DepartmentID, req.PeriodMonth, req.PeriodYear)
		if err == nil {
			return payroll.ErrPayrollRunAlreadyExists
		}
		if !errors.Is(err, payroll.ErrPayrollRunNotFound) {
			return err
		}

		settings, err := s.loadSettings(ctx, actor.CompanyID)
		if err != nil {
			return err
		}

		run, err = s.payrollRepo.CreateRun(ctx, payroll.PayrollRun{
			CompanyID:    actor.CompanyID,
			DepartmentID: req.DepartmentID,
			PeriodMonth:  req.PeriodMonth,
			PeriodYear:   req.PeriodYear,
			Status:       payroll.RunStatusDraft,
			CreatedBy:    &createdBy,
		})
		if err != nil {
			return err
		}

		if err := s.populateRun(ctx, &run, settings); err != nil {
			return err
		}

		if !req.AsDraft {
			next, err := run.Status.Next(payroll.TransitionGenerate, payroll.GuardInput{Actor: actor.ID()})
			if err != nil {
				return err
			}
			if err := s.payrollRepo.UpdateRunStatus(ctx, actor.CompanyID, payroll.RunStatusUpdate{
				RunID: run.ID,
				From:  run.Status,
				To:    next,
				Actor: &createdBy,
				At:    s.now(),
			}); err != nil {
				return err
			}
			run.Status = next
		}

		return s.record(ctx, audit.NewEntry(actor.CompanyID, createdBy, audit.ActionRunGenerated,
			"payroll_run", run.ID, nil, map[string]any{
				"period_month":   run.PeriodMonth,
				"period_year":    run.PeriodYear,
				"department_id":  run.DepartmentID,
				"status":         run.Status,
				"employee_count": run.EmployeeCount,
			}))
	})
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	slog.Info("Payroll run generated", "run_id", run.ID, "company_id", run.CompanyID,
		"period", fmt.Sprintf("%04d-%02d", run.PeriodYear, run.PeriodMonth), "employee_count", run.EmployeeCount)
	if run.Status != payroll.RunStatusDraft {
		s.publish(ctx, run, payroll.TransitionGenerate, payroll.RunStatusDraft, actor)
	}

	return mapToRunResponse(run), nil
}

// populateRun inserts the computed items of an empty run, links the claims it
// pays out and refreshes the run aggregates.
func (s *PayrollServiceImpl) populateRun(ctx context.Context, run *payroll.PayrollRun, settings payroll.PayrollSettings) error {
	employees, err := s.employeeRepo.GetActiveByCompanyID(ctx, run.CompanyID, run.DepartmentID)
	if err != nil {
		return fmt.Errorf("failed to get employees: %w", err)
	}
	if len(employees) == 0 {
		return payroll.ErrNoActiveEmployees
	}

	period := statutory.Period{Month: run.PeriodMonth, Year: run.PeriodYear}
	cutoff := period.ReferenceDate()

	ids := make([]string, 0, len(employees))
	byID := make(map[string]employee.Employee, len(employees))
	for _, emp := range employees {
		ids = append(ids, emp.ID)
		byID[emp.ID] = emp
	}

	claims, err := s.payrollRepo.GetUnlinkedClaimTotals(ctx, run.CompanyID, ids, cutoff)
	if err != nil {
		return err
	}

	from := time.Date(run.PeriodYear, time.Month(run.PeriodMonth), 1, 0, 0, 0, 0, time.UTC)
	minutes, unpaidDays, err := s.loadPeriodInputs(ctx, run.CompanyID, ids, from, cutoff)
	if err != nil {
		return err
	}

	items := make([]payroll.PayrollItem, 0, len(employees))
	for _, emp := range employees {
		claimTotal, ok := claims[emp.ID]
		if !ok {
			claimTotal = decimal.Zero
		}
		basic := emp.DefaultBasicSalary()
		pay := ComputePeriodPay(basic, minutes[emp.ID], unpaidDays[emp.ID])
		items = append(items, payroll.PayrollItem{
			PayrollRunID:         run.ID,
			CompanyID:            run.CompanyID,
			EmployeeID:           emp.ID,
			BasicSalary:          basic,
			FixedAllowance:       emp.DefaultFixedAllowance(),
			OvertimeAmount:       pay.Overtime,
			HolidayPay:           pay.HolidayPay,
			UnpaidLeaveDeduction: pay.UnpaidLeaveDeduction,
			ClaimsAmount:         claimTotal,
		})
	}

	results, err := s.computeItems(ctx, run.CompanyID, period, settings, items, byID)
	if err != nil {
		return err
	}
	for i := range items {
		if results[i].err != nil {
			return fmt.Errorf("failed to compute payroll for employee %s: %w", items[i].EmployeeID, results[i].err)
		}
		items[i].Apply(results[i].derived)
	}

	if err := s.payrollRepo.CreateItems(ctx, items); err != nil {
		return err
	}

	if len(claims) > 0 {
		linked, err := s.payrollRepo.LinkClaims(ctx, run.CompanyID, run.ID, ids, cutoff)
		if err != nil {
			return err
		}
		slog.Debug("Linked claims to payroll run", "run_id", run.ID, "count", linked)
	}

	return s.refreshAggregates(ctx, run)
}

// loadPeriodInputs reads attendance minutes and unpaid leave days for the
// period. A source that is not configured contributes nothing.
func (s *PayrollServiceImpl) loadPeriodInputs(ctx context.Context, companyID string, ids []string, from, to time.Time) (map[string]attendance.PeriodMinutes, map[string]decimal.Decimal, error) {
	minutes := map[string]attendance.PeriodMinutes{}
	unpaidDays := map[string]decimal.Decimal{}

	var err error
	if s.attendanceRepo != nil {
		if minutes, err = s.attendanceRepo.SumPeriodMinutes(ctx, companyID, ids, from, to); err != nil {
			return nil, nil, err
		}
	}
	if s.leaveRepo != nil {
		if unpaidDays, err = s.leaveRepo.SumUnpaidDays(ctx, companyID, ids, from, to); err != nil {
			return nil, nil, err
		}
	}
	return minutes, unpaidDays, nil
}

// TransitionRun applies a lifecycle transition. A violated guard is reported
// in the result with the guard name and current status.
func (s *PayrollServiceImpl) TransitionRun(ctx context.Context, req payroll.TransitionRequest) (payroll.TransitionResult, error) {
	if err := req.Validate(); err != nil {
		return payroll.TransitionResult{}, err
	}
	t, err := payroll.ParseTransition(req.Transition)
	if err != nil {
		return payroll.TransitionResult{}, err
	}

	actor, err := actorFromContext(ctx)
	if err != nil {
		return payroll.TransitionResult{}, err
	}

	result := payroll.TransitionResult{RunID: req.RunID}
	var run payroll.PayrollRun
	var from payroll.RunStatus
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		run, err = s.payrollRepo.GetRunByIDForUpdate(ctx, req.RunID, actor.CompanyID)
		if err != nil {
			return err
		}
		from = run.Status
		result.PreviousStatus = string(from)

		settings, err := s.loadSettings(ctx, actor.CompanyID)
		if err != nil {
			return err
		}

		if t == payroll.TransitionAutoApprove && from == payroll.RunStatusAutoGenerated {
			// The prior period may have changed since the run was generated.
			if err := s.refreshAggregates(ctx, &run); err != nil {
				return err
			}
		}

		in := payroll.GuardInput{
			Actor:              actor.ID(),
			Reason:             req.Reason,
			AutoApproveEnabled: settings.AutoApproveEnabled,
			VariancePercentage: run.VariancePercentage,
			Threshold:          settings.VarianceThreshold,
		}
		next, err := from.Next(t, in)
		if err != nil {
			var guardErr *payroll.GuardError
			if errors.As(err, &guardErr) {
				result.Guard = guardErr.Guard
				result.RejectionReason = guardErr.Error()
				return nil
			}
			return err
		}

		if t == payroll.TransitionGenerate {
			items, err := s.payrollRepo.ListItemsByRun(ctx, run.ID, actor.CompanyID)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				if err := s.populateRun(ctx, &run, settings); err != nil {
					return err
				}
			}
		}

		update := payroll.RunStatusUpdate{
			RunID: run.ID,
			From:  from,
			To:    next,
			At:    s.now(),
		}
		actorID := actor.ID()
		update.Actor = &actorID
		if req.Reason != "" {
			reason := req.Reason
			update.Reason = &reason
		}
		switch t {
		case payroll.TransitionAutoApprove:
			approval := payroll.ApprovalTypeAuto
			update.ApprovalType = &approval
		case payroll.TransitionApprove:
			approval := payroll.ApprovalTypeManual
			update.ApprovalType = &approval
		}

		if err := s.payrollRepo.UpdateRunStatus(ctx, actor.CompanyID, update); err != nil {
			return err
		}
		run.Status = next
		result.Success = true
		result.NewStatus = string(next)

		return s.record(ctx, audit.NewEntry(actor.CompanyID, actorID, audit.ActionRunTransition,
			"payroll_run", run.ID, update.Reason, map[string]any{
				"transition":          t,
				"from":                from,
				"to":                  next,
				"variance_percentage": run.VariancePercentage.StringFixed(2),
			}))
	})
	if err != nil {
		return payroll.TransitionResult{}, err
	}

	if result.Success {
		s.publish(ctx, run, t, from, actor)
	} else {
		slog.Info("Payroll run transition rejected", "run_id", run.ID, "transition", t, "guard", result.Guard, "status", from)
	}

	return result, nil
}

package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/audit"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/cmlabs-hris/payroll-engine/internal/service/statutory"
)

var errNotProratable = errors.New("field cannot be prorated")

// pendingItem tracks an item touched by a change batch.
type pendingItem struct {
	item        payroll.PayrollItem
	changes     []int
	recalculate bool
}

// ApplyChanges validates each change against the editable field allow-list,
// writes the accepted ones, recalculates only the touched items and
// re-aggregates the run, all in one transaction. A rejected change does not
// stop the others.
func (s *PayrollServiceImpl) ApplyChanges(ctx context.Context, req payroll.ApplyChangesRequest) (payroll.ApplyResult, error) {
	if err := req.Validate(); err != nil {
		return payroll.ApplyResult{}, err
	}

	actor, err := actorFromContext(ctx)
	if err != nil {
		return payroll.ApplyResult{}, err
	}

	result := payroll.ApplyResult{
		RunID:   req.RunID,
		Results: make([]payroll.ChangeResult, len(req.Changes)),
	}
	for i, ch := range req.Changes {
		result.Results[i] = payroll.ChangeResult{Index: i, ItemID: ch.ItemID, Field: ch.Field}
	}
	rejectAll := func(reason string) {
		for i := range result.Results {
			result.Results[i].Success = false
			result.Results[i].Reason = reason
		}
	}

	var run payroll.PayrollRun
	var from payroll.RunStatus
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		run, err = s.payrollRepo.GetRunByIDForUpdate(ctx, req.RunID, actor.CompanyID)
		if err != nil {
			if errors.Is(err, payroll.ErrPayrollRunNotFound) {
				rejectAll(err.Error())
				return nil
			}
			return err
		}
		from = run.Status
		result.Status = string(run.Status)
		result.Totals = run.Totals()
		if run.Status.IsLocked() {
			rejectAll(payroll.ErrPayrollRunLocked.Error())
			return nil
		}

		settings, err := s.loadSettings(ctx, actor.CompanyID)
		if err != nil {
			return err
		}

		pending, order, err := s.stageChanges(ctx, actor.CompanyID, run, req.Changes, result.Results)
		if err != nil {
			return err
		}
		if len(order) == 0 {
			return nil
		}

		if err := s.persistStaged(ctx, run, settings, pending, order, result.Results); err != nil {
			return err
		}

		for _, r := range result.Results {
			if r.Success {
				result.Applied++
			}
		}
		if result.Applied == 0 {
			return nil
		}

		if err := s.refreshAggregates(ctx, &run); err != nil {
			return err
		}
		result.Totals = run.Totals()

		reason := req.Reason
		if reason == "" {
			reason = fmt.Sprintf("applied %d change(s)", result.Applied)
		}
		actorID := actor.ID()

		if run.Status == payroll.RunStatusAutoApproved {
			next, err := run.Status.Next(payroll.TransitionEdit, payroll.GuardInput{Actor: actorID, Reason: reason})
			if err != nil {
				return err
			}
			if err := s.payrollRepo.UpdateRunStatus(ctx, actor.CompanyID, payroll.RunStatusUpdate{
				RunID:  run.ID,
				From:   run.Status,
				To:     next,
				Actor:  &actorID,
				Reason: &reason,
				At:     s.now(),
			}); err != nil {
				return err
			}
			run.Status = next
		}
		result.Status = string(run.Status)

		return s.record(ctx, audit.NewEntry(actor.CompanyID, actorID, audit.ActionChangesApply,
			"payroll_run", run.ID, &reason, result.Results))
	})
	if err != nil {
		return payroll.ApplyResult{}, err
	}

	for _, r := range result.Results {
		if !r.Success {
			result.Rejected++
		}
	}

	if run.Status != from {
		s.publish(ctx, run, payroll.TransitionEdit, from, actor)
	}

	return result, nil
}

// stageChanges applies every valid change to an in-memory copy of its item.
// Rejections are written into results.
func (s *PayrollServiceImpl) stageChanges(
	ctx context.Context,
	companyID string,
	run payroll.PayrollRun,
	changes []payroll.ChangeRequest,
	results []payroll.ChangeResult,
) (map[string]*pendingItem, []string, error) {
	pending := make(map[string]*pendingItem)
	var order []string
	var employees map[string]employee.Employee

	for i, ch := range changes {
		if ch.ItemID == "" {
			results[i].Reason = payroll.ErrItemIDRequired.Error()
			continue
		}
		if !validator.IsValidUUID(ch.ItemID) {
			results[i].Reason = payroll.ErrPayrollItemNotFound.Error()
			continue
		}
		field, err := payroll.ParseEditableField(ch.Field)
		if err != nil {
			results[i].Reason = err.Error()
			continue
		}

		p, ok := pending[ch.ItemID]
		if !ok {
			item, err := s.payrollRepo.GetItemByID(ctx, ch.ItemID, companyID)
			if err != nil {
				if errors.Is(err, payroll.ErrPayrollItemNotFound) {
					results[i].Reason = err.Error()
					continue
				}
				return nil, nil, err
			}
			if item.PayrollRunID != run.ID {
				results[i].Reason = payroll.ErrItemNotInRun.Error()
				continue
			}
			p = &pendingItem{item: item}
			pending[ch.ItemID] = p
			order = append(order, ch.ItemID)
		}

		staged := p.item
		if err := field.Set(&staged, ch.Value); err != nil {
			results[i].Reason = err.Error()
			continue
		}

		if ch.Prorate {
			if employees == nil {
				employees = make(map[string]employee.Employee)
			}
			if err := s.prorate(ctx, companyID, run, field, &staged, employees); err != nil {
				if errors.Is(err, errNotProratable) || errors.Is(err, employee.ErrEmployeeNotFound) {
					results[i].Reason = err.Error()
					continue
				}
				return nil, nil, err
			}
		}

		p.item = staged
		p.changes = append(p.changes, i)
		p.recalculate = p.recalculate || field.Recalculates()
		results[i].Success = true
	}

	return pending, order, nil
}

// prorate scales the staged amount by months employed up to the period end.
func (s *PayrollServiceImpl) prorate(
	ctx context.Context,
	companyID string,
	run payroll.PayrollRun,
	field payroll.EditableField,
	item *payroll.PayrollItem,
	cache map[string]employee.Employee,
) error {
	component := payroll.Component(field)
	amount, ok := item.Components()[component]
	if !ok {
		return fmt.Errorf("%w: %s", errNotProratable, field)
	}

	emp, ok := cache[item.EmployeeID]
	if !ok {
		var err error
		emp, err = s.employeeRepo.GetByID(ctx, item.EmployeeID, companyID)
		if err != nil {
			return err
		}
		cache[item.EmployeeID] = emp
	}

	ref := statutory.Period{Month: run.PeriodMonth, Year: run.PeriodYear}.ReferenceDate()
	p := Proration{MonthsEmployed: MonthsEmployed(emp.HireDate, ref), Fields: []payroll.Component{component}}
	scaled := p.apply(payroll.Components{component: amount}).Get(component)

	raw, err := json.Marshal(scaled.StringFixed(2))
	if err != nil {
		return err
	}
	return field.Set(item, raw)
}

// persistStaged recalculates touched items and writes inputs and derived
// values. An item that cannot be recalculated has all its changes rejected.
func (s *PayrollServiceImpl) persistStaged(
	ctx context.Context,
	run payroll.PayrollRun,
	settings payroll.PayrollSettings,
	pending map[string]*pendingItem,
	order []string,
	results []payroll.ChangeResult,
) error {
	var recalc []payroll.PayrollItem
	for _, id := range order {
		if pending[id].recalculate {
			recalc = append(recalc, pending[id].item)
		}
	}

	derived := make(map[string]computed, len(recalc))
	if len(recalc) > 0 {
		byID, err := s.loadEmployees(ctx, run.CompanyID, recalc)
		if err != nil {
			return err
		}
		period := statutory.Period{Month: run.PeriodMonth, Year: run.PeriodYear}
		out, err := s.computeItems(ctx, run.CompanyID, period, settings, recalc, byID)
		if err != nil {
			return err
		}
		for i, item := range recalc {
			derived[item.ID] = out[i]
		}
	}

	for _, id := range order {
		p := pending[id]
		if len(p.changes) == 0 {
			continue
		}

		c, recalculated := derived[id]
		if recalculated && c.err != nil {
			for _, idx := range p.changes {
				results[idx].Success = false
				results[idx].Reason = c.err.Error()
			}
			continue
		}

		if err := s.payrollRepo.UpdateItemInputs(ctx, run.CompanyID, p.item); err != nil {
			return err
		}
		if recalculated {
			if err := s.payrollRepo.UpdateItemDerived(ctx, id, run.CompanyID, c.derived); err != nil {
				return err
			}
		}
	}

	return nil
}

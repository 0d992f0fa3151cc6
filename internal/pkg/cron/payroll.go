package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
)

const AutoGeneratePayrollJob = "auto_generate_payroll_runs"

type PayrollJobs struct {
	payrollRepo payroll.PayrollRepository
	payrollSvc  payroll.PayrollService
	generateDay int
	interval    time.Duration
	now         func() time.Time
}

// NewPayrollJobs creates the payroll jobs. Runs are generated once on
// generateDay of each month for that month.
func NewPayrollJobs(
	payrollRepo payroll.PayrollRepository,
	payrollSvc payroll.PayrollService,
	generateDay int,
	interval time.Duration,
) *PayrollJobs {
	if generateDay < 1 || generateDay > 28 {
		generateDay = 25
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &PayrollJobs{
		payrollRepo: payrollRepo,
		payrollSvc:  payrollSvc,
		generateDay: generateDay,
		interval:    interval,
		now:         time.Now,
	}
}

func (j *PayrollJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob(AutoGeneratePayrollJob, j.interval, j.AutoGeneratePayrollRuns)
}

func (j *PayrollJobs) AutoGeneratePayrollRuns(ctx context.Context) error {
	now := j.now().UTC()
	// Only run during the first hour of the generate day
	if now.Day() != j.generateDay || now.Hour() != 0 {
		return nil
	}
	return j.GenerateForPeriod(ctx, int(now.Month()), now.Year())
}

// GenerateForPeriod generates and auto-approves runs for every company with
// auto generation enabled. A failing company does not stop the others.
func (j *PayrollJobs) GenerateForPeriod(ctx context.Context, month, year int) error {
	if !validator.IsValidPeriod(month, year) {
		return fmt.Errorf("%w: %d-%02d", payroll.ErrInvalidPeriod, year, month)
	}
	slog.Info("Cron: Starting payroll auto-generate job", "period", fmt.Sprintf("%04d-%02d", year, month))

	companyIDs, err := j.payrollRepo.ListAutoGenerateCompanyIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list companies: %w", err)
	}

	var errs []error
	generated, approved, held := 0, 0, 0
	for _, companyID := range companyIDs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		actorCtx := payroll.ContextWithActor(ctx, payroll.Actor{CompanyID: companyID, System: true})

		run, err := j.payrollSvc.GenerateRun(actorCtx, payroll.GenerateRunRequest{PeriodMonth: month, PeriodYear: year})
		if err != nil {
			switch {
			case errors.Is(err, payroll.ErrPayrollRunAlreadyExists):
				slog.Debug("Cron: Payroll run already exists", "company_id", companyID)
			case errors.Is(err, payroll.ErrNoActiveEmployees):
				slog.Warn("Cron: No active employees for payroll", "company_id", companyID)
			default:
				slog.Error("Cron: Failed to generate payroll run", "company_id", companyID, "error", err)
				errs = append(errs, fmt.Errorf("company %s: %w", companyID, err))
			}
			continue
		}
		generated++

		res, err := j.payrollSvc.TransitionRun(actorCtx, payroll.TransitionRequest{
			RunID:      run.ID,
			Transition: string(payroll.TransitionAutoApprove),
		})
		if err != nil {
			slog.Error("Cron: Failed to auto-approve payroll run", "company_id", companyID, "run_id", run.ID, "error", err)
			errs = append(errs, fmt.Errorf("company %s: %w", companyID, err))
			continue
		}
		if res.Success {
			approved++
		} else {
			held++
			slog.Info("Cron: Payroll run held for review", "company_id", companyID, "run_id", run.ID,
				"guard", res.Guard, "reason", res.RejectionReason)
		}
	}

	slog.Info("Cron: Payroll auto-generate job completed",
		"companies", len(companyIDs), "generated", generated, "auto_approved", approved, "held", held)

	return errors.Join(errs...)
}

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
	"github.com/cmlabs-hris/payroll-engine/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/service/statutory"
	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transactor runs fn inside one database transaction carried by ctx.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type PayrollServiceImpl struct {
	tx               Transactor
	payrollRepo      payroll.PayrollRepository
	employeeRepo     employee.EmployeeRepository
	auditRepo        audit.AuditRepository
	attendanceRepo   attendance.AttendanceRepository
	leaveRepo        leave.LeaveRequestRepository
	publisher        payroll.EventPublisher
	calculator       *statutory.Calculator
	defaultThreshold decimal.Decimal
	workers          int
	now              func() time.Time
}

type Option func(*PayrollServiceImpl)

// WithDefaultVarianceThreshold applies to companies without stored settings.
func WithDefaultVarianceThreshold(threshold decimal.Decimal) Option {
	return func(s *PayrollServiceImpl) {
		s.defaultThreshold = threshold
	}
}

// WithWorkers bounds the goroutines computing items concurrently.
func WithWorkers(n int) Option {
	return func(s *PayrollServiceImpl) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithAttendance prices overtime and holiday work into generated items.
func WithAttendance(repo attendance.AttendanceRepository) Option {
	return func(s *PayrollServiceImpl) {
		s.attendanceRepo = repo
	}
}

// WithLeave deducts approved unpaid leave from generated items.
func WithLeave(repo leave.LeaveRequestRepository) Option {
	return func(s *PayrollServiceImpl) {
		s.leaveRepo = repo
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *PayrollServiceImpl) {
		s.now = now
	}
}

func NewPayrollService(
	tx Transactor,
	payrollRepo payroll.PayrollRepository,
	employeeRepo employee.EmployeeRepository,
	auditRepo audit.AuditRepository,
	publisher payroll.EventPublisher,
	calculator *statutory.Calculator,
	opts ...Option,
) payroll.PayrollService {
	s := &PayrollServiceImpl{
		tx:               tx,
		payrollRepo:      payrollRepo,
		employeeRepo:     employeeRepo,
		auditRepo:        auditRepo,
		publisher:        publisher,
		calculator:       calculator,
		defaultThreshold: payroll.DefaultVarianceThreshold,
		workers:          8,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.calculator == nil {
		s.calculator = statutory.NewDefaultCalculator()
	}
	return s
}

// Helper to get company_id and user_id from JWT context
func getClaimsFromContext(ctx context.Context) (companyID, userID string, err error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to extract claims from context: %w", err)
	}

	companyID, ok := claims["company_id"].(string)
	if !ok || companyID == "" {
		return "", "", fmt.Errorf("company_id claim is missing or invalid")
	}

	userID, _ = claims["user_id"].(string)

	return companyID, userID, nil
}

// actorFromContext prefers an explicit actor (scheduled jobs) over JWT claims.
func actorFromContext(ctx context.Context) (payroll.Actor, error) {
	if actor, ok := payroll.ActorFromContext(ctx); ok {
		if actor.CompanyID == "" {
			return payroll.Actor{}, fmt.Errorf("actor company is missing")
		}
		return actor, nil
	}

	companyID, userID, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.Actor{}, err
	}
	return payroll.Actor{CompanyID: companyID, UserID: userID}, nil
}

// loadSettings returns stored settings or the defaults for the company.
func (s *PayrollServiceImpl) loadSettings(ctx context.Context, companyID string) (payroll.PayrollSettings, error) {
	settings, err := s.payrollRepo.GetSettings(ctx, companyID)
	if err != nil {
		if errors.Is(err, payroll.ErrPayrollSettingsNotFound) {
			settings = payroll.DefaultSettings(companyID)
			settings.VarianceThreshold = s.defaultThreshold
			return settings, nil
		}
		return payroll.PayrollSettings{}, err
	}
	return settings, nil
}

func (s *PayrollServiceImpl) record(ctx context.Context, entry audit.Entry) error {
	if s.auditRepo == nil {
		return nil
	}
	return s.auditRepo.Record(ctx, entry)
}

// publish sends a status change event once the transaction has committed.
// Delivery failures are logged and never fail the operation.
func (s *PayrollServiceImpl) publish(ctx context.Context, run payroll.PayrollRun, t payroll.Transition, from payroll.RunStatus, actor payroll.Actor) {
	if s.publisher == nil {
		return
	}
	event := payroll.RunStatusChangedEvent{
		EventID:      uuid.NewString(),
		RunID:        run.ID,
		CompanyID:    run.CompanyID,
		DepartmentID: run.DepartmentID,
		PeriodMonth:  run.PeriodMonth,
		PeriodYear:   run.PeriodYear,
		Transition:   string(t),
		FromStatus:   string(from),
		ToStatus:     string(run.Status),
		Actor:        actor.ID(),
		TotalNet:     run.TotalNet.StringFixed(2),
		OccurredAt:   s.now().UTC(),
	}
	if err := s.publisher.PublishRunStatusChanged(ctx, event); err != nil {
		slog.Warn("Failed to publish payroll run event", "run_id", run.ID, "transition", t, "error", err)
	}
}

// ========== SETTINGS ==========

func (s *PayrollServiceImpl) GetSettings(ctx context.Context) (payroll.PayrollSettingsResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	settings, err := s.loadSettings(ctx, actor.CompanyID)
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	return mapToSettingsResponse(settings), nil
}

func (s *PayrollServiceImpl) UpdateSettings(ctx context.Context, req payroll.UpdatePayrollSettingsRequest) (payroll.PayrollSettingsResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	actor, err := actorFromContext(ctx)
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	var updated payroll.PayrollSettings
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.loadSettings(ctx, actor.CompanyID)
		if err != nil {
			return err
		}
		req.Apply(&current)

		updated, err = s.payrollRepo.UpsertSettings(ctx, current)
		if err != nil {
			return err
		}

		return s.record(ctx, audit.NewEntry(actor.CompanyID, actor.ID(), audit.ActionSettingsSave,
			"payroll_settings", updated.ID, nil, req))
	})
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	return mapToSettingsResponse(updated), nil
}

// ========== STATUTORY ==========

// PreviewStatutory runs the calculator without touching stored data.
func (s *PayrollServiceImpl) PreviewStatutory(ctx context.Context, req payroll.StatutoryPreviewRequest) (payroll.StatutoryPreviewResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.StatutoryPreviewResponse{}, err
	}

	actor, err := actorFromContext(ctx)
	if err != nil {
		return payroll.StatutoryPreviewResponse{}, err
	}
	settings, err := s.loadSettings(ctx, actor.CompanyID)
	if err != nil {
		return payroll.StatutoryPreviewResponse{}, err
	}

	profile := statutory.Profile{
		Age:           req.Age,
		MaritalStatus: statutory.MaritalStatus(req.MaritalStatus),
		SpouseWorking: req.SpouseWorking,
		Dependents:    req.Dependents,
	}
	period := statutory.Period{Month: req.PeriodMonth, Year: req.PeriodYear}

	res, err := s.calculator.Calculate(req.StatutoryBase, profile, period, statutory.Options{
		Overrides: statutory.Overrides{PCB: req.PCBOverride},
		Disabled:  disabledSchemes(settings),
	})
	if err != nil {
		return payroll.StatutoryPreviewResponse{}, err
	}

	return payroll.StatutoryPreviewResponse{
		StatutoryBase: req.StatutoryBase,
		EPFEmployee:   res.EPF.Employee,
		EPFEmployer:   res.EPF.Employer,
		SOCSOEmployee: res.SOCSO.Employee,
		SOCSOEmployer: res.SOCSO.Employer,
		EISEmployee:   res.EIS.Employee,
		EISEmployer:   res.EIS.Employer,
		PCB:           res.PCB,
	}, nil
}

// ========== RUNS ==========

func (s *PayrollServiceImpl) GetRun(ctx context.Context, id string) (payroll.PayrollRunResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	run, err := s.payrollRepo.GetRunByID(ctx, id, actor.CompanyID)
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	return mapToRunResponse(run), nil
}

func (s *PayrollServiceImpl) ListRuns(ctx context.Context, filter payroll.RunFilter) (payroll.ListPayrollRunResponse, error) {
	if err := filter.Validate(); err != nil {
		return payroll.ListPayrollRunResponse{}, err
	}

	actor, err := actorFromContext(ctx)
	if err != nil {
		return payroll.ListPayrollRunResponse{}, err
	}

	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	runs, total, err := s.payrollRepo.ListRuns(ctx, actor.CompanyID, filter)
	if err != nil {
		return payroll.ListPayrollRunResponse{}, err
	}

	data := make([]payroll.PayrollRunResponse, 0, len(runs))
	for _, run := range runs {
		data = append(data, mapToRunResponse(run))
	}

	return payroll.ListPayrollRunResponse{
		Data:       data,
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

func (s *PayrollServiceImpl) ListItems(ctx context.Context, runID string) ([]payroll.PayrollItemResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.payrollRepo.GetRunByID(ctx, runID, actor.CompanyID); err != nil {
		return nil, err
	}

	items, err := s.payrollRepo.ListItemsByRun(ctx, runID, actor.CompanyID)
	if err != nil {
		return nil, err
	}

	resp := make([]payroll.PayrollItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, mapToItemResponse(item))
	}
	return resp, nil
}

func disabledSchemes(settings payroll.PayrollSettings) statutory.Disabled {
	return statutory.Disabled{
		EPF:   !settings.EPFEnabled,
		SOCSO: !settings.SOCSOEnabled,
		EIS:   !settings.EISEnabled,
		PCB:   !settings.PCBEnabled,
	}
}

package payroll

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/audit"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const testCompanyID = "11111111-1111-1111-1111-111111111111"

// passthroughTx runs fn without a database. Rollback is simulated by
// restoring the repository snapshot when fn fails.
type passthroughTx struct {
	repo *memPayrollRepo
}

func (p passthroughTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := p.repo.snapshot()
	if err := fn(ctx); err != nil {
		p.repo.restore(snap)
		return err
	}
	return nil
}

type memState struct {
	settings map[string]payroll.PayrollSettings
	runs     map[string]payroll.PayrollRun
	items    map[string]payroll.PayrollItem
	claims   map[string]decimal.Decimal
	linked   map[string]string
}

type memPayrollRepo struct {
	mu  sync.Mutex
	seq int
	memState

	itemReads     int
	itemWrites    int
	derivedWrites map[string]int
}

func newMemPayrollRepo() *memPayrollRepo {
	return &memPayrollRepo{
		memState: memState{
			settings: map[string]payroll.PayrollSettings{},
			runs:     map[string]payroll.PayrollRun{},
			items:    map[string]payroll.PayrollItem{},
			claims:   map[string]decimal.Decimal{},
			linked:   map[string]string{},
		},
		derivedWrites: map[string]int{},
	}
}

func (r *memPayrollRepo) snapshot() memState {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := memState{
		settings: map[string]payroll.PayrollSettings{},
		runs:     map[string]payroll.PayrollRun{},
		items:    map[string]payroll.PayrollItem{},
		claims:   map[string]decimal.Decimal{},
		linked:   map[string]string{},
	}
	for k, v := range r.settings {
		s.settings[k] = v
	}
	for k, v := range r.runs {
		s.runs[k] = v
	}
	for k, v := range r.items {
		s.items[k] = v
	}
	for k, v := range r.claims {
		s.claims[k] = v
	}
	for k, v := range r.linked {
		s.linked[k] = v
	}
	return s
}

func (r *memPayrollRepo) restore(s memState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memState = s
}

// nextID returns sequential UUIDs so ordering by ID follows insertion.
func (r *memPayrollRepo) nextID() string {
	r.seq++
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", r.seq)
}

func (r *memPayrollRepo) GetSettings(ctx context.Context, companyID string) (payroll.PayrollSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[companyID]
	if !ok {
		return payroll.PayrollSettings{}, payroll.ErrPayrollSettingsNotFound
	}
	return s, nil
}

func (r *memPayrollRepo) UpsertSettings(ctx context.Context, settings payroll.PayrollSettings) (payroll.PayrollSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if settings.ID == "" {
		settings.ID = r.nextID()
	}
	r.settings[settings.CompanyID] = settings
	return settings, nil
}

func (r *memPayrollRepo) ListAutoGenerateCompanyIDs(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, s := range r.settings {
		if s.AutoGenerateEnabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func sameDepartment(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *memPayrollRepo) CreateRun(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.runs {
		if existing.CompanyID == run.CompanyID && sameDepartment(existing.DepartmentID, run.DepartmentID) &&
			existing.PeriodMonth == run.PeriodMonth && existing.PeriodYear == run.PeriodYear {
			return payroll.PayrollRun{}, payroll.ErrPayrollRunAlreadyExists
		}
	}
	run.ID = r.nextID()
	run.CreatedAt = time.Now()
	r.runs[run.ID] = run
	return run, nil
}

func (r *memPayrollRepo) GetRunByID(ctx context.Context, id string, companyID string) (payroll.PayrollRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok || run.CompanyID != companyID {
		return payroll.PayrollRun{}, payroll.ErrPayrollRunNotFound
	}
	return run, nil
}

func (r *memPayrollRepo) GetRunByIDForUpdate(ctx context.Context, id string, companyID string) (payroll.PayrollRun, error) {
	return r.GetRunByID(ctx, id, companyID)
}

func (r *memPayrollRepo) GetRunByPeriod(ctx context.Context, companyID string, departmentID *string, month, year int) (payroll.PayrollRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.CompanyID == companyID && sameDepartment(run.DepartmentID, departmentID) &&
			run.PeriodMonth == month && run.PeriodYear == year {
			return run, nil
		}
	}
	return payroll.PayrollRun{}, payroll.ErrPayrollRunNotFound
}

func (r *memPayrollRepo) ListRuns(ctx context.Context, companyID string, filter payroll.RunFilter) ([]payroll.PayrollRun, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []payroll.PayrollRun
	for _, run := range r.runs {
		if run.CompanyID != companyID {
			continue
		}
		if filter.Status != nil && string(run.Status) != *filter.Status {
			continue
		}
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *memPayrollRepo) UpdateRunStatus(ctx context.Context, companyID string, update payroll.RunStatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[update.RunID]
	if !ok || run.CompanyID != companyID || run.Status != update.From {
		return payroll.ErrInvalidTransition
	}
	run.Status = update.To
	at := update.At
	run.UpdatedAt = at
	switch update.To {
	case payroll.RunStatusApproved, payroll.RunStatusAutoApproved:
		run.ApprovedBy = update.Actor
		run.ApprovedAt = &at
		run.ApprovalType = update.ApprovalType
	case payroll.RunStatusEdited:
		run.EditedBy = update.Actor
		run.EditedAt = &at
		run.EditReason = update.Reason
	case payroll.RunStatusLocked:
		run.LockedBy = update.Actor
		run.LockedAt = &at
	}
	r.runs[run.ID] = run
	return nil
}

func (r *memPayrollRepo) UpdateRunVariance(ctx context.Context, runID string, companyID string, v payroll.Variance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok || run.CompanyID != companyID {
		return payroll.ErrPayrollRunNotFound
	}
	run.VarianceFromPrevious = v.Amount
	run.VariancePercentage = v.Percentage
	run.HasPrevious = v.HasPrevious
	r.runs[runID] = run
	return nil
}

func (r *memPayrollRepo) RefreshRunTotals(ctx context.Context, runID string, companyID string) (payroll.RunTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok || run.CompanyID != companyID {
		return payroll.RunTotals{}, payroll.ErrPayrollRunNotFound
	}
	totals := payroll.RunTotals{}
	for _, item := range r.items {
		if item.PayrollRunID != runID || item.DeletedAt != nil {
			continue
		}
		totals.Gross = totals.Gross.Add(item.GrossSalary)
		totals.Net = totals.Net.Add(item.NetPay)
		totals.Deductions = totals.Deductions.Add(item.TotalDeductions)
		totals.EmployerCost = totals.EmployerCost.Add(item.EmployerTotalCost)
		totals.EmployeeCount++
	}
	run.TotalGross = totals.Gross
	run.TotalNet = totals.Net
	run.TotalDeductions = totals.Deductions
	run.TotalEmployerCost = totals.EmployerCost
	run.EmployeeCount = totals.EmployeeCount
	r.runs[runID] = run
	return totals, nil
}

func (r *memPayrollRepo) CreateItems(ctx context.Context, items []payroll.PayrollItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		item.ID = r.nextID()
		r.items[item.ID] = item
	}
	return nil
}

func (r *memPayrollRepo) GetItemByID(ctx context.Context, id string, companyID string) (payroll.PayrollItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.itemReads++
	// Postgres rejects a malformed uuid parameter before matching any row.
	if _, err := uuid.Parse(id); err != nil {
		return payroll.PayrollItem{}, fmt.Errorf("invalid input syntax for type uuid: %q", id)
	}
	item, ok := r.items[id]
	if !ok || item.CompanyID != companyID || item.DeletedAt != nil {
		return payroll.PayrollItem{}, payroll.ErrPayrollItemNotFound
	}
	return item, nil
}

func (r *memPayrollRepo) ListItemsByRun(ctx context.Context, runID string, companyID string) ([]payroll.PayrollItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []payroll.PayrollItem
	for _, item := range r.items {
		if item.PayrollRunID == runID && item.CompanyID == companyID && item.DeletedAt == nil {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

func (r *memPayrollRepo) UpdateItemInputs(ctx context.Context, companyID string, item payroll.PayrollItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[item.ID]
	if !ok || current.CompanyID != companyID {
		return payroll.ErrPayrollItemNotFound
	}
	current.BasicSalary = item.BasicSalary
	current.FixedAllowance = item.FixedAllowance
	current.Bonus = item.Bonus
	current.CommissionAmount = item.CommissionAmount
	current.IncentiveAmount = item.IncentiveAmount
	current.OtherDeductions = item.OtherDeductions
	current.DeductionRemarks = item.DeductionRemarks
	current.TradeCommissionAmount = item.TradeCommissionAmount
	current.OutstationAmount = item.OutstationAmount
	current.PCBOverride = item.PCBOverride
	r.items[item.ID] = current
	r.itemWrites++
	return nil
}

func (r *memPayrollRepo) UpdateItemDerived(ctx context.Context, itemID string, companyID string, d payroll.Derived) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemID]
	if !ok || item.CompanyID != companyID {
		return payroll.ErrPayrollItemNotFound
	}
	item.Apply(d)
	r.items[itemID] = item
	r.derivedWrites[itemID]++
	return nil
}

func (r *memPayrollRepo) GetYearToDate(ctx context.Context, companyID string, employeeID string, year, beforeMonth int) (payroll.YearToDate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	type pick struct {
		run  payroll.PayrollRun
		item payroll.PayrollItem
	}
	byMonth := map[int]pick{}
	for _, item := range r.items {
		run := r.runs[item.PayrollRunID]
		if item.EmployeeID != employeeID || item.DeletedAt != nil || run.CompanyID != companyID ||
			run.PeriodYear != year || run.PeriodMonth >= beforeMonth || !run.Status.CountsTowardYearToDate() {
			continue
		}
		current, ok := byMonth[run.PeriodMonth]
		if !ok || preferForYearToDate(run, current.run) {
			byMonth[run.PeriodMonth] = pick{run: run, item: item}
		}
	}
	ytd := payroll.YearToDate{Months: len(byMonth)}
	for _, p := range byMonth {
		ytd.StatutoryBase = ytd.StatutoryBase.Add(p.item.StatutoryBase)
		ytd.EPF = ytd.EPF.Add(p.item.EPFEmployee)
		ytd.TaxPaid = ytd.TaxPaid.Add(p.item.PCB)
	}
	return ytd, nil
}

// preferForYearToDate orders duplicate runs of a month the way the SQL does.
func preferForYearToDate(a, b payroll.PayrollRun) bool {
	if a.Status.IsLocked() != b.Status.IsLocked() {
		return a.Status.IsLocked()
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID < b.ID
}

func (r *memPayrollRepo) GetUnlinkedClaimTotals(ctx context.Context, companyID string, employeeIDs []string, until time.Time) (map[string]decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]decimal.Decimal{}
	for _, id := range employeeIDs {
		if amount, ok := r.claims[id]; ok {
			if _, done := r.linked[id]; !done {
				out[id] = amount
			}
		}
	}
	return out, nil
}

func (r *memPayrollRepo) LinkClaims(ctx context.Context, companyID string, runID string, employeeIDs []string, until time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range employeeIDs {
		if _, ok := r.claims[id]; ok {
			if _, done := r.linked[id]; !done {
				r.linked[id] = runID
				n++
			}
		}
	}
	return n, nil
}

type memEmployeeRepo struct {
	employees map[string]employee.Employee
}

func newMemEmployeeRepo(employees ...employee.Employee) *memEmployeeRepo {
	r := &memEmployeeRepo{employees: map[string]employee.Employee{}}
	for _, e := range employees {
		r.employees[e.ID] = e
	}
	return r
}

func (r *memEmployeeRepo) GetByID(ctx context.Context, id string, companyID string) (employee.Employee, error) {
	e, ok := r.employees[id]
	if !ok || e.CompanyID != companyID {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return e, nil
}

func (r *memEmployeeRepo) GetByIDs(ctx context.Context, companyID string, ids []string) ([]employee.Employee, error) {
	var out []employee.Employee
	for _, id := range ids {
		if e, ok := r.employees[id]; ok && e.CompanyID == companyID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memEmployeeRepo) GetActiveByCompanyID(ctx context.Context, companyID string, departmentID *string) ([]employee.Employee, error) {
	var out []employee.Employee
	for _, e := range r.employees {
		if e.CompanyID != companyID || e.EmploymentStatus != employee.EmploymentStatusActive {
			continue
		}
		if departmentID != nil && !sameDepartment(e.DepartmentID, departmentID) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memAuditRepo struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *memAuditRepo) Record(ctx context.Context, entry audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memAuditRepo) actions() []audit.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Action, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []payroll.RunStatusChangedEvent
	err    error
}

func (p *recordingPublisher) PublishRunStatusChanged(ctx context.Context, event payroll.RunStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

// fixture bundles a service with its in-memory collaborators.
type fixture struct {
	svc       *PayrollServiceImpl
	repo      *memPayrollRepo
	employees *memEmployeeRepo
	audit     *memAuditRepo
	publisher *recordingPublisher
	ctx       context.Context
}

func newFixture(employees ...employee.Employee) *fixture {
	repo := newMemPayrollRepo()
	empRepo := newMemEmployeeRepo(employees...)
	auditRepo := &memAuditRepo{}
	publisher := &recordingPublisher{}
	fixed := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)

	svc := NewPayrollService(passthroughTx{repo: repo}, repo, empRepo, auditRepo, publisher, nil,
		WithWorkers(2), WithClock(func() time.Time { return fixed }))

	return &fixture{
		svc:       svc.(*PayrollServiceImpl),
		repo:      repo,
		employees: empRepo,
		audit:     auditRepo,
		publisher: publisher,
		ctx:       payroll.ContextWithActor(context.Background(), payroll.Actor{CompanyID: testCompanyID, UserID: "hr-1"}),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func newEmployee(id string, basic string) employee.Employee {
	dob := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)
	return employee.Employee{
		ID:               id,
		CompanyID:        testCompanyID,
		EmployeeCode:     "EMP-" + id,
		FullName:         "Employee " + id,
		DOB:              &dob,
		HireDate:         time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		MaritalStatus:    employee.MaritalStatusSingle,
		EmploymentStatus: employee.EmploymentStatusActive,
		BaseSalary:       decPtr(basic),
	}
}

// seedRun stores a run with the given status and net total.
func (f *fixture) seedRun(month, year int, status payroll.RunStatus, net string) payroll.PayrollRun {
	run, err := f.repo.CreateRun(f.ctx, payroll.PayrollRun{
		CompanyID:   testCompanyID,
		PeriodMonth: month,
		PeriodYear:  year,
		Status:      status,
		TotalNet:    dec(net),
	})
	if err != nil {
		panic(err)
	}
	return run
}

func assertDecimal(t interface {
	Helper()
	Errorf(string, ...any)
}, want string, got decimal.Decimal) {
	t.Helper()
	if !dec(want).Equal(got) {
		t.Errorf("expected %s, got %s", want, got.String())
	}
}

// memPeriodInputs serves attendance minutes and unpaid leave days and
// records the requested range.
type memPeriodInputs struct {
	minutes    map[string]attendance.PeriodMinutes
	unpaidDays map[string]decimal.Decimal
	from, to   time.Time
}

func (m *memPeriodInputs) SumPeriodMinutes(ctx context.Context, companyID string, employeeIDs []string, from, to time.Time) (map[string]attendance.PeriodMinutes, error) {
	m.from, m.to = from, to
	return m.minutes, nil
}

func (m *memPeriodInputs) SumUnpaidDays(ctx context.Context, companyID string, employeeIDs []string, from, to time.Time) (map[string]decimal.Decimal, error) {
	return m.unpaidDays, nil
}

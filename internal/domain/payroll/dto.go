package payroll

import (
	"encoding/json"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== SETTINGS DTOs ==========

type PayrollSettingsResponse struct {
	ID                  string          `json:"id,omitempty"`
	CompanyID           string          `json:"company_id"`
	IncludeOvertime     bool            `json:"include_overtime"`
	IncludeHolidayPay   bool            `json:"include_holiday_pay"`
	IncludeAllowances   bool            `json:"include_allowances"`
	IncludeIncentives   bool            `json:"include_incentives"`
	EPFEnabled          bool            `json:"epf_enabled"`
	SOCSOEnabled        bool            `json:"socso_enabled"`
	EISEnabled          bool            `json:"eis_enabled"`
	PCBEnabled          bool            `json:"pcb_enabled"`
	AutoGenerateEnabled bool            `json:"auto_generate_enabled"`
	AutoApproveEnabled  bool            `json:"auto_approve_enabled"`
	VarianceThreshold   decimal.Decimal `json:"variance_threshold"`
}

type UpdatePayrollSettingsRequest struct {
	IncludeOvertime     *bool            `json:"include_overtime,omitempty"`
	IncludeHolidayPay   *bool            `json:"include_holiday_pay,omitempty"`
	IncludeAllowances   *bool            `json:"include_allowances,omitempty"`
	IncludeIncentives   *bool            `json:"include_incentives,omitempty"`
	EPFEnabled          *bool            `json:"epf_enabled,omitempty"`
	SOCSOEnabled        *bool            `json:"socso_enabled,omitempty"`
	EISEnabled          *bool            `json:"eis_enabled,omitempty"`
	PCBEnabled          *bool            `json:"pcb_enabled,omitempty"`
	AutoGenerateEnabled *bool            `json:"auto_generate_enabled,omitempty"`
	AutoApproveEnabled  *bool            `json:"auto_approve_enabled,omitempty"`
	VarianceThreshold   *decimal.Decimal `json:"variance_threshold,omitempty"`
}

func (r *UpdatePayrollSettingsRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.VarianceThreshold != nil {
		if r.VarianceThreshold.IsNegative() {
			errs = append(errs, validator.ValidationError{Field: "variance_threshold", Message: "must be non-negative"})
		} else if r.VarianceThreshold.GreaterThan(decimal.NewFromInt(100)) {
			errs = append(errs, validator.ValidationError{Field: "variance_threshold", Message: "must not exceed 100"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Apply copies the set fields onto settings.
func (r UpdatePayrollSettingsRequest) Apply(s *PayrollSettings) {
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setBool(&s.IncludeOvertime, r.IncludeOvertime)
	setBool(&s.IncludeHolidayPay, r.IncludeHolidayPay)
	setBool(&s.IncludeAllowances, r.IncludeAllowances)
	setBool(&s.IncludeIncentives, r.IncludeIncentives)
	setBool(&s.EPFEnabled, r.EPFEnabled)
	setBool(&s.SOCSOEnabled, r.SOCSOEnabled)
	setBool(&s.EISEnabled, r.EISEnabled)
	setBool(&s.PCBEnabled, r.PCBEnabled)
	setBool(&s.AutoGenerateEnabled, r.AutoGenerateEnabled)
	setBool(&s.AutoApproveEnabled, r.AutoApproveEnabled)
	if r.VarianceThreshold != nil {
		s.VarianceThreshold = *r.VarianceThreshold
	}
}

// ========== STATUTORY PREVIEW DTOs ==========

type StatutoryPreviewRequest struct {
	StatutoryBase decimal.Decimal  `json:"statutory_base"`
	Age           int              `json:"age" validate:"min=0,max=120"`
	MaritalStatus string           `json:"marital_status" validate:"omitempty,oneof=single married divorced widowed"`
	SpouseWorking bool             `json:"spouse_working"`
	Dependents    int              `json:"dependents" validate:"min=0,max=20"`
	PeriodMonth   int              `json:"period_month" validate:"min=1,max=12"`
	PeriodYear    int              `json:"period_year" validate:"min=2020"`
	PCBOverride   *decimal.Decimal `json:"pcb_override,omitempty"`
}

func (r *StatutoryPreviewRequest) Validate() error {
	errs := validator.Struct(r)
	if r.StatutoryBase.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "statutory_base", Message: "must be non-negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type StatutoryPreviewResponse struct {
	StatutoryBase decimal.Decimal `json:"statutory_base"`
	EPFEmployee   decimal.Decimal `json:"epf_employee"`
	EPFEmployer   decimal.Decimal `json:"epf_employer"`
	SOCSOEmployee decimal.Decimal `json:"socso_employee"`
	SOCSOEmployer decimal.Decimal `json:"socso_employer"`
	EISEmployee   decimal.Decimal `json:"eis_employee"`
	EISEmployer   decimal.Decimal `json:"eis_employer"`
	PCB           decimal.Decimal `json:"pcb"`
}

// ========== RUN DTOs ==========

// GenerateRunRequest creates the run for a period. AsDraft keeps the populated
// run in draft for the manual approval path.
type GenerateRunRequest struct {
	PeriodMonth  int     `json:"period_month" validate:"min=1,max=12"`
	PeriodYear   int     `json:"period_year" validate:"min=2020"`
	DepartmentID *string `json:"department_id,omitempty" validate:"omitempty,uuid"`
	AsDraft      bool    `json:"as_draft,omitempty"`
}

func (r *GenerateRunRequest) Validate() error {
	if errs := validator.Struct(r); len(errs) > 0 {
		return errs
	}
	return nil
}

type RunFilter struct {
	PeriodMonth  *int    `json:"period_month,omitempty"`
	PeriodYear   *int    `json:"period_year,omitempty"`
	Status       *string `json:"status,omitempty"`
	DepartmentID *string `json:"department_id,omitempty"`
	Page         int     `json:"page"`
	Limit        int     `json:"limit"`
}

func (f *RunFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.PeriodMonth != nil && (*f.PeriodMonth < 1 || *f.PeriodMonth > 12) {
		errs = append(errs, validator.ValidationError{Field: "period_month", Message: "must be between 1 and 12"})
	}
	if f.Status != nil && !RunStatus(*f.Status).IsValid() {
		errs = append(errs, validator.ValidationError{Field: "status", Message: "is not a valid run status"})
	}
	if f.DepartmentID != nil && !validator.IsValidUUID(*f.DepartmentID) {
		errs = append(errs, validator.ValidationError{Field: "department_id", Message: "must be a valid UUID"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type PayrollRunResponse struct {
	ID                   string          `json:"id"`
	CompanyID            string          `json:"company_id"`
	DepartmentID         *string         `json:"department_id,omitempty"`
	PeriodMonth          int             `json:"period_month"`
	PeriodYear           int             `json:"period_year"`
	Status               string          `json:"status"`
	TotalGross           decimal.Decimal `json:"total_gross"`
	TotalNet             decimal.Decimal `json:"total_net"`
	TotalDeductions      decimal.Decimal `json:"total_deductions"`
	TotalEmployerCost    decimal.Decimal `json:"total_employer_cost"`
	EmployeeCount        int             `json:"employee_count"`
	VarianceFromPrevious decimal.Decimal `json:"variance_from_previous"`
	VariancePercentage   decimal.Decimal `json:"variance_percentage"`
	HasPrevious          bool            `json:"has_previous"`
	ApprovedBy           *string         `json:"approved_by,omitempty"`
	ApprovedAt           *string         `json:"approved_at,omitempty"`
	ApprovalType         *string         `json:"approval_type,omitempty"`
	EditedBy             *string         `json:"edited_by,omitempty"`
	EditedAt             *string         `json:"edited_at,omitempty"`
	EditReason           *string         `json:"edit_reason,omitempty"`
	LockedBy             *string         `json:"locked_by,omitempty"`
	LockedAt             *string         `json:"locked_at,omitempty"`
}

type ListPayrollRunResponse struct {
	Data       []PayrollRunResponse `json:"data"`
	TotalCount int64                `json:"total_count"`
	Page       int                  `json:"page"`
	Limit      int                  `json:"limit"`
}

type PayrollItemResponse struct {
	ID                    string           `json:"id"`
	PayrollRunID          string           `json:"payroll_run_id"`
	EmployeeID            string           `json:"employee_id"`
	EmployeeName          *string          `json:"employee_name,omitempty"`
	EmployeeCode          *string          `json:"employee_code,omitempty"`
	BasicSalary           decimal.Decimal  `json:"basic_salary"`
	FixedAllowance        decimal.Decimal  `json:"fixed_allowance"`
	OvertimeAmount        decimal.Decimal  `json:"overtime_amount"`
	HolidayPay            decimal.Decimal  `json:"holiday_pay"`
	CommissionAmount      decimal.Decimal  `json:"commission_amount"`
	Bonus                 decimal.Decimal  `json:"bonus"`
	IncentiveAmount       decimal.Decimal  `json:"incentive_amount"`
	TradeCommissionAmount decimal.Decimal  `json:"trade_commission_amount"`
	OutstationAmount      decimal.Decimal  `json:"outstation_amount"`
	ClaimsAmount          decimal.Decimal  `json:"claims_amount"`
	UnpaidLeaveDeduction  decimal.Decimal  `json:"unpaid_leave_deduction"`
	OtherDeductions       decimal.Decimal  `json:"other_deductions"`
	DeductionRemarks      *string          `json:"deduction_remarks,omitempty"`
	PCBOverride           *decimal.Decimal `json:"pcb_override,omitempty"`
	EPFEmployee           decimal.Decimal  `json:"epf_employee"`
	EPFEmployer           decimal.Decimal  `json:"epf_employer"`
	SOCSOEmployee         decimal.Decimal  `json:"socso_employee"`
	SOCSOEmployer         decimal.Decimal  `json:"socso_employer"`
	EISEmployee           decimal.Decimal  `json:"eis_employee"`
	EISEmployer           decimal.Decimal  `json:"eis_employer"`
	PCB                   decimal.Decimal  `json:"pcb"`
	GrossSalary           decimal.Decimal  `json:"gross_salary"`
	StatutoryBase         decimal.Decimal  `json:"statutory_base"`
	TotalDeductions       decimal.Decimal  `json:"total_deductions"`
	NetPay                decimal.Decimal  `json:"net_pay"`
	EmployerTotalCost     decimal.Decimal  `json:"employer_total_cost"`
}

// ========== RECALCULATION DTOs ==========

// ItemResult reports one item's recalculation. Reason is set when Success is false.
type ItemResult struct {
	ItemID  string               `json:"item_id"`
	Success bool                 `json:"success"`
	Item    *PayrollItemResponse `json:"item,omitempty"`
	Reason  string               `json:"reason,omitempty"`
}

type RecalculateRunResponse struct {
	RunID     string       `json:"run_id"`
	Results   []ItemResult `json:"results"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Totals    RunTotals    `json:"totals"`
}

// ========== VARIANCE DTOs ==========

type VarianceRequest struct {
	DepartmentID *string         `json:"department_id,omitempty" validate:"omitempty,uuid"`
	PeriodMonth  int             `json:"period_month" validate:"min=1,max=12"`
	PeriodYear   int             `json:"period_year" validate:"min=2020"`
	CurrentTotal decimal.Decimal `json:"current_total"`
}

func (r *VarianceRequest) Validate() error {
	if errs := validator.Struct(r); len(errs) > 0 {
		return errs
	}
	return nil
}

// ========== TRANSITION DTOs ==========

type TransitionRequest struct {
	RunID      string `json:"-"`
	Transition string `json:"transition" validate:"required"`
	Reason     string `json:"reason,omitempty" validate:"max=500"`
}

func (r *TransitionRequest) Validate() error {
	errs := validator.Struct(r)
	if r.Transition != "" {
		if _, err := ParseTransition(r.Transition); err != nil {
			errs = append(errs, validator.ValidationError{Field: "transition", Message: "must be one of generate, auto_approve, edit, approve, lock"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type TransitionResult struct {
	RunID           string `json:"run_id"`
	Success         bool   `json:"success"`
	PreviousStatus  string `json:"previous_status"`
	NewStatus       string `json:"new_status,omitempty"`
	Guard           string `json:"guard,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// ========== CHANGE DTOs ==========

// ChangeRequest is one proposed field edit. Value is a JSON number, numeric string, text or null.
// Prorate scales an earning amount by the employee's months of service in the year.
type ChangeRequest struct {
	ItemID  string          `json:"item_id"`
	Field   string          `json:"field"`
	Value   json.RawMessage `json:"value"`
	Prorate bool            `json:"prorate,omitempty"`
}

type ApplyChangesRequest struct {
	RunID   string          `json:"-"`
	Reason  string          `json:"reason,omitempty" validate:"max=500"`
	Changes []ChangeRequest `json:"changes" validate:"required,min=1,max=500"`
}

func (r *ApplyChangesRequest) Validate() error {
	if errs := validator.Struct(r); len(errs) > 0 {
		return errs
	}
	return nil
}

type ChangeResult struct {
	Index   int    `json:"index"`
	ItemID  string `json:"item_id"`
	Field   string `json:"field"`
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

type ApplyResult struct {
	RunID    string         `json:"run_id"`
	Status   string         `json:"status"`
	Results  []ChangeResult `json:"results"`
	Applied  int            `json:"applied"`
	Rejected int            `json:"rejected"`
	Totals   RunTotals      `json:"totals"`
}

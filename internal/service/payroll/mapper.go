package payroll

import (
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
)

// ========== HELPERS ==========

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	str := t.Format(time.RFC3339)
	return &str
}

func mapToSettingsResponse(s payroll.PayrollSettings) payroll.PayrollSettingsResponse {
	return payroll.PayrollSettingsResponse{
		ID:                  s.ID,
		CompanyID:           s.CompanyID,
		IncludeOvertime:     s.IncludeOvertime,
		IncludeHolidayPay:   s.IncludeHolidayPay,
		IncludeAllowances:   s.IncludeAllowances,
		IncludeIncentives:   s.IncludeIncentives,
		EPFEnabled:          s.EPFEnabled,
		SOCSOEnabled:        s.SOCSOEnabled,
		EISEnabled:          s.EISEnabled,
		PCBEnabled:          s.PCBEnabled,
		AutoGenerateEnabled: s.AutoGenerateEnabled,
		AutoApproveEnabled:  s.AutoApproveEnabled,
		VarianceThreshold:   s.VarianceThreshold,
	}
}

func mapToRunResponse(r payroll.PayrollRun) payroll.PayrollRunResponse {
	var approvalType *string
	if r.ApprovalType != nil {
		str := string(*r.ApprovalType)
		approvalType = &str
	}

	return payroll.PayrollRunResponse{
		ID:                   r.ID,
		CompanyID:            r.CompanyID,
		DepartmentID:         r.DepartmentID,
		PeriodMonth:          r.PeriodMonth,
		PeriodYear:           r.PeriodYear,
		Status:               string(r.Status),
		TotalGross:           r.TotalGross,
		TotalNet:             r.TotalNet,
		TotalDeductions:      r.TotalDeductions,
		TotalEmployerCost:    r.TotalEmployerCost,
		EmployeeCount:        r.EmployeeCount,
		VarianceFromPrevious: r.VarianceFromPrevious,
		VariancePercentage:   r.VariancePercentage,
		HasPrevious:          r.HasPrevious,
		ApprovedBy:           r.ApprovedBy,
		ApprovedAt:           formatTime(r.ApprovedAt),
		ApprovalType:         approvalType,
		EditedBy:             r.EditedBy,
		EditedAt:             formatTime(r.EditedAt),
		EditReason:           r.EditReason,
		LockedBy:             r.LockedBy,
		LockedAt:             formatTime(r.LockedAt),
	}
}

func mapToItemResponse(i payroll.PayrollItem) payroll.PayrollItemResponse {
	return payroll.PayrollItemResponse{
		ID:                    i.ID,
		PayrollRunID:          i.PayrollRunID,
		EmployeeID:            i.EmployeeID,
		EmployeeName:          i.EmployeeName,
		EmployeeCode:          i.EmployeeCode,
		BasicSalary:           i.BasicSalary,
		FixedAllowance:        i.FixedAllowance,
		OvertimeAmount:        i.OvertimeAmount,
		HolidayPay:            i.HolidayPay,
		CommissionAmount:      i.CommissionAmount,
		Bonus:                 i.Bonus,
		IncentiveAmount:       i.IncentiveAmount,
		TradeCommissionAmount: i.TradeCommissionAmount,
		OutstationAmount:      i.OutstationAmount,
		ClaimsAmount:          i.ClaimsAmount,
		UnpaidLeaveDeduction:  i.UnpaidLeaveDeduction,
		OtherDeductions:       i.OtherDeductions,
		DeductionRemarks:      i.DeductionRemarks,
		PCBOverride:           i.PCBOverride,
		EPFEmployee:           i.EPFEmployee,
		EPFEmployer:           i.EPFEmployer,
		SOCSOEmployee:         i.SOCSOEmployee,
		SOCSOEmployer:         i.SOCSOEmployer,
		EISEmployee:           i.EISEmployee,
		EISEmployer:           i.EISEmployer,
		PCB:                   i.PCB,
		GrossSalary:           i.GrossSalary,
		StatutoryBase:         i.StatutoryBase,
		TotalDeductions:       i.TotalDeductions,
		NetPay:                i.NetPay,
		EmployerTotalCost:     i.EmployerTotalCost,
	}
}

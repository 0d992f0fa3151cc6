package payroll

import (
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func sampleComponents() payroll.Components {
	return payroll.Components{
		payroll.ComponentBasicSalary:     dec("3000"),
		payroll.ComponentFixedAllowance:  dec("200"),
		payroll.ComponentOvertime:        dec("150"),
		payroll.ComponentHolidayPay:      dec("100"),
		payroll.ComponentCommission:      dec("50"),
		payroll.ComponentBonus:           dec("500"),
		payroll.ComponentIncentive:       dec("75"),
		payroll.ComponentTradeCommission: dec("25"),
		payroll.ComponentOutstation:      dec("40"),
		payroll.ComponentClaims:          dec("120"),
	}
}

func TestAssembleGross_Toggles(t *testing.T) {
	tests := []struct {
		name    string
		toggles payroll.BaseToggles
		base    string
	}{
		{name: "nothing optional", toggles: payroll.BaseToggles{}, base: "3575"},
		{name: "overtime", toggles: payroll.BaseToggles{IncludeOvertime: true}, base: "3725"},
		{name: "holiday pay", toggles: payroll.BaseToggles{IncludeHolidayPay: true}, base: "3675"},
		{name: "allowances include outstation", toggles: payroll.BaseToggles{IncludeAllowances: true}, base: "3815"},
		{name: "incentives", toggles: payroll.BaseToggles{IncludeIncentives: true}, base: "3650"},
		{
			name:    "everything",
			toggles: payroll.BaseToggles{IncludeOvertime: true, IncludeHolidayPay: true, IncludeAllowances: true, IncludeIncentives: true},
			base:    "4140",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AssembleGross(sampleComponents(), tt.toggles, nil)
			assertDecimal(t, "4260", got.GrossPay)
			assertDecimal(t, tt.base, got.StatutoryBase)
		})
	}
}

func TestAssembleGross_ClaimsNeverInBase(t *testing.T) {
	all := payroll.BaseToggles{IncludeOvertime: true, IncludeHolidayPay: true, IncludeAllowances: true, IncludeIncentives: true}
	got := AssembleGross(payroll.Components{payroll.ComponentClaims: dec("300")}, all, nil)

	assertDecimal(t, "300", got.GrossPay)
	assertDecimal(t, "0", got.StatutoryBase)
}

func TestAssembleGross_UnpaidLeaveReducesGrossOnly(t *testing.T) {
	c := payroll.Components{
		payroll.ComponentBasicSalary:          dec("3000"),
		payroll.ComponentUnpaidLeaveDeduction: dec("250"),
	}
	got := AssembleGross(c, payroll.BaseToggles{}, nil)

	assertDecimal(t, "2750", got.GrossPay)
	assertDecimal(t, "3000", got.StatutoryBase)
}

func TestAssembleGross_MissingComponentsAreZero(t *testing.T) {
	got := AssembleGross(payroll.Components{}, payroll.BaseToggles{IncludeAllowances: true}, nil)

	assertDecimal(t, "0", got.GrossPay)
	assertDecimal(t, "0", got.StatutoryBase)
}

func TestAssembleGross_Proration(t *testing.T) {
	c := payroll.Components{
		payroll.ComponentBasicSalary: dec("3000"),
		payroll.ComponentBonus:       dec("1000"),
	}

	t.Run("scales listed fields under a year", func(t *testing.T) {
		p := &Proration{MonthsEmployed: 4, Fields: []payroll.Component{payroll.ComponentBonus}}
		got := AssembleGross(c, payroll.BaseToggles{}, p)
		assertDecimal(t, "3333.33", got.GrossPay)
		assertDecimal(t, "3333.33", got.StatutoryBase)
	})

	t.Run("full year leaves amounts untouched", func(t *testing.T) {
		p := &Proration{MonthsEmployed: 12, Fields: []payroll.Component{payroll.ComponentBonus}}
		got := AssembleGross(c, payroll.BaseToggles{}, p)
		assertDecimal(t, "4000", got.GrossPay)
	})

	t.Run("does not mutate input", func(t *testing.T) {
		p := &Proration{MonthsEmployed: 6, Fields: []payroll.Component{payroll.ComponentBonus}}
		_ = AssembleGross(c, payroll.BaseToggles{}, p)
		assertDecimal(t, "1000", c[payroll.ComponentBonus])
	})
}

func TestMonthsEmployed(t *testing.T) {
	date := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name string
		join time.Time
		ref  time.Time
		want int
	}{
		{name: "same day", join: date(2025, 3, 15), ref: date(2025, 3, 15), want: 0},
		{name: "one full month", join: date(2025, 1, 15), ref: date(2025, 2, 15), want: 1},
		{name: "partial month floors", join: date(2025, 1, 15), ref: date(2025, 2, 14), want: 0},
		{name: "month end completes", join: date(2025, 1, 31), ref: date(2025, 2, 28), want: 1},
		{name: "across years", join: date(2024, 11, 1), ref: date(2025, 3, 31), want: 4},
		{name: "join after ref", join: date(2025, 6, 1), ref: date(2025, 3, 31), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MonthsEmployed(tt.join, tt.ref))
		})
	}
}

func TestComputePeriodPay(t *testing.T) {
	tests := []struct {
		name       string
		basic      string
		minutes    attendance.PeriodMinutes
		unpaidDays string
		want       PeriodPay
	}{
		{
			name:       "overtime holiday and leave",
			basic:      "5200",
			minutes:    attendance.PeriodMinutes{Overtime: 120, Holiday: 480},
			unpaidDays: "2.5",
			want:       PeriodPay{Overtime: dec("75"), HolidayPay: dec("400"), UnpaidLeaveDeduction: dec("500")},
		},
		{
			name:    "fractional rate rounds to cents",
			basic:   "3000",
			minutes: attendance.PeriodMinutes{Overtime: 90},
			// 3000 / 26 / 8 * 1.5 * 1.5
			want: PeriodPay{Overtime: dec("32.45")},
		},
		{
			name:       "leave deduction capped at basic",
			basic:      "2600",
			unpaidDays: "31",
			want:       PeriodPay{UnpaidLeaveDeduction: dec("2600")},
		},
		{
			name:    "no basic salary",
			basic:   "0",
			minutes: attendance.PeriodMinutes{Overtime: 600},
			want:    PeriodPay{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days := decimal.Zero
			if tt.unpaidDays != "" {
				days = dec(tt.unpaidDays)
			}

			got := ComputePeriodPay(dec(tt.basic), tt.minutes, days)

			assertDecimal(t, tt.want.Overtime.String(), got.Overtime)
			assertDecimal(t, tt.want.HolidayPay.String(), got.HolidayPay)
			assertDecimal(t, tt.want.UnpaidLeaveDeduction.String(), got.UnpaidLeaveDeduction)
		})
	}
}

package payroll

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// EditableField is the closed set of item fields a change request may touch.
type EditableField string

const (
	FieldBasicSalary           EditableField = "basic_salary"
	FieldFixedAllowance        EditableField = "fixed_allowance"
	FieldBonus                 EditableField = "bonus"
	FieldCommissionAmount      EditableField = "commission_amount"
	FieldIncentiveAmount       EditableField = "incentive_amount"
	FieldOtherDeductions       EditableField = "other_deductions"
	FieldDeductionRemarks      EditableField = "deduction_remarks"
	FieldTradeCommissionAmount EditableField = "trade_commission_amount"
	FieldOutstationAmount      EditableField = "outstation_amount"
	FieldPCBOverride           EditableField = "pcb_override"
)

type fieldSpec struct {
	set         func(item *PayrollItem, raw json.RawMessage) error
	recalculate bool
}

var editableFields = map[EditableField]fieldSpec{
	FieldBasicSalary:           {set: amountSetter(func(i *PayrollItem) *decimal.Decimal { return &i.BasicSalary }), recalculate: true},
	FieldFixedAllowance:        {set: amountSetter(func(i *PayrollItem) *decimal.Decimal { return &i.FixedAllowance }), recalculate: true},
	FieldBonus:                 {set: amountSetter(func(i *PayrollItem) *decimal.Decimal { return &i.Bonus }), recalculate: true},
	FieldCommissionAmount:      {set: amountSetter(func(i *PayrollItem) *decimal.Decimal { return &i.CommissionAmount }), recalculate: true},
	FieldIncentiveAmount:       {set: amountSetter(func(i *PayrollItem) *decimal.Decimal { return &i.IncentiveAmount }), recalculate: true},
	FieldOtherDeductions:       {set: amountSetter(func(i *PayrollItem) *decimal.Decimal { return &i.OtherDeductions }), recalculate: true},
	FieldDeductionRemarks:      {set: setDeductionRemarks, recalculate: false},
	FieldTradeCommissionAmount: {set: amountSetter(func(i *PayrollItem) *decimal.Decimal { return &i.TradeCommissionAmount }), recalculate: true},
	FieldOutstationAmount:      {set: amountSetter(func(i *PayrollItem) *decimal.Decimal { return &i.OutstationAmount }), recalculate: true},
	FieldPCBOverride:           {set: setPCBOverride, recalculate: true},
}

// ParseEditableField rejects anything outside the allow-list, including derived fields.
func ParseEditableField(name string) (EditableField, error) {
	f := EditableField(strings.TrimSpace(name))
	if _, ok := editableFields[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrFieldNotEditable, name)
	}
	return f, nil
}

// EditableFields returns the allow-list in a stable order.
func EditableFields() []EditableField {
	return []EditableField{
		FieldBasicSalary,
		FieldFixedAllowance,
		FieldBonus,
		FieldCommissionAmount,
		FieldIncentiveAmount,
		FieldOtherDeductions,
		FieldDeductionRemarks,
		FieldTradeCommissionAmount,
		FieldOutstationAmount,
		FieldPCBOverride,
	}
}

// Set writes raw into the item field. Amounts accept a JSON number or numeric string.
func (f EditableField) Set(item *PayrollItem, raw json.RawMessage) error {
	fs, ok := editableFields[f]
	if !ok {
		return fmt.Errorf("%w: %q", ErrFieldNotEditable, string(f))
	}
	return fs.set(item, raw)
}

// Recalculates reports whether the field feeds the derived amounts.
func (f EditableField) Recalculates() bool {
	return editableFields[f].recalculate
}

func amountSetter(field func(*PayrollItem) *decimal.Decimal) func(*PayrollItem, json.RawMessage) error {
	return func(item *PayrollItem, raw json.RawMessage) error {
		v, err := parseAmount(raw)
		if err != nil {
			return err
		}
		if v == nil {
			return fmt.Errorf("%w: value is required", ErrInvalidFieldValue)
		}
		*field(item) = *v
		return nil
	}
}

// setPCBOverride accepts null to clear the override.
func setPCBOverride(item *PayrollItem, raw json.RawMessage) error {
	v, err := parseAmount(raw)
	if err != nil {
		return err
	}
	item.PCBOverride = v
	return nil
}

func setDeductionRemarks(item *PayrollItem, raw json.RawMessage) error {
	if isNull(raw) {
		item.DeductionRemarks = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("%w: remarks must be a string", ErrInvalidFieldValue)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		item.DeductionRemarks = nil
		return nil
	}
	item.DeductionRemarks = &s
	return nil
}

// parseAmount returns nil for JSON null.
func parseAmount(raw json.RawMessage) (*decimal.Decimal, error) {
	if isNull(raw) {
		return nil, nil
	}
	text := strings.Trim(string(bytes.TrimSpace(raw)), `"`)
	v, err := decimal.NewFromString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidFieldValue, text)
	}
	if v.IsNegative() {
		return nil, ErrNegativeAmount
	}
	return &v, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

package payroll

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEditableField(t *testing.T) {
	for _, f := range EditableFields() {
		got, err := ParseEditableField(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	for _, name := range []string{"net_pay", "gross_salary", "epf_employee", "total_deductions", "status", ""} {
		_, err := ParseEditableField(name)
		assert.ErrorIs(t, err, ErrFieldNotEditable, name)
	}
}

func TestEditableField_Set_Amounts(t *testing.T) {
	var item PayrollItem

	require.NoError(t, FieldBasicSalary.Set(&item, json.RawMessage(`4200.50`)))
	require.NoError(t, FieldBonus.Set(&item, json.RawMessage(`"1000"`)))
	require.NoError(t, FieldOtherDeductions.Set(&item, json.RawMessage(` 25 `)))

	assert.True(t, item.BasicSalary.Equal(decimal.RequireFromString("4200.50")))
	assert.True(t, item.Bonus.Equal(decimal.NewFromInt(1000)))
	assert.True(t, item.OtherDeductions.Equal(decimal.NewFromInt(25)))
}

func TestEditableField_Set_RejectsBadValues(t *testing.T) {
	var item PayrollItem

	assert.ErrorIs(t, FieldBasicSalary.Set(&item, json.RawMessage(`-1`)), ErrNegativeAmount)
	assert.ErrorIs(t, FieldBasicSalary.Set(&item, json.RawMessage(`"abc"`)), ErrInvalidFieldValue)
	assert.ErrorIs(t, FieldBasicSalary.Set(&item, json.RawMessage(`null`)), ErrInvalidFieldValue)
	assert.ErrorIs(t, FieldDeductionRemarks.Set(&item, json.RawMessage(`12`)), ErrInvalidFieldValue)
	assert.ErrorIs(t, EditableField("net_pay").Set(&item, json.RawMessage(`1`)), ErrFieldNotEditable)
	assert.True(t, item.BasicSalary.IsZero())
}

func TestEditableField_Set_PCBOverride(t *testing.T) {
	var item PayrollItem

	require.NoError(t, FieldPCBOverride.Set(&item, json.RawMessage(`150.25`)))
	require.NotNil(t, item.PCBOverride)
	assert.True(t, item.PCBOverride.Equal(decimal.RequireFromString("150.25")))

	require.NoError(t, FieldPCBOverride.Set(&item, json.RawMessage(`null`)))
	assert.Nil(t, item.PCBOverride)
}

func TestEditableField_Set_DeductionRemarks(t *testing.T) {
	var item PayrollItem

	require.NoError(t, FieldDeductionRemarks.Set(&item, json.RawMessage(`" salary advance "`)))
	require.NotNil(t, item.DeductionRemarks)
	assert.Equal(t, "salary advance", *item.DeductionRemarks)
	assert.False(t, FieldDeductionRemarks.Recalculates())
	assert.True(t, FieldBasicSalary.Recalculates())

	require.NoError(t, FieldDeductionRemarks.Set(&item, json.RawMessage(`null`)))
	assert.Nil(t, item.DeductionRemarks)
}

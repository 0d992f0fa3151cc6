package payroll

import (
	"errors"
	"fmt"
)

var (
	ErrPayrollSettingsNotFound = errors.New("payroll settings not found")
	ErrPayrollRunNotFound      = errors.New("payroll run not found")
	ErrPayrollRunAlreadyExists = errors.New("payroll run already exists for this period")
	ErrPayrollRunLocked        = errors.New("payroll run is locked")
	ErrPayrollItemNotFound     = errors.New("payroll item not found")
	ErrItemNotInRun            = errors.New("payroll item does not belong to this run")
	ErrInvalidPeriod           = errors.New("invalid payroll period")
	ErrEmployeeNotFound        = errors.New("employee not found")
	ErrNoActiveEmployees       = errors.New("no active employees for this payroll run")
	ErrInvalidTransition       = errors.New("invalid payroll run transition")
	ErrFieldNotEditable        = errors.New("field is not editable")
	ErrInvalidFieldValue       = errors.New("invalid field value")
	ErrNegativeAmount          = errors.New("amount must not be negative")
	ErrItemIDRequired          = errors.New("item id is required")
)

// GuardError reports a rejected run transition.
type GuardError struct {
	Transition Transition
	Guard      string
	Current    RunStatus
	Detail     string
}

func (e *GuardError) Error() string {
	msg := fmt.Sprintf("transition %s rejected by guard %s (current status %s)", e.Transition, e.Guard, e.Current)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

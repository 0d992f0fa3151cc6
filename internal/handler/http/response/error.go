package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	var guardErr *payroll.GuardError
	if errors.As(err, &guardErr) {
		TransitionRejected(w, guardErr.Error(), map[string]string{
			"transition": string(guardErr.Transition),
			"guard":      guardErr.Guard,
			"status":     string(guardErr.Current),
		})
		return
	}

	switch {
	// Auth errors
	case errors.Is(err, user.ErrInvalidToken):
		Unauthorized(w, "Invalid or missing token")
	case errors.Is(err, user.ErrCompanyIDRequired):
		Forbidden(w, "Company membership required")
	case errors.Is(err, user.ErrAdminPrivilegeRequired):
		Forbidden(w, "Admin privilege required")
	case errors.Is(err, user.ErrInsufficientPermissions):
		Forbidden(w, err.Error())

	// Employee domain errors
	case errors.Is(err, employee.ErrEmployeeNotFound), errors.Is(err, payroll.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")

	// Payroll domain errors
	case errors.Is(err, payroll.ErrPayrollRunNotFound):
		NotFound(w, "Payroll run not found")
	case errors.Is(err, payroll.ErrPayrollItemNotFound):
		NotFound(w, "Payroll item not found")
	case errors.Is(err, payroll.ErrPayrollRunAlreadyExists):
		Conflict(w, "Payroll run already exists for this period")
	case errors.Is(err, payroll.ErrPayrollRunLocked):
		Conflict(w, "Payroll run is locked")
	case errors.Is(err, payroll.ErrInvalidTransition):
		Conflict(w, err.Error())
	case errors.Is(err, payroll.ErrNoActiveEmployees):
		BadRequest(w, "No active employees for this payroll run", nil)
	case errors.Is(err, payroll.ErrInvalidPeriod),
		errors.Is(err, payroll.ErrFieldNotEditable),
		errors.Is(err, payroll.ErrInvalidFieldValue),
		errors.Is(err, payroll.ErrNegativeAmount),
		errors.Is(err, payroll.ErrItemIDRequired),
		errors.Is(err, payroll.ErrItemNotInRun):
		BadRequest(w, err.Error(), nil)

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}

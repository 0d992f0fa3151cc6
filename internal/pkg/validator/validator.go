package validator

import (
	"reflect"
	"strings"
	"sync"

	playground "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type ValidationError struct {
	Field   string
	Message string
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	var msgs []string
	for _, err := range v {
		msgs = append(msgs, err.Field+": "+err.Message)
	}
	return strings.Join(msgs, "; ")
}

func (v ValidationErrors) ToMap() map[string]string {
	result := make(map[string]string)
	for _, err := range v {
		result[err.Field] = err.Message
	}
	return result
}

var (
	structValidator     *playground.Validate
	structValidatorOnce sync.Once
)

func engine() *playground.Validate {
	structValidatorOnce.Do(func() {
		structValidator = playground.New()
		// Report fields by their JSON name
		structValidator.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return structValidator
}

// Struct validates `validate` tags on s and returns nil when everything passes.
func Struct(s interface{}) ValidationErrors {
	err := engine().Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(playground.ValidationErrors)
	if !ok {
		return ValidationErrors{{Field: "request", Message: err.Error()}}
	}

	errs := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, ValidationError{Field: fieldPath(fe), Message: message(fe)})
	}
	return errs
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe playground.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe playground.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must contain at least " + fe.Param() + " item(s)"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.Slice {
			return "must contain at most " + fe.Param() + " item(s)"
		}
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "uuid":
		return "must be a valid UUID"
	default:
		return "is invalid"
	}
}

// IsValidUUID accepts any RFC 4122 UUID in canonical form.
func IsValidUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// MinPeriodYear is the earliest payroll year accepted.
const MinPeriodYear = 2020

// IsValidPeriod checks a payroll month/year pair.
func IsValidPeriod(month, year int) bool {
	return month >= 1 && month <= 12 && year >= MinPeriodYear && year <= 9999
}

package user

import "errors"

var (
	ErrInvalidToken            = errors.New("invalid token")
	ErrAdminPrivilegeRequired  = errors.New("admin privilege required")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrCompanyIDRequired       = errors.New("company ID is required")
)

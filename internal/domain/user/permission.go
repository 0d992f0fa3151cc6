package user

type Permission string

const (
	// Payroll runs
	PermissionPayrollView    Permission = "payroll.view"
	PermissionPayrollManage  Permission = "payroll.manage"
	PermissionPayrollApprove Permission = "payroll.approve"

	// Company payroll configuration
	PermissionPayrollSettings Permission = "payroll.settings"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleOwner: {
		// Owner has all permissions
		PermissionPayrollView,
		PermissionPayrollManage,
		PermissionPayrollApprove,
		PermissionPayrollSettings,
	},
	RoleManager: {
		PermissionPayrollView,
		PermissionPayrollManage,
		PermissionPayrollApprove,
	},
	RoleEmployee: {
		// Employees read their payslips elsewhere
	},
	RolePending: {
		// Pending role has no permissions
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}

	return false
}

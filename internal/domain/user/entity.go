package user

type Role string

const (
	RoleOwner    Role = "owner"    // Company owner - full access
	RoleManager  Role = "manager"  // Prepares and approves payroll
	RoleEmployee Role = "employee" // Regular employee
	RolePending  Role = "pending"  // Still in onboarding
)

// Claims is the authenticated caller as carried by the access token.
type Claims struct {
	UserID    string
	CompanyID string
	Role      Role
	IsAdmin   bool
}

// ClaimsFromMap reads the token claims set by the jwt package.
func ClaimsFromMap(m map[string]interface{}) Claims {
	var c Claims
	c.UserID, _ = m["user_id"].(string)
	c.CompanyID, _ = m["company_id"].(string)
	role, _ := m["role"].(string)
	c.Role = Role(role)
	c.IsAdmin, _ = m["is_admin"].(bool)
	return c
}

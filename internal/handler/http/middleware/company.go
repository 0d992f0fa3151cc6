package middleware

import (
	"fmt"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
)

// RequireCompany rejects callers whose token carries no company and binds the
// caller as the payroll actor. Every payroll query is scoped by that company.
func RequireCompany(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := claimsFromRequest(r)
		if err != nil {
			response.HandleError(w, err)
			return
		}
		if c.CompanyID == "" || c.Role == user.RolePending {
			response.HandleError(w, user.ErrCompanyIDRequired)
			return
		}

		ctx := payroll.ContextWithActor(r.Context(), payroll.Actor{CompanyID: c.CompanyID, UserID: c.UserID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission checks the caller's role against the payroll permission matrix.
func RequirePermission(permission user.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := claimsFromRequest(r)
			if err != nil {
				response.HandleError(w, err)
				return
			}
			if !user.HasPermission(c.Role, permission) {
				response.HandleError(w, fmt.Errorf("%w: '%s' requires '%s'", user.ErrInsufficientPermissions, c.Role, permission))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

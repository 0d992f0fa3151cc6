package middleware

import (
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/go-chi/jwtauth/v5"
)

// claimsFromRequest returns the claims of the verified access token.
func claimsFromRequest(r *http.Request) (user.Claims, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return user.Claims{}, user.ErrInvalidToken
	}
	return user.ClaimsFromMap(claims), nil
}

// AuthRequired accepts only verified access tokens. Refresh or SSE tokens
// minted elsewhere carry a different type claim.
func AuthRequired(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())
			if err != nil {
				response.Unauthorized(w, err.Error())
				return
			}
			if token == nil {
				response.HandleError(w, user.ErrInvalidToken)
				return
			}

			if tokenType, _ := claims["type"].(string); tokenType != "access" {
				response.HandleError(w, user.ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnly guards operational endpoints such as manually triggering scheduled jobs.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := claimsFromRequest(r)
		if err != nil {
			response.HandleError(w, err)
			return
		}
		if !c.IsAdmin {
			response.HandleError(w, user.ErrAdminPrivilegeRequired)
			return
		}

		next.ServeHTTP(w, r)
	})
}

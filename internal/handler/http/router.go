package http

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

type RouterOptions struct {
	Env            string
	AllowedOrigins []string
	LogLevel       slog.Level
}

func NewRouter(JWTService jwt.Service, payrollHandler PayrollHandler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(opts.Env == "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "payroll-engine"),
		slog.String("version", "v1.0.0"),
		slog.String("env", opts.Env),
	)

	allowedOrigins := opts.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  opts.LogLevel,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {

		// EventSource cannot set headers, so the stream also accepts ?jwt=
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verify(JWTService.JWTAuth(), jwtauth.TokenFromHeader, jwtauth.TokenFromCookie, jwtauth.TokenFromQuery))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))
			r.Use(middleware.RequireCompany)
			r.Use(middleware.RequirePermission(user.PermissionPayrollView))
			r.Get("/events/payroll", payrollHandler.StreamEvents)
		})

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))

			r.Route("/admin/payroll", func(r chi.Router) {
				r.Use(middleware.AdminOnly)
				r.Post("/generate", payrollHandler.TriggerGeneration)
			})

			r.Route("/payroll", func(r chi.Router) {
				r.Use(middleware.RequireCompany)

				r.Route("/settings", func(r chi.Router) {
					r.With(middleware.RequirePermission(user.PermissionPayrollView)).Get("/", payrollHandler.GetSettings)
					r.With(middleware.RequirePermission(user.PermissionPayrollSettings)).Put("/", payrollHandler.UpdateSettings)
				})

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(user.PermissionPayrollView))
					r.Post("/statutory/preview", payrollHandler.PreviewStatutory)
					r.Post("/variance", payrollHandler.ComputeVariance)
				})

				r.Route("/runs", func(r chi.Router) {
					r.With(middleware.RequirePermission(user.PermissionPayrollView)).Get("/", payrollHandler.ListRuns)
					r.With(middleware.RequirePermission(user.PermissionPayrollManage)).Post("/", payrollHandler.GenerateRun)

					r.Route("/{id}", func(r chi.Router) {
						r.With(middleware.RequirePermission(user.PermissionPayrollView)).Get("/", payrollHandler.GetRun)
						r.With(middleware.RequirePermission(user.PermissionPayrollView)).Get("/items", payrollHandler.ListItems)
						r.With(middleware.RequirePermission(user.PermissionPayrollApprove)).Post("/transitions", payrollHandler.TransitionRun)
						r.With(middleware.RequirePermission(user.PermissionPayrollManage)).Post("/recalculate", payrollHandler.RecalculateRun)
						r.With(middleware.RequirePermission(user.PermissionPayrollManage)).Post("/changes", payrollHandler.ApplyChanges)
					})
				})

				r.With(middleware.RequirePermission(user.PermissionPayrollManage)).Post("/items/{id}/recalculate", payrollHandler.RecalculateItem)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "Route not found")
	})

	return r
}

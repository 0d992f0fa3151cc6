package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/config"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	appHTTP "github.com/cmlabs-hris/payroll-engine/internal/handler/http"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/cron"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/kafka"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/sse"
	"github.com/cmlabs-hris/payroll-engine/internal/repository/postgresql"
	payrollService "github.com/cmlabs-hris/payroll-engine/internal/service/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/service/statutory"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Payroll engine stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.SetLogLoggerLevel(cfg.LogLevel())

	db, err := database.NewPostgreSQLDB(cfg.DatabaseURL(), database.PoolConfig{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	calculator := statutory.NewDefaultCalculator()
	if cfg.Payroll.StatutoryTablesPath != "" {
		tables, err := statutory.LoadTables(cfg.Payroll.StatutoryTablesPath)
		if err != nil {
			return fmt.Errorf("loading statutory tables: %w", err)
		}
		if calculator, err = statutory.NewCalculator(tables); err != nil {
			return fmt.Errorf("statutory tables: %w", err)
		}
		slog.Info("Loaded statutory tables", "path", cfg.Payroll.StatutoryTablesPath)
	}

	hub := sse.NewHub()

	var publisher payroll.EventPublisher
	if cfg.Kafka.Brokers != "" {
		writer := kafka.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.WriteTimeout)
		defer func() {
			if err := writer.Close(); err != nil {
				slog.Warn("Failed to close kafka writer", "error", err)
			}
		}()
		publisher = kafka.NewKafkaEventPublisher(writer, cfg.Kafka.Topic)
		slog.Info("Publishing payroll events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	} else {
		publisher = kafka.NewNoopEventPublisher()
	}
	publisher = payroll.FanOut(publisher, sse.NewEventPublisher(hub))

	// Repositories
	txManager := postgresql.NewTxManager(db)
	payrollRepo := postgresql.NewPayrollRepository(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)
	auditRepo := postgresql.NewAuditRepository(db)
	attendanceRepo := postgresql.NewAttendanceRepository(db)
	leaveRepo := postgresql.NewLeaveRequestRepository(db)

	// Services
	payrollSvc := payrollService.NewPayrollService(
		txManager,
		payrollRepo,
		employeeRepo,
		auditRepo,
		publisher,
		calculator,
		payrollService.WithDefaultVarianceThreshold(cfg.Payroll.DefaultVarianceThreshold),
		payrollService.WithWorkers(cfg.Payroll.Workers),
		payrollService.WithAttendance(attendanceRepo),
		payrollService.WithLeave(leaveRepo),
	)

	// Scheduled jobs
	scheduler := cron.NewScheduler(cfg.Payroll.CronTimeout)
	payrollJobs := cron.NewPayrollJobs(payrollRepo, payrollSvc, cfg.Payroll.AutoGenerateDay, cfg.Payroll.CronInterval)
	payrollJobs.RegisterJobs(scheduler)
	scheduler.Start()
	defer scheduler.Stop()

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpirationTime)
	payrollHandler := appHTTP.NewPayrollHandler(payrollSvc, payrollJobs, hub)

	router := appHTTP.NewRouter(JWTService, payrollHandler, appHTTP.RouterOptions{
		Env:            cfg.App.Env,
		AllowedOrigins: cfg.App.AllowedOrigins,
		LogLevel:       cfg.LogLevel(),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server running", "addr", server.Addr, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		slog.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Payroll  PayrollConfig
	Kafka    KafkaConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret                    string
	AccessTokenExpirationTime string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

// PayrollConfig holds payroll engine configuration
type PayrollConfig struct {
	// Applied to companies without stored settings.
	DefaultVarianceThreshold decimal.Decimal
	// Optional YAML file overriding the built-in statutory tables.
	StatutoryTablesPath string
	AutoGenerateDay     int
	CronInterval        time.Duration
	CronTimeout         time.Duration
	Workers             int
}

// KafkaConfig holds the lifecycle event publisher configuration. Publishing is
// disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers      string
	Topic        string
	WriteTimeout time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file loaded, using environment", "error", err)
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	maxConns, err := strconv.Atoi(getEnv("DB_MAX_CONNS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	minConns, err := strconv.Atoi(getEnv("DB_MIN_CONNS", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}
	maxConnLifetime, err := time.ParseDuration(getEnv("DB_MAX_CONN_LIFETIME", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONN_LIFETIME: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            dbPort,
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		Name:            getEnv("DB_NAME", "payroll"),
		SSLMode:         getEnv("DB_SSL_MODE", "disable"),
		MaxConns:        int32(maxConns),
		MinConns:        int32(minConns),
		MaxConnLifetime: maxConnLifetime,
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS"),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:                    getEnv("JWT_SECRET_KEY", ""),
		AccessTokenExpirationTime: getEnv("JWT_ACCESS_TOKEN_EXPIRATION", "1h"),
	}

	// Payroll configuration
	threshold, err := decimal.NewFromString(getEnv("PAYROLL_VARIANCE_THRESHOLD", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_VARIANCE_THRESHOLD: %w", err)
	}
	generateDay, err := strconv.Atoi(getEnv("PAYROLL_AUTO_GENERATE_DAY", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_AUTO_GENERATE_DAY: %w", err)
	}
	cronInterval, err := time.ParseDuration(getEnv("PAYROLL_CRON_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_CRON_INTERVAL: %w", err)
	}
	cronTimeout, err := time.ParseDuration(getEnv("PAYROLL_CRON_TIMEOUT", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_CRON_TIMEOUT: %w", err)
	}
	workers, err := strconv.Atoi(getEnv("PAYROLL_WORKERS", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_WORKERS: %w", err)
	}

	config.Payroll = PayrollConfig{
		DefaultVarianceThreshold: threshold,
		StatutoryTablesPath:      getEnv("PAYROLL_STATUTORY_TABLES", ""),
		AutoGenerateDay:          generateDay,
		CronInterval:             cronInterval,
		CronTimeout:              cronTimeout,
		Workers:                  workers,
	}

	// Kafka configuration
	kafkaTimeout, err := time.ParseDuration(getEnv("KAFKA_WRITE_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid KAFKA_WRITE_TIMEOUT: %w", err)
	}

	config.Kafka = KafkaConfig{
		Brokers:      getEnv("KAFKA_BROKERS", ""),
		Topic:        getEnv("KAFKA_PAYROLL_TOPIC", "payroll.run.status_changed"),
		WriteTimeout: kafkaTimeout,
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Password == "" {
		errs = append(errs, fmt.Errorf("DB_PASSWORD is required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, fmt.Errorf("JWT_SECRET_KEY is required"))
	}
	if c.Payroll.DefaultVarianceThreshold.IsNegative() {
		errs = append(errs, fmt.Errorf("PAYROLL_VARIANCE_THRESHOLD must be non-negative"))
	}
	if c.Payroll.AutoGenerateDay < 1 || c.Payroll.AutoGenerateDay > 28 {
		errs = append(errs, fmt.Errorf("PAYROLL_AUTO_GENERATE_DAY must be between 1 and 28"))
	}
	if c.Payroll.Workers < 1 {
		errs = append(errs, fmt.Errorf("PAYROLL_WORKERS must be positive"))
	}
	if c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, fmt.Errorf("DB_MIN_CONNS must not exceed DB_MAX_CONNS"))
	}
	return errors.Join(errs...)
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// LogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.App.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

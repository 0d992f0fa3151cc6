package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// TestDatabaseSetup holds a connection to a database with the payroll schema applied.
type TestDatabaseSetup struct {
	DB *database.DB
}

// NewTestDatabase connects to TEST_DATABASE_URL and applies the migrations.
// The test is skipped when the variable is unset.
func NewTestDatabase(t *testing.T) *TestDatabaseSetup {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.NewPostgreSQLDB(dsn, database.PoolConfig{MaxConns: 4})
	require.NoError(t, err, "failed to connect to test database")
	t.Cleanup(db.Close)

	setup := &TestDatabaseSetup{DB: db}
	require.NoError(t, setup.migrate(context.Background()))
	return setup
}

func (s *TestDatabaseSetup) migrate(ctx context.Context) error {
	_, file, _, _ := runtime.Caller(0)
	path := filepath.Join(filepath.Dir(file), "..", "..", "..", "..", "migrations", "0001_payroll.sql")

	schema, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read migration: %w", err)
	}
	if _, err := s.DB.Exec(ctx, string(schema)); err != nil {
		return fmt.Errorf("failed to apply migration: %w", err)
	}
	return nil
}

// NewCompany returns a fresh company ID so tests never share rows.
func (s *TestDatabaseSetup) NewCompany(t *testing.T) string {
	t.Helper()
	companyID := uuid.NewString()
	t.Cleanup(func() {
		ctx := context.Background()
		for _, table := range []string{"claims", "payroll_items", "payroll_runs", "payroll_settings", "attendances", "leave_requests", "leave_types", "audit_trails", "employees"} {
			_, _ = s.DB.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE company_id = $1", table), companyID)
		}
	})
	return companyID
}

// InsertEmployee creates an active employee and returns its ID.
func (s *TestDatabaseSetup) InsertEmployee(t *testing.T, companyID, code string, basic decimal.Decimal) string {
	t.Helper()
	var id string
	err := s.DB.QueryRow(context.Background(), `
		INSERT INTO employees (company_id, employee_code, full_name, dob, hire_date, base_salary)
		VALUES ($1, $2, $3, '1990-01-01', '2020-01-01', $4)
		RETURNING id
	`, companyID, code, "Employee "+code, basic).Scan(&id)
	require.NoError(t, err)
	return id
}

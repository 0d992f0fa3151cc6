package payroll

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RunStatusUpdate records a status change and the metadata of the transition.
type RunStatusUpdate struct {
	RunID        string
	From         RunStatus
	To           RunStatus
	Actor        *string
	Reason       *string
	ApprovalType *ApprovalType
	At           time.Time
}

// PayrollRepository defines data access methods for payroll.
// All methods include companyID parameter to prevent cross-company data access attacks.
type PayrollRepository interface {
	// Settings
	GetSettings(ctx context.Context, companyID string) (PayrollSettings, error)
	UpsertSettings(ctx context.Context, settings PayrollSettings) (PayrollSettings, error)
	ListAutoGenerateCompanyIDs(ctx context.Context) ([]string, error)

	// Runs
	CreateRun(ctx context.Context, run PayrollRun) (PayrollRun, error)
	GetRunByID(ctx context.Context, id string, companyID string) (PayrollRun, error)
	GetRunByIDForUpdate(ctx context.Context, id string, companyID string) (PayrollRun, error)
	GetRunByPeriod(ctx context.Context, companyID string, departmentID *string, month, year int) (PayrollRun, error)
	ListRuns(ctx context.Context, companyID string, filter RunFilter) ([]PayrollRun, int64, error)
	UpdateRunStatus(ctx context.Context, companyID string, update RunStatusUpdate) error
	UpdateRunVariance(ctx context.Context, runID string, companyID string, variance Variance) error
	RefreshRunTotals(ctx context.Context, runID string, companyID string) (RunTotals, error)

	// Items
	CreateItems(ctx context.Context, items []PayrollItem) error
	GetItemByID(ctx context.Context, id string, companyID string) (PayrollItem, error)
	ListItemsByRun(ctx context.Context, runID string, companyID string) ([]PayrollItem, error)
	UpdateItemInputs(ctx context.Context, companyID string, item PayrollItem) error
	UpdateItemDerived(ctx context.Context, itemID string, companyID string, derived Derived) error
	GetYearToDate(ctx context.Context, companyID string, employeeID string, year, beforeMonth int) (YearToDate, error)

	// Claims
	GetUnlinkedClaimTotals(ctx context.Context, companyID string, employeeIDs []string, until time.Time) (map[string]decimal.Decimal, error)
	LinkClaims(ctx context.Context, companyID string, runID string, employeeIDs []string, until time.Time) (int64, error)
}

package payroll

import "context"

type PayrollService interface {
	// Settings
	GetSettings(ctx context.Context) (PayrollSettingsResponse, error)
	UpdateSettings(ctx context.Context, req UpdatePayrollSettingsRequest) (PayrollSettingsResponse, error)

	// Statutory
	PreviewStatutory(ctx context.Context, req StatutoryPreviewRequest) (StatutoryPreviewResponse, error)

	// Runs
	GenerateRun(ctx context.Context, req GenerateRunRequest) (PayrollRunResponse, error)
	GetRun(ctx context.Context, id string) (PayrollRunResponse, error)
	ListRuns(ctx context.Context, filter RunFilter) (ListPayrollRunResponse, error)
	ListItems(ctx context.Context, runID string) ([]PayrollItemResponse, error)
	TransitionRun(ctx context.Context, req TransitionRequest) (TransitionResult, error)

	// Computation
	RecalculateItem(ctx context.Context, itemID string) (ItemResult, error)
	RecalculateRun(ctx context.Context, runID string) (RecalculateRunResponse, error)
	ComputeVariance(ctx context.Context, req VarianceRequest) (Variance, error)
	ApplyChanges(ctx context.Context, req ApplyChangesRequest) (ApplyResult, error)
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/sse"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const handlerTestSecret = "test-secret-key-for-jwt"

type mockPayrollService struct {
	mock.Mock
}

func (m *mockPayrollService) GetSettings(ctx context.Context) (payroll.PayrollSettingsResponse, error) {
	args := m.Called(ctx)
	return args.Get(0).(payroll.PayrollSettingsResponse), args.Error(1)
}

func (m *mockPayrollService) UpdateSettings(ctx context.Context, req payroll.UpdatePayrollSettingsRequest) (payroll.PayrollSettingsResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payroll.PayrollSettingsResponse), args.Error(1)
}

func (m *mockPayrollService) PreviewStatutory(ctx context.Context, req payroll.StatutoryPreviewRequest) (payroll.StatutoryPreviewResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payroll.StatutoryPreviewResponse), args.Error(1)
}

func (m *mockPayrollService) GenerateRun(ctx context.Context, req payroll.GenerateRunRequest) (payroll.PayrollRunResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payroll.PayrollRunResponse), args.Error(1)
}

func (m *mockPayrollService) GetRun(ctx context.Context, id string) (payroll.PayrollRunResponse, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(payroll.PayrollRunResponse), args.Error(1)
}

func (m *mockPayrollService) ListRuns(ctx context.Context, filter payroll.RunFilter) (payroll.ListPayrollRunResponse, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(payroll.ListPayrollRunResponse), args.Error(1)
}

func (m *mockPayrollService) ListItems(ctx context.Context, runID string) ([]payroll.PayrollItemResponse, error) {
	args := m.Called(ctx, runID)
	return args.Get(0).([]payroll.PayrollItemResponse), args.Error(1)
}

func (m *mockPayrollService) TransitionRun(ctx context.Context, req payroll.TransitionRequest) (payroll.TransitionResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payroll.TransitionResult), args.Error(1)
}

func (m *mockPayrollService) RecalculateItem(ctx context.Context, itemID string) (payroll.ItemResult, error) {
	args := m.Called(ctx, itemID)
	return args.Get(0).(payroll.ItemResult), args.Error(1)
}

func (m *mockPayrollService) RecalculateRun(ctx context.Context, runID string) (payroll.RecalculateRunResponse, error) {
	args := m.Called(ctx, runID)
	return args.Get(0).(payroll.RecalculateRunResponse), args.Error(1)
}

func (m *mockPayrollService) ComputeVariance(ctx context.Context, req payroll.VarianceRequest) (payroll.Variance, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payroll.Variance), args.Error(1)
}

func (m *mockPayrollService) ApplyChanges(ctx context.Context, req payroll.ApplyChangesRequest) (payroll.ApplyResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payroll.ApplyResult), args.Error(1)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateForPeriod(ctx context.Context, month, year int) error {
	return m.Called(ctx, month, year).Error(0)
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
	Meta *struct {
		Page       int   `json:"page"`
		Limit      int   `json:"limit"`
		TotalItems int64 `json:"total_items"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
}

type handlerEnv struct {
	router    *chi.Mux
	svc       *mockPayrollService
	generator *mockGenerator
	jwt       jwt.Service
	hub       *sse.Hub
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	svc := &mockPayrollService{}
	gen := &mockGenerator{}
	hub := sse.NewHub()
	jwtService := jwt.NewJWTService(handlerTestSecret, "1h")
	router := NewRouter(jwtService, NewPayrollHandler(svc, gen, hub), RouterOptions{Env: "test", LogLevel: slog.LevelError})

	t.Cleanup(func() {
		svc.AssertExpectations(t)
		gen.AssertExpectations(t)
	})
	return &handlerEnv{router: router, svc: svc, generator: gen, jwt: jwtService, hub: hub}
}

func (e *handlerEnv) token(t *testing.T, companyID string, role user.Role) string {
	t.Helper()
	token, _, err := e.jwt.GenerateAccessToken("user-1", companyID, role)
	require.NoError(t, err)
	return token
}

func (e *handlerEnv) adminToken(t *testing.T) string {
	t.Helper()
	_, token, err := e.jwt.JWTAuth().Encode(map[string]interface{}{
		"user_id":  "admin-1",
		"role":     string(user.RoleOwner),
		"is_admin": true,
		"type":     "access",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	return token
}

func (e *handlerEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var env testEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestPayrollHandler_Authorization(t *testing.T) {
	env := newHandlerEnv(t)

	t.Run("missing token", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodGet, "/api/v1/payroll/runs/run-1", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token signed with another key", func(t *testing.T) {
		other := jwt.NewJWTService("someone-else", "1h")
		token, _, err := other.GenerateAccessToken("user-1", "company-1", user.RoleOwner)
		require.NoError(t, err)

		rec, _ := env.do(t, http.MethodGet, "/api/v1/payroll/runs/run-1", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("no company", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodGet, "/api/v1/payroll/runs/run-1", env.token(t, "", user.RoleOwner), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("employee cannot view payroll", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodGet, "/api/v1/payroll/runs/run-1", env.token(t, "company-1", user.RoleEmployee), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("manager cannot change settings", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodPut, "/api/v1/payroll/settings", env.token(t, "company-1", user.RoleManager), map[string]any{})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("trigger requires admin", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodPost, "/api/v1/admin/payroll/generate", env.token(t, "company-1", user.RoleOwner),
			map[string]int{"period_month": 3, "period_year": 2025})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestPayrollHandler_GetRun(t *testing.T) {
	env := newHandlerEnv(t)
	env.svc.On("GetRun", mock.Anything, "run-1").
		Return(payroll.PayrollRunResponse{ID: "run-1", Status: "auto_approved", TotalNet: decimal.NewFromInt(10700)}, nil).Once()
	env.svc.On("GetRun", mock.Anything, "missing").
		Return(payroll.PayrollRunResponse{}, payroll.ErrPayrollRunNotFound).Once()

	token := env.token(t, "company-1", user.RoleManager)

	rec, body := env.do(t, http.MethodGet, "/api/v1/payroll/runs/run-1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var run payroll.PayrollRunResponse
	require.NoError(t, json.Unmarshal(body.Data, &run))
	assert.Equal(t, "auto_approved", run.Status)
	assert.True(t, decimal.NewFromInt(10700).Equal(run.TotalNet))

	rec, body = env.do(t, http.MethodGet, "/api/v1/payroll/runs/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestPayrollHandler_ListRunsFilterAndMeta(t *testing.T) {
	env := newHandlerEnv(t)
	env.svc.On("ListRuns", mock.Anything, mock.MatchedBy(func(f payroll.RunFilter) bool {
		return f.Page == 2 && f.Limit == 10 &&
			f.PeriodYear != nil && *f.PeriodYear == 2025 &&
			f.Status != nil && *f.Status == "locked"
	})).Return(payroll.ListPayrollRunResponse{
		Data:       []payroll.PayrollRunResponse{{ID: "run-1"}},
		TotalCount: 21,
		Page:       2,
		Limit:      10,
	}, nil).Once()

	rec, body := env.do(t, http.MethodGet, "/api/v1/payroll/runs?page=2&limit=10&period_year=2025&status=locked",
		env.token(t, "company-1", user.RoleOwner), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, body.Meta)
	assert.Equal(t, 3, body.Meta.TotalPages)
	assert.Equal(t, int64(21), body.Meta.TotalItems)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/payroll/runs?period_month=march", env.token(t, "company-1", user.RoleOwner), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPayrollHandler_GenerateRun(t *testing.T) {
	env := newHandlerEnv(t)
	env.svc.On("GenerateRun", mock.Anything, payroll.GenerateRunRequest{PeriodMonth: 3, PeriodYear: 2025}).
		Return(payroll.PayrollRunResponse{ID: "run-1", Status: "auto_generated"}, nil).Once()
	env.svc.On("GenerateRun", mock.Anything, payroll.GenerateRunRequest{PeriodMonth: 4, PeriodYear: 2025}).
		Return(payroll.PayrollRunResponse{}, payroll.ErrPayrollRunAlreadyExists).Once()

	token := env.token(t, "company-1", user.RoleManager)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/payroll/runs", token, map[string]int{"period_month": 3, "period_year": 2025})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, body := env.do(t, http.MethodPost, "/api/v1/payroll/runs", token, map[string]int{"period_month": 4, "period_year": 2025})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", body.Error.Code)
}

func TestPayrollHandler_TransitionRun(t *testing.T) {
	env := newHandlerEnv(t)
	token := env.token(t, "company-1", user.RoleOwner)

	t.Run("applied", func(t *testing.T) {
		env.svc.On("TransitionRun", mock.Anything, payroll.TransitionRequest{RunID: "run-1", Transition: "lock"}).
			Return(payroll.TransitionResult{RunID: "run-1", Success: true, PreviousStatus: "approved", NewStatus: "locked"}, nil).Once()

		rec, body := env.do(t, http.MethodPost, "/api/v1/payroll/runs/run-1/transitions", token, map[string]string{"transition": "lock"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, body.Success)
	})

	t.Run("rejected by variance guard", func(t *testing.T) {
		env.svc.On("TransitionRun", mock.Anything, payroll.TransitionRequest{RunID: "run-2", Transition: "auto_approve"}).
			Return(payroll.TransitionResult{
				RunID:           "run-2",
				PreviousStatus:  "auto_generated",
				Guard:           payroll.GuardVarianceThreshold,
				RejectionReason: "variance 7.00% exceeds threshold 5.00%",
			}, nil).Once()

		rec, body := env.do(t, http.MethodPost, "/api/v1/payroll/runs/run-2/transitions", token, map[string]string{"transition": "auto_approve"})
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "TRANSITION_REJECTED", body.Error.Code)
		assert.Contains(t, body.Error.Message, "7.00%")

		var result payroll.TransitionResult
		require.NoError(t, json.Unmarshal(body.Data, &result))
		assert.Equal(t, "auto_generated", result.PreviousStatus)
	})

	t.Run("guard error", func(t *testing.T) {
		env.svc.On("TransitionRun", mock.Anything, payroll.TransitionRequest{RunID: "run-3", Transition: "edit"}).
			Return(payroll.TransitionResult{}, &payroll.GuardError{
				Transition: payroll.TransitionEdit,
				Guard:      payroll.GuardReasonRequired,
				Current:    payroll.RunStatusApproved,
			}).Once()

		rec, body := env.do(t, http.MethodPost, "/api/v1/payroll/runs/run-3/transitions", token, map[string]string{"transition": "edit"})
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "TRANSITION_REJECTED", body.Error.Code)
		assert.Equal(t, "edit", body.Error.Details["transition"])
	})
}

func TestPayrollHandler_ApplyChanges(t *testing.T) {
	env := newHandlerEnv(t)
	token := env.token(t, "company-1", user.RoleManager)

	env.svc.On("ApplyChanges", mock.Anything, mock.MatchedBy(func(req payroll.ApplyChangesRequest) bool {
		return req.RunID == "run-1" && len(req.Changes) == 2 && req.Changes[0].Field == "bonus"
	})).Return(payroll.ApplyResult{
		RunID:    "run-1",
		Status:   "edited",
		Applied:  1,
		Rejected: 1,
		Results: []payroll.ChangeResult{
			{Index: 0, ItemID: "item-1", Field: "bonus", Success: true},
			{Index: 1, ItemID: "item-9", Field: "bonus", Reason: "payroll item not found"},
		},
	}, nil).Once()

	rec, body := env.do(t, http.MethodPost, "/api/v1/payroll/runs/run-1/changes", token, map[string]any{
		"reason": "March bonus",
		"changes": []map[string]any{
			{"item_id": "item-1", "field": "bonus", "value": 500},
			{"item_id": "item-9", "field": "bonus", "value": "250.00"},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var result payroll.ApplyResult
	require.NoError(t, json.Unmarshal(body.Data, &result))
	assert.Equal(t, 1, result.Rejected)
	assert.Equal(t, "edited", result.Status)
}

func TestPayrollHandler_ValidationErrors(t *testing.T) {
	env := newHandlerEnv(t)
	env.svc.On("PreviewStatutory", mock.Anything, mock.Anything).
		Return(payroll.StatutoryPreviewResponse{}, (&payroll.StatutoryPreviewRequest{PeriodMonth: 13}).Validate()).Once()

	token := env.token(t, "company-1", user.RoleManager)

	rec, body := env.do(t, http.MethodPost, "/api/v1/payroll/statutory/preview", token, map[string]int{"period_month": 13})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body.Error.Details, "period_month")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/variance", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPayrollHandler_RecalculateItem(t *testing.T) {
	env := newHandlerEnv(t)
	token := env.token(t, "company-1", user.RoleManager)

	env.svc.On("RecalculateItem", mock.Anything, "item-1").
		Return(payroll.ItemResult{ItemID: "item-1", Success: true}, nil).Once()
	env.svc.On("RecalculateItem", mock.Anything, "item-2").
		Return(payroll.ItemResult{ItemID: "item-2", Reason: payroll.ErrPayrollRunLocked.Error()}, nil).Once()

	rec, _ := env.do(t, http.MethodPost, "/api/v1/payroll/items/item-1/recalculate", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := env.do(t, http.MethodPost, "/api/v1/payroll/items/item-2/recalculate", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "RECALCULATION_REJECTED", body.Error.Code)
}

func TestPayrollHandler_TriggerGeneration(t *testing.T) {
	env := newHandlerEnv(t)
	env.generator.On("GenerateForPeriod", mock.Anything, 3, 2025).Return(nil).Once()
	env.generator.On("GenerateForPeriod", mock.Anything, 4, 2025).Return(errors.New("database unavailable")).Once()

	admin := env.adminToken(t)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/admin/payroll/generate", admin, map[string]int{"period_month": 3, "period_year": 2025})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/admin/payroll/generate", admin, map[string]int{"period_month": 4, "period_year": 2025})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/admin/payroll/generate", admin, map[string]int{"period_month": 0, "period_year": 2025})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

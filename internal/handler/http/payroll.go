package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/sse"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
)

type PayrollHandler interface {
	// Settings
	GetSettings(w http.ResponseWriter, r *http.Request)
	UpdateSettings(w http.ResponseWriter, r *http.Request)

	// Statutory
	PreviewStatutory(w http.ResponseWriter, r *http.Request)
	ComputeVariance(w http.ResponseWriter, r *http.Request)

	// Runs
	GenerateRun(w http.ResponseWriter, r *http.Request)
	GetRun(w http.ResponseWriter, r *http.Request)
	ListRuns(w http.ResponseWriter, r *http.Request)
	ListItems(w http.ResponseWriter, r *http.Request)
	TransitionRun(w http.ResponseWriter, r *http.Request)
	RecalculateRun(w http.ResponseWriter, r *http.Request)
	ApplyChanges(w http.ResponseWriter, r *http.Request)

	// Items
	RecalculateItem(w http.ResponseWriter, r *http.Request)

	// Jobs
	TriggerGeneration(w http.ResponseWriter, r *http.Request)

	// SSE
	StreamEvents(w http.ResponseWriter, r *http.Request)
}

// PeriodGenerator runs the scheduled generation for an explicit period.
type PeriodGenerator interface {
	GenerateForPeriod(ctx context.Context, month, year int) error
}

type payrollHandlerImpl struct {
	payrollService payroll.PayrollService
	generator      PeriodGenerator
	hub            *sse.Hub
}

func NewPayrollHandler(payrollService payroll.PayrollService, generator PeriodGenerator, hub *sse.Hub) PayrollHandler {
	return &payrollHandlerImpl{payrollService: payrollService, generator: generator, hub: hub}
}

// ========== SETTINGS ==========

func (h *payrollHandlerImpl) GetSettings(w http.ResponseWriter, r *http.Request) {
	result, err := h.payrollService.GetSettings(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req payroll.UpdatePayrollSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.UpdateSettings(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll settings updated", result)
}

// ========== STATUTORY ==========

func (h *payrollHandlerImpl) PreviewStatutory(w http.ResponseWriter, r *http.Request) {
	var req payroll.StatutoryPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.PreviewStatutory(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ComputeVariance(w http.ResponseWriter, r *http.Request) {
	var req payroll.VarianceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.ComputeVariance(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== RUNS ==========

func (h *payrollHandlerImpl) GenerateRun(w http.ResponseWriter, r *http.Request) {
	var req payroll.GenerateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.GenerateRun(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Payroll run generated", result)
}

func (h *payrollHandlerImpl) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Run ID is required", nil)
		return
	}

	result, err := h.payrollService.GetRun(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := payroll.RunFilter{
		Page:  1,
		Limit: 20,
	}

	query := r.URL.Query()
	if pageStr := query.Get("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			filter.Page = page
		}
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if monthStr := query.Get("period_month"); monthStr != "" {
		month, err := strconv.Atoi(monthStr)
		if err != nil {
			response.BadRequest(w, "Invalid period_month", nil)
			return
		}
		filter.PeriodMonth = &month
	}
	if yearStr := query.Get("period_year"); yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			response.BadRequest(w, "Invalid period_year", nil)
			return
		}
		filter.PeriodYear = &year
	}
	if status := query.Get("status"); status != "" {
		filter.Status = &status
	}
	if departmentID := query.Get("department_id"); departmentID != "" {
		filter.DepartmentID = &departmentID
	}

	result, err := h.payrollService.ListRuns(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	totalPages := 0
	if result.Limit > 0 {
		totalPages = int((result.TotalCount + int64(result.Limit) - 1) / int64(result.Limit))
	}
	response.SuccessWithMeta(w, result.Data, &response.Meta{
		Page:       result.Page,
		Limit:      result.Limit,
		TotalItems: result.TotalCount,
		TotalPages: totalPages,
	})
}

func (h *payrollHandlerImpl) ListItems(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Run ID is required", nil)
		return
	}

	result, err := h.payrollService.ListItems(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// TransitionRun answers 409 with the result when a guard refuses the transition.
func (h *payrollHandlerImpl) TransitionRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Run ID is required", nil)
		return
	}

	var req payroll.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.RunID = id

	result, err := h.payrollService.TransitionRun(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if !result.Success {
		response.Rejected(w, "TRANSITION_REJECTED", result.RejectionReason, result)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) RecalculateRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Run ID is required", nil)
		return
	}

	result, err := h.payrollService.RecalculateRun(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ApplyChanges reports per-change outcomes; rejected changes do not fail the request.
func (h *payrollHandlerImpl) ApplyChanges(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Run ID is required", nil)
		return
	}

	var req payroll.ApplyChangesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.RunID = id

	result, err := h.payrollService.ApplyChanges(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== ITEMS ==========

func (h *payrollHandlerImpl) RecalculateItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Item ID is required", nil)
		return
	}

	result, err := h.payrollService.RecalculateItem(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if !result.Success {
		response.Rejected(w, "RECALCULATION_REJECTED", result.Reason, result)
		return
	}

	response.Success(w, result)
}

// ========== JOBS ==========

type triggerGenerationRequest struct {
	PeriodMonth int `json:"period_month"`
	PeriodYear  int `json:"period_year"`
}

func (h *payrollHandlerImpl) TriggerGeneration(w http.ResponseWriter, r *http.Request) {
	var req triggerGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	if !validator.IsValidPeriod(req.PeriodMonth, req.PeriodYear) {
		response.ValidationError(w, map[string]string{
			"period": "period_month must be 1-12 and period_year at least 2020",
		})
		return
	}

	if err := h.generator.GenerateForPeriod(r.Context(), req.PeriodMonth, req.PeriodYear); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll generation completed", nil)
}

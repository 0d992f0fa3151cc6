package response

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
)

// Response is the envelope of every API response.
type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
	Meta    *Meta        `json:"meta,omitempty"`
}

type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

type Meta struct {
	Page       int   `json:"page,omitempty"`
	Limit      int   `json:"limit,omitempty"`
	TotalItems int64 `json:"total_items,omitempty"`
	TotalPages int   `json:"total_pages,omitempty"`
}

// writeJSON encodes before writing the header so an encoding failure can
// still be reported as a 500.
func writeJSON(w http.ResponseWriter, statusCode int, payload Response) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
		buf.Reset()
		statusCode = http.StatusInternalServerError
		_ = json.NewEncoder(&buf).Encode(Response{
			Error: &ErrorDetail{Code: "ENCODING_ERROR", Message: "Failed to encode response"},
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

func ok(w http.ResponseWriter, statusCode int, message string, data interface{}, meta *Meta) {
	writeJSON(w, statusCode, Response{Success: true, Message: message, Data: data, Meta: meta})
}

func fail(w http.ResponseWriter, statusCode int, code, message string, details map[string]string, data interface{}) {
	writeJSON(w, statusCode, Response{
		Data:  data,
		Error: &ErrorDetail{Code: code, Message: message, Details: details},
	})
}

// Success responses

func Success(w http.ResponseWriter, data interface{}) {
	ok(w, http.StatusOK, "", data, nil)
}

func SuccessWithMessage(w http.ResponseWriter, message string, data interface{}) {
	ok(w, http.StatusOK, message, data, nil)
}

func Created(w http.ResponseWriter, message string, data interface{}) {
	ok(w, http.StatusCreated, message, data, nil)
}

func SuccessWithMeta(w http.ResponseWriter, data interface{}, meta *Meta) {
	ok(w, http.StatusOK, "", data, meta)
}

// Error responses

func BadRequest(w http.ResponseWriter, message string, details map[string]string) {
	fail(w, http.StatusBadRequest, "BAD_REQUEST", message, details, nil)
}

func ValidationError(w http.ResponseWriter, details map[string]string) {
	fail(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", details, nil)
}

func Unauthorized(w http.ResponseWriter, message string) {
	fail(w, http.StatusUnauthorized, "UNAUTHORIZED", message, nil, nil)
}

func Forbidden(w http.ResponseWriter, message string) {
	fail(w, http.StatusForbidden, "FORBIDDEN", message, nil, nil)
}

func NotFound(w http.ResponseWriter, message string) {
	fail(w, http.StatusNotFound, "NOT_FOUND", message, nil, nil)
}

func Conflict(w http.ResponseWriter, message string) {
	fail(w, http.StatusConflict, "CONFLICT", message, nil, nil)
}

func InternalServerError(w http.ResponseWriter, message string) {
	fail(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", message, nil, nil)
}

// TransitionRejected reports a run transition refused by a state guard.
func TransitionRejected(w http.ResponseWriter, message string, details map[string]string) {
	fail(w, http.StatusConflict, "TRANSITION_REJECTED", message, details, nil)
}

// Rejected writes a conflict that still carries the operation result.
func Rejected(w http.ResponseWriter, code string, message string, data interface{}) {
	fail(w, http.StatusConflict, code, message, nil, data)
}

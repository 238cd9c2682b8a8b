package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"autoshutdown/internal/types"
)

// maxRequestBodySize caps request bodies. Command payloads are tiny.
const maxRequestBodySize = 4 << 10

// APIResponse is the envelope for successful responses.
type APIResponse struct {
	Data any `json:"data,omitempty"`
}

// APIErrorResponse is the envelope for error responses.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned to clients.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// JSON writes data with the given status. A marshal failure becomes a 500.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorEnvelope(r, types.ErrCodeInternalUnexpected, "failed to marshal response", nil))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes err as an APIErrorResponse. Only *types.AppError code, message
// and details reach the client; anything else is reported as a bare 500.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		JSON(w, r, http.StatusInternalServerError,
			errorEnvelope(r, types.ErrCodeInternalUnexpected, "an unexpected error occurred", nil))
		return
	}
	JSON(w, r, appErr.HTTPStatus(), errorEnvelope(r, appErr.Code, appErr.Message, appErr.Details))
}

func errorEnvelope(r *http.Request, code types.ErrorCode, message string, details map[string]any) APIErrorResponse {
	return APIErrorResponse{Error: ErrorDetail{
		Code:      string(code),
		Message:   message,
		Details:   details,
		RequestID: types.GetRequestID(r.Context()),
	}}
}

// DecodeJSON reads exactly one JSON object from the body into dst. Unknown
// fields, trailing data, empty and oversized bodies are all
// ErrCodeValidationInvalidJSON.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}
	if dec.More() {
		return invalidJSON("request body must contain a single JSON object", nil)
	}
	return nil
}

func mapDecodeError(err error) *types.AppError {
	var (
		maxBytesErr *http.MaxBytesError
		syntaxErr   *json.SyntaxError
		typeErr     *json.UnmarshalTypeError
	)

	switch {
	case errors.As(err, &maxBytesErr):
		return invalidJSON("request body too large", err)
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return invalidJSON("malformed JSON in request body", err)
	case errors.As(err, &typeErr):
		return invalidJSON("invalid value for field", err).WithDetails(map[string]any{
			"field":    typeErr.Field,
			"expected": typeErr.Type.String(),
		})
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return invalidJSON("unknown field in request body: "+strings.TrimPrefix(err.Error(), "json: unknown field "), err)
	case errors.Is(err, io.EOF):
		return invalidJSON("request body must not be empty", err)
	default:
		return invalidJSON("invalid JSON in request body", err)
	}
}

func invalidJSON(message string, err error) *types.AppError {
	return types.NewAppError(types.ErrCodeValidationInvalidJSON, message, err)
}

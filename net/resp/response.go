package resp

import (
	"encoding/json"
	"net/http"

	"github.com/ncobase/jobpanel/ecode"
)

// Exception represents the response structure.
type Exception struct {
	Status  int    `json:"status,omitempty"`  // HTTP status
	Code    int    `json:"code,omitempty"`    // Business code
	Message string `json:"message,omitempty"` // Message
	Errors  any    `json:"errors,omitempty"`  // Validation errors
	Data    any    `json:"data,omitempty"`    // Response data
}

// Error implements error so an Exception can travel through error returns.
func (e *Exception) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ecode.Text(e.Code)
}

// newException creates a failure exception.
func newException(status, code int, message string, errs ...any) *Exception {
	if message == "" {
		message = ecode.Text(code)
	}
	e := &Exception{Status: status, Code: code, Message: message}
	if len(errs) > 0 {
		e.Errors = errs[0]
	}
	return e
}

// BadRequest returns a 400 exception.
func BadRequest(message string, errs ...any) *Exception {
	return newException(http.StatusBadRequest, ecode.ParamErr, message, errs...)
}

// InternalServer returns a 500 exception.
func InternalServer(message string, errs ...any) *Exception {
	return newException(http.StatusInternalServerError, ecode.ServerErr, message, errs...)
}

// FromCode builds an exception from a business code, using its registered
// message and HTTP status.
func FromCode(code int, message ...string) *Exception {
	msg := ""
	if len(message) > 0 {
		msg = message[0]
	}
	return newException(ecode.ToHTTPStatus(code), code, msg)
}

// Success handles success responses.
func Success(w http.ResponseWriter, data ...any) {
	WithStatusCode(w, http.StatusOK, data...)
}

// WithStatusCode handles success responses with custom status code.
func WithStatusCode(w http.ResponseWriter, statusCode int, data ...any) {
	var message string
	var responseData any

	if len(data) > 0 {
		responseData = data[0]
		if strData, ok := responseData.(string); ok {
			message = strData
			responseData = nil
		}
	}

	if statusCode < 200 || statusCode >= 400 {
		Fail(w, newException(statusCode, ecode.RequestErr, message, responseData))
		return
	}

	if responseData != nil {
		writeJSON(w, statusCode, responseData)
		return
	}

	if message == "" {
		message = "ok"
	}
	writeJSON(w, statusCode, map[string]any{"message": message})
}

// Fail handles failure responses.
func Fail(w http.ResponseWriter, r *Exception) {
	if r == nil {
		r = &Exception{
			Status:  http.StatusInternalServerError,
			Code:    ecode.ServerErr,
			Message: ecode.Text(ecode.ServerErr),
		}
	}
	statusCode, result := buildFailureResponse(r)
	writeJSON(w, statusCode, result)
}

// buildFailureResponse builds the failure response.
func buildFailureResponse(r *Exception) (int, *Exception) {
	status := http.StatusBadRequest
	code := ecode.RequestErr
	message := ecode.Text(code)

	if r.Status != 0 {
		status = r.Status
	}
	if r.Code != 0 {
		code = r.Code
	}
	if r.Message != "" {
		message = r.Message
	}

	return status, &Exception{
		Code:    code,
		Message: message,
		Errors:  r.Errors,
	}
}

// writeJSON writes res as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, res any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		http.Error(w, "Failed to encode JSON response", http.StatusInternalServerError)
	}
}

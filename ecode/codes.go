package ecode

import "net/http"

// Common codes
const (
	OK                 = 0
	RequestErr         = -400
	ParamErr           = -401
	NotFound           = -404
	ServerErr          = -500
	ServiceUnavailable = -503
	Deadline           = -504
)

// Job codes
const (
	QueueFull   = -1001
	JobNotFound = -1002
)

var (
	texts = map[int]string{
		OK:                 "ok",
		RequestErr:         "Invalid request",
		ParamErr:           "Invalid parameters",
		NotFound:           "Resource not found",
		ServerErr:          "Internal server error",
		ServiceUnavailable: "Service unavailable",
		Deadline:           "Deadline exceeded",
		QueueFull:          "Job queue is full",
		JobNotFound:        "Job does not exist",
	}
	statuses = map[int]int{
		OK:                 http.StatusOK,
		RequestErr:         http.StatusBadRequest,
		ParamErr:           http.StatusBadRequest,
		NotFound:           http.StatusNotFound,
		ServerErr:          http.StatusInternalServerError,
		ServiceUnavailable: http.StatusServiceUnavailable,
		Deadline:           http.StatusGatewayTimeout,
		QueueFull:          http.StatusServiceUnavailable,
		JobNotFound:        http.StatusNotFound,
	}
)

// Text returns the message for a code, or the server error message if the
// code is unknown.
func Text(code int) string {
	if t, ok := texts[code]; ok {
		return t
	}
	return texts[ServerErr]
}

// ToHTTPStatus maps a business code to an HTTP status.
func ToHTTPStatus(code int) int {
	if s, ok := statuses[code]; ok {
		return s
	}
	if code < 0 {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

package dto

import "net/http"

// Standardized error codes returned by the API
const (
	// ErrCodeInternal indicates an unexpected server error
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeBadRequest indicates a malformed request
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput indicates semantically invalid input
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeNotFound indicates a missing resource
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeConflict indicates a state conflict
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeInvalidState indicates a business rule violation
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeUnauthorized indicates a failed authenticity check
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeUpstream indicates a marketplace platform failure
	ErrCodeUpstream = "ERR_UPSTREAM"
	// ErrCodeRateLimited indicates the caller is being throttled
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeConflict:     http.StatusConflict,
	ErrCodeInvalidState: http.StatusUnprocessableEntity,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeUpstream:     http.StatusBadGateway,
	ErrCodeRateLimited:  http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code, defaulting
// to 500 for unknown codes
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// legacyErrorCodeMapping maps domain error codes to standardized API codes
var legacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":     ErrCodeNotFound,
	"INVALID_INPUT": ErrCodeInvalidInput,
	"INVALID_STATE": ErrCodeInvalidState,
	"CONFLICT":      ErrCodeConflict,
	"UNAUTHORIZED":  ErrCodeUnauthorized,
	"UPSTREAM":      ErrCodeUpstream,
}

// NormalizeErrorCode converts a domain error code to the standardized
// format, returning unknown codes as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := legacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}

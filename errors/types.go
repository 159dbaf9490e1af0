package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Project errors
	ErrCodeProjectNotFound ErrorCode = "PROJECT_NOT_FOUND"
	ErrCodeNotBmadProject  ErrorCode = "NOT_A_BMAD_PROJECT"
	ErrCodeInvalidPath     ErrorCode = "INVALID_PATH"
	ErrCodeAlreadyExists   ErrorCode = "ALREADY_EXISTS"
	ErrCodeCreateFailed    ErrorCode = "CREATE_FAILED"

	// Manifest errors
	ErrCodeParseError ErrorCode = "PARSE_ERROR"
	ErrCodeSaveError  ErrorCode = "SAVE_ERROR"

	// Story errors
	ErrCodeStoryNotFound ErrorCode = "STORY_NOT_FOUND"

	// Assistant dispatch errors
	ErrCodeLaunchFailed ErrorCode = "LAUNCH_FAILED"
	ErrCodeSendFailed   ErrorCode = "SEND_FAILED"
	ErrCodeNotAvailable ErrorCode = "NOT_AVAILABLE"

	// General errors
	ErrCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// httpStatus maps error codes to HTTP status codes for the request gateway.
var httpStatus = map[ErrorCode]int{
	ErrCodeProjectNotFound:  http.StatusNotFound,
	ErrCodeNotBmadProject:   http.StatusBadRequest,
	ErrCodeInvalidPath:      http.StatusBadRequest,
	ErrCodeAlreadyExists:    http.StatusBadRequest,
	ErrCodeCreateFailed:     http.StatusInternalServerError,
	ErrCodeParseError:       http.StatusInternalServerError,
	ErrCodeSaveError:        http.StatusInternalServerError,
	ErrCodeStoryNotFound:    http.StatusNotFound,
	ErrCodeLaunchFailed:     http.StatusInternalServerError,
	ErrCodeSendFailed:       http.StatusBadGateway,
	ErrCodeNotAvailable:     http.StatusServiceUnavailable,
	ErrCodeInvalidRequest:   http.StatusBadRequest,
	ErrCodePermissionDenied: http.StatusForbidden,
	ErrCodeInternal:         http.StatusInternalServerError,
}

// DashError represents a structured error with context
type DashError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *DashError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *DashError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *DashError) WithDetail(key string, value interface{}) *DashError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// HTTPStatus returns the HTTP status code associated with the error code.
func (e *DashError) HTTPStatus() int {
	if status, ok := httpStatus[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ToJSON converts the error to JSON
func (e *DashError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new DashError
func New(code ErrorCode, message string) *DashError {
	return &DashError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a DashError
func Wrap(err error, code ErrorCode, message string) *DashError {
	return &DashError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific DashError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	dashErr, ok := err.(*DashError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	return dashErr.Code == code
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	dashErr, ok := err.(*DashError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return dashErr.Code
}

// AsDash converts any error to a DashError, wrapping unknown errors as internal.
func AsDash(err error) *DashError {
	if err == nil {
		return nil
	}
	if dashErr, ok := err.(*DashError); ok {
		return dashErr
	}
	return Wrap(err, ErrCodeInternal, err.Error())
}

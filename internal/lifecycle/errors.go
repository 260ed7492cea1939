package lifecycle

import (
	"errors"
	"fmt"
)

// Code classifies lifecycle failures.
type Code string

// Error codes.
const (
	CodePermissionDenied        Code = "PERMISSION_DENIED"
	CodeDeviceBusy              Code = "DEVICE_BUSY"
	CodeInvalidDeviceIdentifier Code = "INVALID_DEVICE_IDENTIFIER"
	CodePrepareFailed           Code = "PREPARE_FAILED"
	CodeHardwareError           Code = "HARDWARE_ERROR"
)

// Error is a failure of one lifecycle stage.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a lifecycle error.
func NewError(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// HasCode reports whether err is a lifecycle error with code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the first lifecycle error in err's chain.
func CodeOf(err error) Code {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Code
	}
	return ""
}

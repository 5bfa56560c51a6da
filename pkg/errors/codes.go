package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique identifier for specific error conditions in Vigil.
type ErrorCode int

const (
	ErrCodeUnknown       ErrorCode = 1000
	ErrCodeConfigInvalid ErrorCode = 1001

	// Login
	ErrCodeAuthFailed      ErrorCode = 2001
	ErrCodeAttemptInFlight ErrorCode = 2002

	// Session setup
	ErrCodeInboxOpen     ErrorCode = 3001
	ErrCodeEnvironment   ErrorCode = 3002
	ErrCodeDisplayServer ErrorCode = 3003
	ErrCodeDesktop       ErrorCode = 3004
	ErrCodeNotSupported  ErrorCode = 3005
	ErrCodeHandleLogout  ErrorCode = 3006

	// Handshake
	ErrCodeProtocol         ErrorCode = 4001
	ErrCodeTimeout          ErrorCode = 4002
	ErrCodePermissionDenied ErrorCode = 4003
	ErrCodeSocketInUse      ErrorCode = 4004
)

// VigilError is a custom error type that provides structured error information,
// including an error code, the operation being performed, and the underlying cause.
type VigilError struct {
	// Code is the specific error code.
	Code ErrorCode
	// Msg is a human-readable description of the error.
	Msg string
	// Operation describes the action being performed when the error occurred.
	Operation string
	// Err is the underlying error that caused this error, if any.
	Err error
}

// Error returns a formatted string representation of the error.
func (e *VigilError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %s (cause: %v)", e.Code, e.Operation, e.Msg, e.Err)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Code, e.Operation, e.Msg)
}

// Unwrap returns the underlying error.
func (e *VigilError) Unwrap() error {
	return e.Err
}

// New creates a new VigilError with the specified code, operation, message, and underlying error.
func New(code ErrorCode, op, msg string, err error) error {
	return &VigilError{
		Code:      code,
		Msg:       msg,
		Operation: op,
		Err:       err,
	}
}

// CodeOf returns the code of the outermost VigilError in err's chain,
// or ErrCodeUnknown if there is none.
func CodeOf(err error) ErrorCode {
	var ve *VigilError
	if stderrors.As(err, &ve) {
		return ve.Code
	}
	return ErrCodeUnknown
}

// HasCode reports whether any VigilError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var ve *VigilError
		if !stderrors.As(err, &ve) {
			return false
		}
		if ve.Code == code {
			return true
		}
		err = ve.Err
	}
	return false
}

// Personal.AI order the ending

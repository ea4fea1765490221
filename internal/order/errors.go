package order

import "net/http"

type ErrorCode string

const (
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeOrderNotFound     ErrorCode = "ORDER_NOT_FOUND"
	ErrCodeLineNotFound      ErrorCode = "LINE_NOT_FOUND"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeUnderpaidClose    ErrorCode = "UNDERPAID_CLOSE"
	ErrCodeVoidExceedsRemain ErrorCode = "VOID_EXCEEDS_REMAINING"
)

// Error carries enough state (current status, balance, etc. in Details) for
// the caller's UI to explain the failure without a second round-trip.
type Error struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Details    map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code ErrorCode, message string, status int, details map[string]any) *Error {
	return &Error{Code: code, Message: message, StatusCode: status, Details: details}
}

func validationError(message string) *Error {
	return newError(ErrCodeValidation, message, http.StatusBadRequest, nil)
}

// invalidTransition reports the current status so the caller can re-check
// state before retrying. These are never retried automatically.
func invalidTransition(message string, current OrderStatus) *Error {
	return newError(ErrCodeInvalidTransition, message, http.StatusConflict, map[string]any{
		"currentStatus": string(current),
	})
}

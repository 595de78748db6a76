package errors

import "fmt"

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

var (
	ErrConfigInvalid = &AppError{Code: "CONFIG_001", Message: "invalid configuration"}

	ErrNoRecipient = &AppError{Code: "NOTIFY_001", Message: "no recipient phone number resolvable"}
	ErrSendFailed  = &AppError{Code: "NOTIFY_002", Message: "notification send failed"}

	ErrMalformedState = &AppError{Code: "STORE_001", Message: "malformed persisted state"}

	ErrAccountExists     = &AppError{Code: "AUTH_001", Message: "account already exists for this caretaker phone"}
	ErrBadCredentials    = &AppError{Code: "AUTH_002", Message: "incorrect phone number or password"}
	ErrFaceNotRecognized = &AppError{Code: "AUTH_003", Message: "face not recognized"}
	ErrWeakPassword      = &AppError{Code: "AUTH_004", Message: "password does not meet requirements"}
	ErrUnauthorized      = &AppError{Code: "AUTH_005", Message: "unauthorized"}

	ErrInvalidSchedule = &AppError{Code: "MED_001", Message: "invalid medicine schedule"}
	ErrInvalidMedicine = &AppError{Code: "MED_002", Message: "invalid medicine definition"}

	ErrNoActiveReminder = &AppError{Code: "REM_001", Message: "no reminder is currently showing"}

	ErrNotFound   = &AppError{Code: "GEN_001", Message: "resource not found"}
	ErrBadRequest = &AppError{Code: "GEN_002", Message: "bad request"}
	ErrInternal   = &AppError{Code: "GEN_003", Message: "internal error"}
)

func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

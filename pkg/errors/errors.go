package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Domain errors
var (
	ErrValidation               = errors.New("validation failed")
	ErrNoEligibleRecords        = errors.New("no eligible records")
	ErrDuplicatePeriod          = errors.New("payment already exists for period")
	ErrReconciliationInProgress = errors.New("reconciliation in progress")
	ErrInvalidTransition        = errors.New("invalid workflow transition")
	ErrCommitFailed             = errors.New("reconciliation commit failed")
	ErrRecordNotEligible        = errors.New("record is no longer eligible for payment")
	ErrPaymentNotFound          = errors.New("payment not found")
	ErrRecordNotFound           = errors.New("catch record not found")
	ErrSessionNotFound          = errors.New("reconciliation session not found")
	ErrForbidden                = errors.New("caller may not manage payments")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidation               = "VALIDATION_ERROR"
	ErrCodeNoEligibleRecords        = "NO_ELIGIBLE_RECORDS"
	ErrCodeDuplicatePeriod          = "DUPLICATE_PERIOD"
	ErrCodeReconciliationInProgress = "RECONCILIATION_IN_PROGRESS"
	ErrCodeInvalidTransition        = "INVALID_TRANSITION"
	ErrCodeCommitFailed             = "COMMIT_FAILED"
	ErrCodePaymentNotFound          = "PAYMENT_NOT_FOUND"
	ErrCodeRecordNotFound           = "RECORD_NOT_FOUND"
	ErrCodeSessionNotFound          = "SESSION_NOT_FOUND"
	ErrCodeForbidden                = "FORBIDDEN"
	ErrCodeDatabaseError            = "DATABASE_ERROR"
	ErrCodeCacheError               = "CACHE_ERROR"
)

// Wrap common errors with business context
func WrapValidation(format string, args ...any) *BusinessError {
	return NewBusinessError(
		ErrCodeValidation,
		fmt.Sprintf(format, args...),
		ErrValidation,
	)
}

func WrapNoEligibleRecords(fisherID string) *BusinessError {
	return NewBusinessError(
		ErrCodeNoEligibleRecords,
		fmt.Sprintf("Fisher %s has no verified, unpaid records in the selected period", fisherID),
		ErrNoEligibleRecords,
	)
}

// WrapDuplicatePeriod names the month already paid, e.g. "January 2024".
func WrapDuplicatePeriod(fisherID string, periodStart time.Time) *BusinessError {
	return NewBusinessError(
		ErrCodeDuplicatePeriod,
		fmt.Sprintf("Fisher %s has already been paid for %s", fisherID, periodStart.Format("January 2006")),
		ErrDuplicatePeriod,
	)
}

func WrapReconciliationInProgress(fisherID, periodKey string) *BusinessError {
	return NewBusinessError(
		ErrCodeReconciliationInProgress,
		fmt.Sprintf("Another reconciliation for fisher %s, period %s is in progress; retry shortly", fisherID, periodKey),
		ErrReconciliationInProgress,
	)
}

func WrapInvalidTransition(from, action string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidTransition,
		fmt.Sprintf("Cannot %s while session is %s", action, from),
		ErrInvalidTransition,
	)
}

func WrapCommitFailed(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCommitFailed,
		"reconciliation was rolled back; no payment was recorded, retry is safe",
		err,
	)
}

func WrapPaymentNotFound(paymentID string) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentNotFound,
		fmt.Sprintf("Payment with ID %s not found", paymentID),
		ErrPaymentNotFound,
	)
}

func WrapRecordNotFound(recordID string) *BusinessError {
	return NewBusinessError(
		ErrCodeRecordNotFound,
		fmt.Sprintf("Catch record with ID %s not found", recordID),
		ErrRecordNotFound,
	)
}

func WrapSessionNotFound(sessionID string) *BusinessError {
	return NewBusinessError(
		ErrCodeSessionNotFound,
		fmt.Sprintf("Reconciliation session %s not found or expired", sessionID),
		ErrSessionNotFound,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}

// Code returns the business code carried by err, or "" when there is none.
func Code(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// HTTPStatus maps an error to the status code the API reports it with.
func HTTPStatus(err error) int {
	switch Code(err) {
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeNoEligibleRecords:
		return http.StatusUnprocessableEntity
	case ErrCodeDuplicatePeriod, ErrCodeReconciliationInProgress, ErrCodeInvalidTransition:
		return http.StatusConflict
	case ErrCodePaymentNotFound, ErrCodeRecordNotFound, ErrCodeSessionNotFound:
		return http.StatusNotFound
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeDatabaseError, ErrCodeCacheError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the operator may safely retry the operation.
func Retryable(err error) bool {
	switch Code(err) {
	case ErrCodeCommitFailed, ErrCodeReconciliationInProgress, ErrCodeDatabaseError, ErrCodeCacheError:
		return true
	}
	return false
}

// Message returns the operator-facing message for err.
func Message(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Message
	}
	return strings.TrimSpace(err.Error())
}

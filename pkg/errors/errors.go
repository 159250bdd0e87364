package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrDocumentUnavailable = errors.New("document is not available")
	ErrIneligible          = errors.New("member is not eligible for a new loan")
	ErrAlreadyReturned     = errors.New("loan is already closed")
	ErrLoanNotRenewable    = errors.New("loan cannot be renewed")
	ErrTransientStore      = errors.New("transient store failure")
	ErrNotificationFailure = errors.New("notification failed")
	ErrDatabase            = errors.New("database operation failed")
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
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeDocumentUnavailable = "DOCUMENT_UNAVAILABLE"
	ErrCodeAlreadyReturned     = "ALREADY_RETURNED"
	ErrCodeLoanNotRenewable    = "LOAN_NOT_RENEWABLE"
	ErrCodeTransientStore      = "TRANSIENT_STORE_ERROR"
	ErrCodeNotificationFailure = "NOTIFICATION_FAILURE"
	ErrCodeDatabaseError       = "DATABASE_ERROR"
)

// IneligibleReason tells why a member was refused a loan.
type IneligibleReason string

const (
	ReasonNoActiveSubscription IneligibleReason = "NO_ACTIVE_SUBSCRIPTION"
	ReasonLoanQuotaReached     IneligibleReason = "LOAN_QUOTA_REACHED"
	ReasonHasOverdueLoans      IneligibleReason = "HAS_OVERDUE_LOANS"
)

// IneligibleError carries the reason on top of ErrIneligible so callers can
// switch on it with errors.As.
type IneligibleError struct {
	Reason   IneligibleReason
	MemberID string
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("%s: member %s (%s)", ErrIneligible.Error(), e.MemberID, e.Reason)
}

func (e *IneligibleError) Unwrap() error {
	return ErrIneligible
}

// Wrap common errors with business context
func WrapNotFound(entity, id string) *BusinessError {
	return NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("%s with ID %s not found", entity, id),
		ErrNotFound,
	)
}

func WrapValidation(message string, err error) *BusinessError {
	if err == nil {
		err = ErrValidation
	} else {
		err = fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return NewBusinessError(ErrCodeValidation, message, err)
}

func WrapDocumentUnavailable(documentID string) *BusinessError {
	return NewBusinessError(
		ErrCodeDocumentUnavailable,
		fmt.Sprintf("Document with ID %s is not available", documentID),
		ErrDocumentUnavailable,
	)
}

func WrapIneligible(reason IneligibleReason, memberID string) *BusinessError {
	return NewBusinessError(
		"INELIGIBLE_"+string(reason),
		fmt.Sprintf("Member with ID %s is not eligible for a new loan", memberID),
		&IneligibleError{Reason: reason, MemberID: memberID},
	)
}

func WrapAlreadyReturned(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeAlreadyReturned,
		fmt.Sprintf("Loan with ID %s is already closed", loanID),
		ErrAlreadyReturned,
	)
}

func WrapLoanNotRenewable(loanID, why string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotRenewable,
		fmt.Sprintf("Loan with ID %s cannot be renewed: %s", loanID, why),
		ErrLoanNotRenewable,
	)
}

func WrapTransient(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeTransientStore,
		"store conflict, safe to retry",
		fmt.Errorf("%w: %w", ErrTransientStore, err),
	)
}

func WrapNotificationFailure(kind string, err error) *BusinessError {
	return NewBusinessError(
		ErrCodeNotificationFailure,
		fmt.Sprintf("sending %s failed", kind),
		fmt.Errorf("%w: %w", ErrNotificationFailure, err),
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		fmt.Errorf("%w: %w", ErrDatabase, err),
	)
}

// Code returns the code of the outermost BusinessError in err's chain, or "".
func Code(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// ReasonOf returns the ineligibility reason carried by err, if any.
func ReasonOf(err error) (IneligibleReason, bool) {
	var ie *IneligibleError
	if errors.As(err, &ie) {
		return ie.Reason, true
	}
	return "", false
}

// IsTransient reports whether err is safe to retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientStore)
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle state of a loan
type LoanStatus string

const (
	LoanStatusActive       LoanStatus = "ACTIVE"
	LoanStatusReturned     LoanStatus = "RETURNED"
	LoanStatusReturnedLate LoanStatus = "RETURNED_LATE"
	LoanStatusOverdue      LoanStatus = "OVERDUE"
	LoanStatusLost         LoanStatus = "LOST"
)

// OpenLoanStatuses are the states in which the document is out on loan
var OpenLoanStatuses = []LoanStatus{LoanStatusActive, LoanStatusOverdue}

// IsOpen reports whether the loan still holds its document
func (s LoanStatus) IsOpen() bool {
	return s == LoanStatusActive || s == LoanStatusOverdue
}

// IsTerminal reports whether no further transition is allowed
func (s LoanStatus) IsTerminal() bool {
	return s == LoanStatusReturned || s == LoanStatusReturnedLate || s == LoanStatusLost
}

func (s LoanStatus) Valid() bool {
	return s.IsOpen() || s.IsTerminal()
}

// Loan represents a loan entity
type Loan struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	DocumentID uuid.UUID  `json:"document_id" db:"document_id"`
	MemberID   uuid.UUID  `json:"member_id" db:"member_id"`
	LoanDate   time.Time  `json:"loan_date" db:"loan_date"`
	DueDate    time.Time  `json:"due_date" db:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty" db:"return_date"`
	Extended   bool       `json:"extended" db:"extended"`
	Status     LoanStatus `json:"status" db:"status"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// LoanPatch carries the loan fields the service may rewrite outside of a status
// transition.
type LoanPatch struct {
	DueDate  *time.Time `json:"due_date"`
	Extended *bool      `json:"extended"`
}

// Fields returns the provided fields keyed by column name
func (p LoanPatch) Fields() map[string]interface{} {
	fields := map[string]interface{}{}
	setTime(fields, "due_date", p.DueDate)
	setBool(fields, "extended", p.Extended)
	return fields
}

// LoanFilter narrows FindAll on loans
type LoanFilter struct {
	MemberID   *uuid.UUID
	DocumentID *uuid.UUID
	Statuses   []LoanStatus
	DueBefore  *time.Time
	Limit      int
	Offset     int
}

// LoanStats are the per-member counters read by the eligibility check
type LoanStats struct {
	Open    int `json:"open" db:"open"`
	Overdue int `json:"overdue" db:"overdue"`
}

// DTOs for requests and responses

type CreateLoanRequest struct {
	DocumentID uuid.UUID `json:"document_id" validate:"required"`
	MemberID   uuid.UUID `json:"member_id" validate:"required"`
}

type ReturnResult struct {
	Loan *Loan `json:"loan"`
	Late bool  `json:"late"`
	Fine *Fine `json:"fine,omitempty"`
}

// SweepReport summarises one overdue sweep
type SweepReport struct {
	Scanned      int `json:"scanned"`
	Transitioned int `json:"transitioned"`
	Notified     int `json:"notified"`
	Failed       int `json:"failed"`
}

// NoticeReport summarises one subscription-expiry notice run
type NoticeReport struct {
	Scanned  int `json:"scanned"`
	Notified int `json:"notified"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

type EligibilityResponse struct {
	MemberID         uuid.UUID       `json:"member_id"`
	Eligible         bool            `json:"eligible"`
	Reason           string          `json:"reason,omitempty"`
	Stats            LoanStats       `json:"stats"`
	OutstandingFines decimal.Decimal `json:"outstanding_fines"`
}

type OverdueNotice struct {
	LoanID     uuid.UUID       `json:"loan_id"`
	DaysLate   int             `json:"days_late"`
	FeePreview decimal.Decimal `json:"fee_preview"`
}

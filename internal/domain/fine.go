package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type FineReason string

const (
	FineReasonLate   FineReason = "LATE"
	FineReasonDamage FineReason = "DAMAGE"
	FineReasonLost   FineReason = "LOST"
)

// Fine is a penalty recorded against a loan. There is at most one per
// (loan, reason); settlement happens outside this service.
type Fine struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	MemberID       uuid.UUID       `json:"member_id" db:"member_id"`
	LoanID         uuid.UUID       `json:"loan_id" db:"loan_id"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Reason         FineReason      `json:"reason" db:"reason"`
	IssueDate      time.Time       `json:"issue_date" db:"issue_date"`
	Settled        bool            `json:"settled" db:"settled"`
	SettlementDate *time.Time      `json:"settlement_date,omitempty" db:"settlement_date"`
}

type FineFilter struct {
	MemberID *uuid.UUID
	LoanID   *uuid.UUID
	Settled  *bool
	Limit    int
	Offset   int
}

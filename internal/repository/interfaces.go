package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/mediatheque/internal/domain"
)

// DocumentRepository defines the interface for document data operations
type DocumentRepository interface {
	// FindByID retrieves a document, NotFound when absent
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Document, error)

	// FindAll lists documents matching the filter together with the unpaginated total
	FindAll(ctx context.Context, filter domain.DocumentFilter) ([]*domain.Document, int, error)

	// Create inserts a new document
	Create(ctx context.Context, doc *domain.Document) error

	// Update applies the provided fields and returns the stored document
	Update(ctx context.Context, id uuid.UUID, patch domain.DocumentPatch) (*domain.Document, error)

	// Delete removes a document that was never loaned
	Delete(ctx context.Context, id uuid.UUID) error

	// MarkUnavailable flips available to false only if it is currently true.
	// Reports whether a row changed.
	MarkUnavailable(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkAvailable sets available back to true
	MarkAvailable(ctx context.Context, id uuid.UUID) error
}

// MemberRepository defines the interface for member data operations
type MemberRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Member, error)

	// FindByIDForUpdate locks the member row until the surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Member, error)

	FindAll(ctx context.Context, filter domain.MemberFilter) ([]*domain.Member, int, error)
	Create(ctx context.Context, member *domain.Member) error
	Update(ctx context.Context, id uuid.UUID, patch domain.MemberPatch) (*domain.Member, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// FindByIDForUpdate locks the loan row until the surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	FindAll(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, int, error)

	// FindOverdue returns open loans whose due date is before now, oldest first
	FindOverdue(ctx context.Context, now time.Time) ([]*domain.Loan, error)

	// Create inserts a new loan. A second open loan on the same document is
	// rejected with DocumentUnavailable.
	Create(ctx context.Context, loan *domain.Loan) error

	Update(ctx context.Context, id uuid.UUID, patch domain.LoanPatch) (*domain.Loan, error)

	// TransitionStatus moves the loan to `to` only while its status is one of
	// `from`. Reports whether a row changed.
	TransitionStatus(ctx context.Context, id uuid.UUID, from []domain.LoanStatus, to domain.LoanStatus, returnDate *time.Time) (bool, error)

	// StatsByMember counts the member's open and overdue loans
	StatsByMember(ctx context.Context, memberID uuid.UUID) (domain.LoanStats, error)
}

// FineRepository defines the interface for fine data operations
type FineRepository interface {
	// Upsert creates the fine for (loan, reason) or replaces its amount. A
	// settled fine is left untouched and returned as stored.
	Upsert(ctx context.Context, fine *domain.Fine) (*domain.Fine, error)

	FindAll(ctx context.Context, filter domain.FineFilter) ([]*domain.Fine, int, error)

	// OutstandingTotal sums the unsettled fines of a member
	OutstandingTotal(ctx context.Context, memberID uuid.UUID) (decimal.Decimal, error)
}

package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/mediatheque/internal/domain"
)

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) CreateLoan(ctx context.Context, documentID, memberID uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, documentID, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanService) ReturnLoan(ctx context.Context, loanID uuid.UUID) (*domain.ReturnResult, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReturnResult), args.Error(1)
}

func (m *MockLoanService) RenewLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanService) DeclareLost(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanService) RestoreDocument(ctx context.Context, documentID uuid.UUID) (*domain.Document, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockLoanService) GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanService) ListLoans(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.Loan), args.Int(1), args.Error(2)
}

func (m *MockLoanService) OverdueSweep(ctx context.Context) (domain.SweepReport, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.SweepReport), args.Error(1)
}

func (m *MockLoanService) NotifyExpiringSubscriptions(ctx context.Context) (domain.NoticeReport, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.NoticeReport), args.Error(1)
}

func (m *MockLoanService) CheckEligibility(ctx context.Context, memberID uuid.UUID) (*domain.EligibilityResponse, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EligibilityResponse), args.Error(1)
}

func (m *MockLoanService) ListFines(ctx context.Context, memberID uuid.UUID, filter domain.FineFilter) ([]*domain.Fine, int, error) {
	args := m.Called(ctx, memberID, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.Fine), args.Int(1), args.Error(2)
}

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) CreateDocument(ctx context.Context, req *domain.CreateDocumentRequest) (*domain.Document, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockCatalogService) GetDocument(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockCatalogService) ListDocuments(ctx context.Context, filter domain.DocumentFilter) ([]*domain.Document, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.Document), args.Int(1), args.Error(2)
}

func (m *MockCatalogService) UpdateDocument(ctx context.Context, id uuid.UUID, patch domain.DocumentPatch) (*domain.Document, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockCatalogService) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCatalogService) CreateMember(ctx context.Context, req *domain.CreateMemberRequest) (*domain.Member, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Member), args.Error(1)
}

func (m *MockCatalogService) GetMember(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Member), args.Error(1)
}

func (m *MockCatalogService) ListMembers(ctx context.Context, filter domain.MemberFilter) ([]*domain.Member, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.Member), args.Int(1), args.Error(2)
}

func (m *MockCatalogService) UpdateMember(ctx context.Context, id uuid.UUID, patch domain.MemberPatch) (*domain.Member, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Member), args.Error(1)
}

func (m *MockCatalogService) DeleteMember(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

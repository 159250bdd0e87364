package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/mediatheque/internal/notification"
)

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) SendLoanConfirmation(ctx context.Context, to notification.Contact, loanID uuid.UUID, dueDate time.Time) error {
	args := m.Called(ctx, to, loanID, dueDate)
	return args.Error(0)
}

func (m *MockDispatcher) SendReturnConfirmation(ctx context.Context, to notification.Contact, loanID uuid.UUID, wasLate bool) error {
	args := m.Called(ctx, to, loanID, wasLate)
	return args.Error(0)
}

func (m *MockDispatcher) SendOverdueReminder(ctx context.Context, to notification.Contact, loanID uuid.UUID, daysLate int, feePreview decimal.Decimal) error {
	args := m.Called(ctx, to, loanID, daysLate, feePreview)
	return args.Error(0)
}

func (m *MockDispatcher) SendSubscriptionExpiryNotice(ctx context.Context, to notification.Contact, endDate time.Time) error {
	args := m.Called(ctx, to, endDate)
	return args.Error(0)
}

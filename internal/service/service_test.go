package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/mediatheque/internal/domain"
	"github.com/segyhp/mediatheque/internal/logging"
	"github.com/segyhp/mediatheque/internal/mocks"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type testDeps struct {
	documents *mocks.MockDocumentRepository
	members   *mocks.MockMemberRepository
	loans     *mocks.MockLoanRepository
	fines     *mocks.MockFineRepository
	tx        *mocks.Transactor
	notifier  *mocks.MockDispatcher
}

func (d *testDeps) assertExpectations(t *testing.T) {
	d.documents.AssertExpectations(t)
	d.members.AssertExpectations(t)
	d.loans.AssertExpectations(t)
	d.fines.AssertExpectations(t)
	d.notifier.AssertExpectations(t)
}

var testPolicy = Policy{
	LoanDurationDays:       21,
	MaxConcurrentLoans:     5,
	LateFeePerDay:          decimal.RequireFromString("0.20"),
	LostFee:                decimal.RequireFromString("25.00"),
	SubscriptionNoticeDays: 7,
	NotificationTimeout:    time.Second,
}

func newTestService(now time.Time) (*LoanService, *testDeps) {
	deps := &testDeps{
		documents: &mocks.MockDocumentRepository{},
		members:   &mocks.MockMemberRepository{},
		loans:     &mocks.MockLoanRepository{},
		fines:     &mocks.MockFineRepository{},
		tx:        &mocks.Transactor{},
		notifier:  &mocks.MockDispatcher{},
	}

	svc := NewLoanService(
		Repositories{
			Documents: deps.documents,
			Members:   deps.members,
			Loans:     deps.loans,
			Fines:     deps.fines,
		},
		deps.tx,
		deps.notifier,
		testPolicy,
		logging.Discard(),
		WithClock(fixedClock{now: now}),
	)

	return svc, deps
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 10, 0, 0, 0, time.UTC)
}

func activeMember() *domain.Member {
	return &domain.Member{
		ID:                 uuid.New(),
		FirstName:          "Jeanne",
		LastName:           "Martin",
		Email:              "jeanne@example.org",
		SubscriptionActive: true,
		SubscriptionType:   domain.SubscriptionAnnual,
	}
}

func availableDocument() *domain.Document {
	return &domain.Document{
		ID:        uuid.New(),
		Title:     "Le Petit Prince",
		ShelfMark: "R SAI",
		Available: true,
	}
}

func decimalEq(expected string) func(decimal.Decimal) bool {
	want := decimal.RequireFromString(expected)
	return func(d decimal.Decimal) bool { return d.Equal(want) }
}

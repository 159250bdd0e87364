package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/mediatheque/internal/domain"
	"github.com/segyhp/mediatheque/internal/notification"
	customError "github.com/segyhp/mediatheque/pkg/errors"
)

var activeOnly = []domain.LoanStatus{domain.LoanStatusActive}

func TestOverdueSweep_Scenario(t *testing.T) {
	// Issued 2024-01-01, due 2024-01-22, swept 2024-01-23 while still ACTIVE.
	now := date(2024, 1, 23)
	svc, deps := newTestService(now)
	member := activeMember()
	loan := openLoan(member, date(2024, 1, 1), date(2024, 1, 22), domain.LoanStatusActive)
	overdue := *loan
	overdue.Status = domain.LoanStatusOverdue

	deps.loans.On("FindOverdue", mock.Anything, now).Return([]*domain.Loan{loan}, nil)
	deps.loans.On("TransitionStatus", mock.Anything, loan.ID, activeOnly, domain.LoanStatusOverdue, (*time.Time)(nil)).Return(true, nil)
	deps.loans.On("FindByID", mock.Anything, loan.ID).Return(&overdue, nil)
	deps.fines.On("Upsert", mock.Anything, mock.MatchedBy(func(f *domain.Fine) bool {
		return f.Reason == domain.FineReasonLate && decimalEq("0.20")(f.Amount)
	})).Return(&domain.Fine{}, nil)
	deps.members.On("FindByID", mock.Anything, member.ID).Return(member, nil)
	deps.notifier.On("SendOverdueReminder", mock.Anything, notification.ContactOf(member), loan.ID, 1, mock.MatchedBy(decimalEq("0.20"))).Return(nil)

	report, err := svc.OverdueSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SweepReport{Scanned: 1, Transitioned: 1, Notified: 1}, report)
	deps.assertExpectations(t)
}

func TestOverdueSweep_AlreadyOverdueIsRemindedNotTransitioned(t *testing.T) {
	now := date(2024, 1, 25)
	svc, deps := newTestService(now)
	member := activeMember()
	loan := openLoan(member, date(2024, 1, 1), date(2024, 1, 22), domain.LoanStatusOverdue)

	deps.loans.On("FindOverdue", mock.Anything, now).Return([]*domain.Loan{loan}, nil)
	deps.loans.On("TransitionStatus", mock.Anything, loan.ID, activeOnly, domain.LoanStatusOverdue, (*time.Time)(nil)).Return(false, nil)
	deps.loans.On("FindByID", mock.Anything, loan.ID).Return(loan, nil)
	deps.fines.On("Upsert", mock.Anything, mock.MatchedBy(func(f *domain.Fine) bool {
		return decimalEq("0.60")(f.Amount)
	})).Return(&domain.Fine{}, nil)
	deps.members.On("FindByID", mock.Anything, member.ID).Return(member, nil)
	deps.notifier.On("SendOverdueReminder", mock.Anything, mock.Anything, loan.ID, 3, mock.MatchedBy(decimalEq("0.60"))).Return(nil)

	report, err := svc.OverdueSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SweepReport{Scanned: 1, Transitioned: 0, Notified: 1}, report)
	deps.assertExpectations(t)
}

func TestOverdueSweep_ReturnedMidSweepIsSkipped(t *testing.T) {
	now := date(2024, 1, 25)
	svc, deps := newTestService(now)
	member := activeMember()
	loan := openLoan(member, date(2024, 1, 1), date(2024, 1, 22), domain.LoanStatusActive)
	returned := *loan
	returned.Status = domain.LoanStatusReturnedLate

	deps.loans.On("FindOverdue", mock.Anything, now).Return([]*domain.Loan{loan}, nil)
	deps.loans.On("TransitionStatus", mock.Anything, loan.ID, activeOnly, domain.LoanStatusOverdue, (*time.Time)(nil)).Return(false, nil)
	deps.loans.On("FindByID", mock.Anything, loan.ID).Return(&returned, nil)

	report, err := svc.OverdueSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SweepReport{Scanned: 1}, report)
	deps.fines.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	deps.notifier.AssertNotCalled(t, "SendOverdueReminder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOverdueSweep_IsolatesFailures(t *testing.T) {
	now := date(2024, 1, 23)
	svc, deps := newTestService(now)
	member := activeMember()
	broken := openLoan(member, date(2024, 1, 1), date(2024, 1, 22), domain.LoanStatusActive)
	healthy := openLoan(member, date(2024, 1, 1), date(2024, 1, 22), domain.LoanStatusActive)
	healthyOverdue := *healthy
	healthyOverdue.Status = domain.LoanStatusOverdue

	deps.loans.On("FindOverdue", mock.Anything, now).Return([]*domain.Loan{broken, healthy}, nil)
	deps.loans.On("TransitionStatus", mock.Anything, broken.ID, activeOnly, domain.LoanStatusOverdue, (*time.Time)(nil)).
		Return(false, customError.WrapTransient(errors.New("could not serialize access")))
	deps.loans.On("TransitionStatus", mock.Anything, healthy.ID, activeOnly, domain.LoanStatusOverdue, (*time.Time)(nil)).Return(true, nil)
	deps.loans.On("FindByID", mock.Anything, healthy.ID).Return(&healthyOverdue, nil)
	deps.fines.On("Upsert", mock.Anything, mock.Anything).Return(&domain.Fine{}, nil)
	deps.members.On("FindByID", mock.Anything, member.ID).Return(member, nil)
	deps.notifier.On("SendOverdueReminder", mock.Anything, mock.Anything, healthy.ID, 1, mock.Anything).
		Return(customError.WrapNotificationFailure("overdue reminder", errors.New("timeout")))

	report, err := svc.OverdueSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SweepReport{Scanned: 2, Transitioned: 1, Notified: 0, Failed: 1}, report)
	assert.Equal(t, 1, deps.tx.Rollbacks)
	assert.Equal(t, 1, deps.tx.Commits)
}

func TestOverdueSweep_TwiceTransitionsOnce(t *testing.T) {
	now := date(2024, 1, 23)
	svc, deps := newTestService(now)
	member := activeMember()
	loan := openLoan(member, date(2024, 1, 1), date(2024, 1, 22), domain.LoanStatusActive)
	overdue := *loan
	overdue.Status = domain.LoanStatusOverdue

	deps.loans.On("FindOverdue", mock.Anything, now).Return([]*domain.Loan{loan}, nil).Once()
	deps.loans.On("FindOverdue", mock.Anything, now).Return([]*domain.Loan{&overdue}, nil).Once()
	deps.loans.On("TransitionStatus", mock.Anything, loan.ID, activeOnly, domain.LoanStatusOverdue, (*time.Time)(nil)).Return(true, nil).Once()
	deps.loans.On("TransitionStatus", mock.Anything, loan.ID, activeOnly, domain.LoanStatusOverdue, (*time.Time)(nil)).Return(false, nil).Once()
	deps.loans.On("FindByID", mock.Anything, loan.ID).Return(&overdue, nil)
	deps.fines.On("Upsert", mock.Anything, mock.MatchedBy(func(f *domain.Fine) bool {
		return decimalEq("0.20")(f.Amount)
	})).Return(&domain.Fine{}, nil).Twice()
	deps.members.On("FindByID", mock.Anything, member.ID).Return(member, nil)
	deps.notifier.On("SendOverdueReminder", mock.Anything, mock.Anything, loan.ID, 1, mock.Anything).Return(nil).Twice()

	first, err := svc.OverdueSweep(context.Background())
	require.NoError(t, err)
	second, err := svc.OverdueSweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, first.Transitioned)
	assert.Equal(t, 0, second.Transitioned)
	deps.assertExpectations(t)
}

func TestOverdueSweep_ScanFailure(t *testing.T) {
	now := date(2024, 1, 23)
	svc, deps := newTestService(now)

	deps.loans.On("FindOverdue", mock.Anything, now).Return(nil, customError.WrapDatabaseError(errors.New("connection refused")))

	_, err := svc.OverdueSweep(context.Background())
	assert.True(t, errors.Is(err, customError.ErrDatabase))
}

func TestNotifyExpiringSubscriptions(t *testing.T) {
	now := date(2024, 2, 1)
	svc, deps := newTestService(now)

	endSoon := now.AddDate(0, 0, 3)
	reachable := activeMember()
	reachable.SubscriptionEndDate = &endSoon
	noEmail := activeMember()
	noEmail.Email = ""
	noEmail.SubscriptionEndDate = &endSoon
	failing := activeMember()
	failing.Email = "paul@example.org"
	failing.SubscriptionEndDate = &endSoon

	deps.members.On("FindAll", mock.Anything, mock.MatchedBy(func(f domain.MemberFilter) bool {
		return f.SubscriptionActive != nil && *f.SubscriptionActive &&
			f.EndsAfter != nil && f.EndsAfter.Equal(now) &&
			f.EndsBefore != nil && f.EndsBefore.Equal(now.AddDate(0, 0, 7)) &&
			f.Offset == 0
	})).Return([]*domain.Member{reachable, noEmail, failing}, 3, nil)
	deps.notifier.On("SendSubscriptionExpiryNotice", mock.Anything, notification.ContactOf(reachable), endSoon).Return(nil)
	deps.notifier.On("SendSubscriptionExpiryNotice", mock.Anything, notification.ContactOf(failing), endSoon).
		Return(customError.WrapNotificationFailure("subscription expiry notice", errors.New("mailbox full")))

	report, err := svc.NotifyExpiringSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.NoticeReport{Scanned: 3, Notified: 1, Skipped: 1, Failed: 1}, report)
	deps.assertExpectations(t)
}

func TestNotifyExpiringSubscriptions_Pages(t *testing.T) {
	now := date(2024, 2, 1)
	svc, deps := newTestService(now)
	end := now.AddDate(0, 0, 2)

	page := func(n int) []*domain.Member {
		members := make([]*domain.Member, n)
		for i := range members {
			m := activeMember()
			m.ID = uuid.New()
			m.Email = ""
			m.SubscriptionEndDate = &end
			members[i] = m
		}
		return members
	}

	deps.members.On("FindAll", mock.Anything, mock.MatchedBy(func(f domain.MemberFilter) bool { return f.Offset == 0 })).
		Return(page(noticePageSize), noticePageSize+5, nil)
	deps.members.On("FindAll", mock.Anything, mock.MatchedBy(func(f domain.MemberFilter) bool { return f.Offset == noticePageSize })).
		Return(page(5), noticePageSize+5, nil)

	report, err := svc.NotifyExpiringSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, noticePageSize+5, report.Scanned)
	assert.Equal(t, noticePageSize+5, report.Skipped)
	deps.members.AssertNumberOfCalls(t, "FindAll", 2)
}

func TestPolicy_LateFeeRounding(t *testing.T) {
	fee := testPolicy.LateFeePerDay.Mul(decimal.NewFromInt(3))
	assert.True(t, fee.Equal(decimal.RequireFromString("0.60")))
}

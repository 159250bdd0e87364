package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/mediatheque/internal/domain"
	"github.com/segyhp/mediatheque/internal/notification"
	"github.com/segyhp/mediatheque/pkg/utils"
)

const noticePageSize = 100

type sweepOutcome struct {
	loan         *domain.Loan
	contact      notification.Contact
	transitioned bool
	skipped      bool
	daysLate     int
	feePreview   decimal.Decimal
}

// OverdueSweep moves every open loan past its due date to OVERDUE, records
// its LATE fine and reminds the member. Each loan is handled in its own
// transaction so one bad row does not abort the run. Running it twice
// transitions each loan once.
func (s *LoanService) OverdueSweep(ctx context.Context) (domain.SweepReport, error) {
	var report domain.SweepReport
	now := s.clock.Now()

	candidates, err := s.loans.FindOverdue(ctx, now)
	if err != nil {
		return report, err
	}
	report.Scanned = len(candidates)

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		outcome, err := s.sweepOne(ctx, candidate.ID, now)
		if err != nil {
			report.Failed++
			s.logger.ErrorContext(ctx, "overdue sweep failed for loan", "loan_id", candidate.ID, "error", err)
			continue
		}
		if outcome.skipped {
			continue
		}
		if outcome.transitioned {
			report.Transitioned++
		}

		if s.remind(ctx, outcome) {
			report.Notified++
		}
	}

	s.logger.InfoContext(ctx, "overdue sweep finished",
		"scanned", report.Scanned,
		"transitioned", report.Transitioned,
		"notified", report.Notified,
		"failed", report.Failed,
	)

	return report, nil
}

func (s *LoanService) sweepOne(ctx context.Context, loanID uuid.UUID, now time.Time) (*sweepOutcome, error) {
	outcome := &sweepOutcome{}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		changed, err := s.loans.TransitionStatus(ctx, loanID,
			[]domain.LoanStatus{domain.LoanStatusActive}, domain.LoanStatusOverdue, nil)
		if err != nil {
			return err
		}

		loan, err := s.loans.FindByID(ctx, loanID)
		if err != nil {
			return err
		}

		// Returned or lost since the scan.
		if !changed && loan.Status != domain.LoanStatusOverdue {
			outcome.skipped = true
			return nil
		}

		outcome.loan = loan
		outcome.transitioned = changed
		outcome.daysLate = utils.DaysLate(loan.DueDate, now)
		outcome.feePreview = utils.CalculateLateFee(outcome.daysLate, s.policy.LateFeePerDay)

		if outcome.daysLate >= 1 {
			if _, err := s.fines.Upsert(ctx, &domain.Fine{
				MemberID:  loan.MemberID,
				LoanID:    loan.ID,
				Amount:    outcome.feePreview,
				Reason:    domain.FineReasonLate,
				IssueDate: now,
			}); err != nil {
				return err
			}
		}

		member, err := s.members.FindByID(ctx, loan.MemberID)
		if err != nil {
			return err
		}
		outcome.contact = notification.ContactOf(member)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return outcome, nil
}

// remind sends the overdue reminder within the notification timeout and
// reports whether it went out.
func (s *LoanService) remind(ctx context.Context, outcome *sweepOutcome) bool {
	if !outcome.contact.Reachable() {
		return false
	}

	nctx, cancel := context.WithTimeout(ctx, s.policy.NotificationTimeout)
	defer cancel()

	err := s.notifier.SendOverdueReminder(nctx, outcome.contact, outcome.loan.ID, outcome.daysLate, outcome.feePreview)
	if err != nil {
		s.logger.WarnContext(ctx, "overdue reminder failed", "loan_id", outcome.loan.ID, "error", err)
		return false
	}

	return true
}

// NotifyExpiringSubscriptions warns members whose subscription ends within
// the notice window.
func (s *LoanService) NotifyExpiringSubscriptions(ctx context.Context) (domain.NoticeReport, error) {
	var report domain.NoticeReport
	now := s.clock.Now()
	until := now.AddDate(0, 0, s.policy.SubscriptionNoticeDays)
	active := true

	for offset := 0; ; offset += noticePageSize {
		members, total, err := s.members.FindAll(ctx, domain.MemberFilter{
			SubscriptionActive: &active,
			EndsAfter:          &now,
			EndsBefore:         &until,
			Limit:              noticePageSize,
			Offset:             offset,
		})
		if err != nil {
			return report, err
		}

		for _, member := range members {
			report.Scanned++
			s.noticeOne(ctx, member, &report)
		}

		if len(members) == 0 || offset+len(members) >= total {
			break
		}
	}

	s.logger.InfoContext(ctx, "subscription notices finished",
		"scanned", report.Scanned,
		"notified", report.Notified,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)

	return report, nil
}

func (s *LoanService) noticeOne(ctx context.Context, member *domain.Member, report *domain.NoticeReport) {
	contact := notification.ContactOf(member)
	if !contact.Reachable() || member.SubscriptionEndDate == nil {
		report.Skipped++
		return
	}

	nctx, cancel := context.WithTimeout(ctx, s.policy.NotificationTimeout)
	defer cancel()

	if err := s.notifier.SendSubscriptionExpiryNotice(nctx, contact, *member.SubscriptionEndDate); err != nil {
		report.Failed++
		s.logger.WarnContext(ctx, "subscription notice failed", "member_id", member.ID, "error", err)
		return
	}

	report.Notified++
}

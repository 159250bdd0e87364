package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/segyhp/mediatheque/internal/domain"
	customError "github.com/segyhp/mediatheque/pkg/errors"
)

// Evaluate decides whether member may take one more loan. Checks run in order
// and the first failing one is reported.
func Evaluate(member *domain.Member, stats domain.LoanStats, maxConcurrentLoans int, now time.Time) error {
	memberID := member.ID.String()

	if !member.HasActiveSubscription(now) {
		return customError.WrapIneligible(customError.ReasonNoActiveSubscription, memberID)
	}

	if stats.Open >= maxConcurrentLoans {
		return customError.WrapIneligible(customError.ReasonLoanQuotaReached, memberID)
	}

	if stats.Overdue > 0 {
		return customError.WrapIneligible(customError.ReasonHasOverdueLoans, memberID)
	}

	return nil
}

// CheckEligibility reports whether the member could borrow right now, along
// with the unsettled fines on their account. Outstanding fines do not block a
// loan. It has no side effects; CreateLoan evaluates again inside its own
// transaction.
func (s *LoanService) CheckEligibility(ctx context.Context, memberID uuid.UUID) (*domain.EligibilityResponse, error) {
	member, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	stats, err := s.loans.StatsByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	outstanding, err := s.fines.OutstandingTotal(ctx, memberID)
	if err != nil {
		return nil, err
	}

	resp := &domain.EligibilityResponse{
		MemberID:         memberID,
		Eligible:         true,
		Stats:            stats,
		OutstandingFines: outstanding,
	}

	if err := Evaluate(member, stats, s.policy.MaxConcurrentLoans, s.clock.Now()); err != nil {
		reason, ok := customError.ReasonOf(err)
		if !ok {
			return nil, err
		}
		resp.Eligible = false
		resp.Reason = string(reason)
	}

	return resp, nil
}

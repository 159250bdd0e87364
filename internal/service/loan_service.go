package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/mediatheque/internal/config"
	"github.com/segyhp/mediatheque/internal/domain"
	"github.com/segyhp/mediatheque/internal/notification"
	"github.com/segyhp/mediatheque/internal/repository"
	customError "github.com/segyhp/mediatheque/pkg/errors"
	"github.com/segyhp/mediatheque/pkg/utils"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// Policy holds the business constants of the loan lifecycle
type Policy struct {
	LoanDurationDays       int
	MaxConcurrentLoans     int
	LateFeePerDay          decimal.Decimal
	LostFee                decimal.Decimal
	SubscriptionNoticeDays int
	NotificationTimeout    time.Duration
}

func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		LoanDurationDays:       cfg.Business.LoanDurationDays,
		MaxConcurrentLoans:     cfg.Business.MaxConcurrentLoans,
		LateFeePerDay:          cfg.GetLateFeePerDay(),
		LostFee:                cfg.GetLostFee(),
		SubscriptionNoticeDays: cfg.Business.SubscriptionNoticeDays,
		NotificationTimeout:    cfg.Notification.Timeout,
	}
}

type Repositories struct {
	Documents repository.DocumentRepository
	Members   repository.MemberRepository
	Loans     repository.LoanRepository
	Fines     repository.FineRepository
}

type LoanService struct {
	documents repository.DocumentRepository
	members   repository.MemberRepository
	loans     repository.LoanRepository
	fines     repository.FineRepository
	tx        repository.Transactor
	notifier  notification.Dispatcher
	policy    Policy
	clock     Clock
	logger    *slog.Logger

	inflight sync.WaitGroup
}

type Option func(*LoanService)

// WithClock replaces the wall clock, for tests
func WithClock(clock Clock) Option {
	return func(s *LoanService) {
		s.clock = clock
	}
}

func NewLoanService(
	repos Repositories,
	tx repository.Transactor,
	notifier notification.Dispatcher,
	policy Policy,
	logger *slog.Logger,
	options ...Option,
) *LoanService {
	s := &LoanService{
		documents: repos.Documents,
		members:   repos.Members,
		loans:     repos.Loans,
		fines:     repos.Fines,
		tx:        tx,
		notifier:  notifier,
		policy:    policy,
		clock:     realClock{},
		logger:    logger,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// CreateLoan issues the document to the member
func (s *LoanService) CreateLoan(ctx context.Context, documentID, memberID uuid.UUID) (*domain.Loan, error) {
	now := s.clock.Now()

	var (
		loan   *domain.Loan
		member *domain.Member
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		doc, err := s.documents.FindByID(ctx, documentID)
		if err != nil {
			if errors.Is(err, customError.ErrNotFound) {
				return customError.WrapDocumentUnavailable(documentID.String())
			}
			return err
		}
		if !doc.Available {
			return customError.WrapDocumentUnavailable(documentID.String())
		}

		// Locking the member serialises quota checks for concurrent requests.
		member, err = s.members.FindByIDForUpdate(ctx, memberID)
		if err != nil {
			return err
		}

		stats, err := s.loans.StatsByMember(ctx, memberID)
		if err != nil {
			return err
		}

		if err := Evaluate(member, stats, s.policy.MaxConcurrentLoans, now); err != nil {
			return err
		}

		loan = &domain.Loan{
			ID:         uuid.New(),
			DocumentID: documentID,
			MemberID:   memberID,
			LoanDate:   now,
			DueDate:    utils.CalculateDueDate(now, doc.LoanDurationDays(s.policy.LoanDurationDays)),
			Status:     domain.LoanStatusActive,
		}

		if err := s.loans.Create(ctx, loan); err != nil {
			return err
		}

		changed, err := s.documents.MarkUnavailable(ctx, documentID)
		if err != nil {
			return err
		}
		if !changed {
			return customError.WrapDocumentUnavailable(documentID.String())
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "loan created",
		"loan_id", loan.ID,
		"document_id", documentID,
		"member_id", memberID,
		"due_date", loan.DueDate,
	)

	contact := notification.ContactOf(member)
	loanID, dueDate := loan.ID, loan.DueDate
	s.notifyAsync("loan confirmation", contact, func(ctx context.Context) error {
		return s.notifier.SendLoanConfirmation(ctx, contact, loanID, dueDate)
	})

	return loan, nil
}

// ReturnLoan closes an open loan and frees its document. A late return records
// the LATE fine.
func (s *LoanService) ReturnLoan(ctx context.Context, loanID uuid.UUID) (*domain.ReturnResult, error) {
	now := s.clock.Now()

	var (
		result domain.ReturnResult
		member *domain.Member
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		loan, err := s.loans.FindByIDForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		if loan.Status.IsTerminal() {
			return customError.WrapAlreadyReturned(loanID.String())
		}

		late := utils.IsDateOverdue(loan.DueDate, now)
		status := domain.LoanStatusReturned
		if late {
			status = domain.LoanStatusReturnedLate
		}

		changed, err := s.loans.TransitionStatus(ctx, loanID, domain.OpenLoanStatuses, status, &now)
		if err != nil {
			return err
		}
		if !changed {
			return customError.WrapAlreadyReturned(loanID.String())
		}

		if err := s.documents.MarkAvailable(ctx, loan.DocumentID); err != nil {
			return err
		}

		if daysLate := utils.DaysLate(loan.DueDate, now); late && daysLate >= 1 {
			fine, err := s.fines.Upsert(ctx, &domain.Fine{
				MemberID:  loan.MemberID,
				LoanID:    loan.ID,
				Amount:    utils.CalculateLateFee(daysLate, s.policy.LateFeePerDay),
				Reason:    domain.FineReasonLate,
				IssueDate: now,
			})
			if err != nil {
				return err
			}
			result.Fine = fine
		}

		member, err = s.members.FindByID(ctx, loan.MemberID)
		if err != nil {
			return err
		}

		loan.Status = status
		loan.ReturnDate = &now
		result.Loan = loan
		result.Late = late

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "loan returned",
		"loan_id", loanID,
		"status", result.Loan.Status,
		"late", result.Late,
	)

	contact := notification.ContactOf(member)
	late := result.Late
	s.notifyAsync("return confirmation", contact, func(ctx context.Context) error {
		return s.notifier.SendReturnConfirmation(ctx, contact, loanID, late)
	})

	return &result, nil
}

// RenewLoan extends an active loan once by the document's loan duration. Only
// loans that are not yet due can be renewed.
func (s *LoanService) RenewLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	now := s.clock.Now()

	var renewed *domain.Loan

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		loan, err := s.loans.FindByIDForUpdate(ctx, loanID)
		if err != nil {
			return err
		}

		switch {
		case loan.Status != domain.LoanStatusActive:
			return customError.WrapLoanNotRenewable(loanID.String(), "loan is "+string(loan.Status))
		case loan.Extended:
			return customError.WrapLoanNotRenewable(loanID.String(), "loan was already extended")
		case utils.IsDateOverdue(loan.DueDate, now):
			return customError.WrapLoanNotRenewable(loanID.String(), "loan is past its due date")
		}

		doc, err := s.documents.FindByID(ctx, loan.DocumentID)
		if err != nil {
			return err
		}

		dueDate := utils.CalculateDueDate(loan.DueDate, doc.LoanDurationDays(s.policy.LoanDurationDays))
		extended := true

		renewed, err = s.loans.Update(ctx, loanID, domain.LoanPatch{DueDate: &dueDate, Extended: &extended})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "loan renewed", "loan_id", loanID, "due_date", renewed.DueDate)

	return renewed, nil
}

// DeclareLost closes an open loan as LOST and records the replacement fine.
// The document stays unavailable until RestoreDocument returns it to the shelf.
func (s *LoanService) DeclareLost(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	now := s.clock.Now()

	var lost *domain.Loan

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		loan, err := s.loans.FindByIDForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		if loan.Status.IsTerminal() {
			return customError.WrapAlreadyReturned(loanID.String())
		}

		changed, err := s.loans.TransitionStatus(ctx, loanID, domain.OpenLoanStatuses, domain.LoanStatusLost, nil)
		if err != nil {
			return err
		}
		if !changed {
			return customError.WrapAlreadyReturned(loanID.String())
		}

		doc, err := s.documents.FindByID(ctx, loan.DocumentID)
		if err != nil {
			return err
		}

		amount := s.policy.LostFee
		if doc.Price.Valid {
			amount = doc.Price.Decimal
		}

		if _, err := s.fines.Upsert(ctx, &domain.Fine{
			MemberID:  loan.MemberID,
			LoanID:    loan.ID,
			Amount:    amount.Round(2),
			Reason:    domain.FineReasonLost,
			IssueDate: now,
		}); err != nil {
			return err
		}

		loan.Status = domain.LoanStatusLost
		lost = loan
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "loan declared lost", "loan_id", loanID)

	return lost, nil
}

// RestoreDocument puts a document that is out of circulation with no open
// loan, such as a lost item that was found again, back on the shelf.
func (s *LoanService) RestoreDocument(ctx context.Context, documentID uuid.UUID) (*domain.Document, error) {
	var restored *domain.Document

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		doc, err := s.documents.FindByID(ctx, documentID)
		if err != nil {
			return err
		}
		if doc.Available {
			return customError.WrapValidation("document is already available", nil)
		}

		_, open, err := s.loans.FindAll(ctx, domain.LoanFilter{
			DocumentID: &documentID,
			Statuses:   domain.OpenLoanStatuses,
			Limit:      1,
		})
		if err != nil {
			return err
		}
		if open > 0 {
			return customError.WrapDocumentUnavailable(documentID.String())
		}

		if err := s.documents.MarkAvailable(ctx, documentID); err != nil {
			return err
		}

		doc.Available = true
		restored = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "document restored", "document_id", documentID)

	return restored, nil
}

func (s *LoanService) GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	return s.loans.FindByID(ctx, loanID)
}

func (s *LoanService) ListLoans(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, int, error) {
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, 0, customError.WrapValidation("unknown loan status "+string(status), nil)
		}
	}
	return s.loans.FindAll(ctx, filter)
}

// ListFines lists the fines of a member, NotFound for an unknown member
func (s *LoanService) ListFines(ctx context.Context, memberID uuid.UUID, filter domain.FineFilter) ([]*domain.Fine, int, error) {
	if _, err := s.members.FindByID(ctx, memberID); err != nil {
		return nil, 0, err
	}

	filter.MemberID = &memberID
	return s.fines.FindAll(ctx, filter)
}

// Wait blocks until notifications started by CreateLoan and ReturnLoan have finished.
func (s *LoanService) Wait() {
	s.inflight.Wait()
}

// notifyAsync sends a notice after commit. Failures are logged and never
// reach the caller.
func (s *LoanService) notifyAsync(kind string, contact notification.Contact, send func(ctx context.Context) error) {
	if !contact.Reachable() {
		s.logger.Debug("notification skipped, member has no e-mail", "kind", kind)
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.policy.NotificationTimeout)
		defer cancel()

		if err := send(ctx); err != nil {
			s.logger.Warn("notification failed", "kind", kind, "error", err)
		}
	}()
}

package repository

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/mediatheque/internal/domain"
	customError "github.com/segyhp/mediatheque/pkg/errors"
)

const (
	tableLoans = "loans"

	// partial unique index on loans(document_id) for open statuses
	constraintOneOpenLoanPerDocument = "loans_one_open_per_document"
)

var loanColumns = []interface{}{
	"id", "document_id", "member_id", "loan_date", "due_date", "return_date",
	"extended", "status", "created_at", "updated_at",
}

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) byID(id uuid.UUID) *goqu.SelectDataset {
	return builder.From(tableLoans).Prepared(true).
		Select(loanColumns...).
		Where(goqu.Ex{"id": id})
}

func (r *loanRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	var loan domain.Loan
	if err := getOne(ctx, r.db, &loan, r.byID(id)); err != nil {
		return nil, notFound(err, "Loan", id.String())
	}

	return &loan, nil
}

func (r *loanRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	var loan domain.Loan
	if err := getOne(ctx, r.db, &loan, r.byID(id).ForUpdate(exp.Wait)); err != nil {
		return nil, notFound(err, "Loan", id.String())
	}

	return &loan, nil
}

func (r *loanRepository) FindAll(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, int, error) {
	ds := builder.From(tableLoans).Prepared(true).Select(loanColumns...)

	if filter.MemberID != nil {
		ds = ds.Where(goqu.C("member_id").Eq(*filter.MemberID))
	}
	if filter.DocumentID != nil {
		ds = ds.Where(goqu.C("document_id").Eq(*filter.DocumentID))
	}
	if len(filter.Statuses) > 0 {
		ds = ds.Where(goqu.C("status").In(statusValues(filter.Statuses)))
	}
	if filter.DueBefore != nil {
		ds = ds.Where(goqu.C("due_date").Lt(*filter.DueBefore))
	}

	total, err := count(ctx, r.db, ds)
	if err != nil {
		return nil, 0, err
	}

	loans := []*domain.Loan{}
	if err := selectAll(ctx, r.db, &loans, paginate(ds.Order(goqu.C("loan_date").Desc()), filter.Limit, filter.Offset)); err != nil {
		return nil, 0, err
	}

	return loans, total, nil
}

func (r *loanRepository) FindOverdue(ctx context.Context, now time.Time) ([]*domain.Loan, error) {
	stmt := builder.From(tableLoans).Prepared(true).
		Select(loanColumns...).
		Where(
			goqu.C("status").In(statusValues(domain.OpenLoanStatuses)),
			goqu.C("due_date").Lt(now),
		).
		Order(goqu.C("due_date").Asc())

	loans := []*domain.Loan{}
	if err := selectAll(ctx, r.db, &loans, stmt); err != nil {
		return nil, err
	}

	return loans, nil
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	now := time.Now()
	if loan.ID == uuid.Nil {
		loan.ID = uuid.New()
	}
	loan.CreatedAt = now
	loan.UpdatedAt = now

	stmt := builder.Insert(tableLoans).Prepared(true).Rows(goqu.Record{
		"id":          loan.ID,
		"document_id": loan.DocumentID,
		"member_id":   loan.MemberID,
		"loan_date":   loan.LoanDate,
		"due_date":    loan.DueDate,
		"return_date": nullTime(loan.ReturnDate),
		"extended":    loan.Extended,
		"status":      string(loan.Status),
		"created_at":  loan.CreatedAt,
		"updated_at":  loan.UpdatedAt,
	})

	if _, err := exec(ctx, r.db, stmt); err != nil {
		if isViolation(err, pgUniqueViolation, constraintOneOpenLoanPerDocument) {
			return customError.WrapDocumentUnavailable(loan.DocumentID.String())
		}
		return err
	}

	return nil
}

func (r *loanRepository) Update(ctx context.Context, id uuid.UUID, patch domain.LoanPatch) (*domain.Loan, error) {
	fields := patch.Fields()
	if len(fields) == 0 {
		return nil, customError.WrapValidation("no fields to update", nil)
	}
	fields["updated_at"] = time.Now()

	stmt := builder.Update(tableLoans).Prepared(true).
		Set(goqu.Record(fields)).
		Where(goqu.Ex{"id": id}).
		Returning(loanColumns...)

	var loan domain.Loan
	if err := getOne(ctx, r.db, &loan, stmt); err != nil {
		return nil, notFound(err, "Loan", id.String())
	}

	return &loan, nil
}

func (r *loanRepository) TransitionStatus(
	ctx context.Context,
	id uuid.UUID,
	from []domain.LoanStatus,
	to domain.LoanStatus,
	returnDate *time.Time,
) (bool, error) {
	record := goqu.Record{
		"status":     string(to),
		"updated_at": time.Now(),
	}
	if returnDate != nil {
		record["return_date"] = *returnDate
	}

	stmt := builder.Update(tableLoans).Prepared(true).
		Set(record).
		Where(
			goqu.C("id").Eq(id),
			goqu.C("status").In(statusValues(from)),
		)

	affected, err := exec(ctx, r.db, stmt)
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

func (r *loanRepository) StatsByMember(ctx context.Context, memberID uuid.UUID) (domain.LoanStats, error) {
	stmt := builder.From(tableLoans).Prepared(true).
		Select(
			goqu.COUNT(goqu.Star()).As("open"),
			goqu.L("COUNT(*) FILTER (WHERE status = ?)", string(domain.LoanStatusOverdue)).As("overdue"),
		).
		Where(
			goqu.C("member_id").Eq(memberID),
			goqu.C("status").In(statusValues(domain.OpenLoanStatuses)),
		)

	var stats domain.LoanStats
	if err := getOne(ctx, r.db, &stats, stmt); err != nil {
		return domain.LoanStats{}, translateError(err)
	}

	return stats, nil
}

func statusValues(statuses []domain.LoanStatus) []string {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return values
}

package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/segyhp/mediatheque/internal/domain"
)

const tableFines = "fines"

var fineColumns = []interface{}{
	"id", "member_id", "loan_id", "amount", "reason", "issue_date", "settled", "settlement_date",
}

type fineRepository struct {
	db *sqlx.DB
}

func NewFineRepository(db *sqlx.DB) FineRepository {
	return &fineRepository{db: db}
}

func (r *fineRepository) Upsert(ctx context.Context, fine *domain.Fine) (*domain.Fine, error) {
	if fine.ID == uuid.Nil {
		fine.ID = uuid.New()
	}

	// The amount is replaced, never added, so repeated sweeps converge.
	stmt := builder.Insert(tableFines).Prepared(true).
		Rows(goqu.Record{
			"id":         fine.ID,
			"member_id":  fine.MemberID,
			"loan_id":    fine.LoanID,
			"amount":     fine.Amount,
			"reason":     string(fine.Reason),
			"issue_date": fine.IssueDate,
			"settled":    false,
		}).
		OnConflict(goqu.DoUpdate("loan_id, reason", goqu.Record{
			"amount": goqu.L("EXCLUDED.amount"),
		}).Where(goqu.I("fines.settled").IsFalse())).
		Returning(fineColumns...)

	var stored domain.Fine
	err := getOne(ctx, r.db, &stored, stmt)
	if errors.Is(err, sql.ErrNoRows) {
		// Conflict with a settled fine: nothing written, return it as it stands.
		return r.find(ctx, fine.LoanID, fine.Reason)
	}
	if err != nil {
		return nil, translateError(err)
	}

	return &stored, nil
}

func (r *fineRepository) find(ctx context.Context, loanID uuid.UUID, reason domain.FineReason) (*domain.Fine, error) {
	stmt := builder.From(tableFines).Prepared(true).
		Select(fineColumns...).
		Where(goqu.Ex{"loan_id": loanID, "reason": string(reason)})

	var fine domain.Fine
	if err := getOne(ctx, r.db, &fine, stmt); err != nil {
		return nil, notFound(err, "Fine", loanID.String()+"/"+string(reason))
	}

	return &fine, nil
}

func (r *fineRepository) FindAll(ctx context.Context, filter domain.FineFilter) ([]*domain.Fine, int, error) {
	ds := builder.From(tableFines).Prepared(true).Select(fineColumns...)

	if filter.MemberID != nil {
		ds = ds.Where(goqu.C("member_id").Eq(*filter.MemberID))
	}
	if filter.LoanID != nil {
		ds = ds.Where(goqu.C("loan_id").Eq(*filter.LoanID))
	}
	if filter.Settled != nil {
		ds = ds.Where(goqu.C("settled").Eq(*filter.Settled))
	}

	total, err := count(ctx, r.db, ds)
	if err != nil {
		return nil, 0, err
	}

	fines := []*domain.Fine{}
	if err := selectAll(ctx, r.db, &fines, paginate(ds.Order(goqu.C("issue_date").Desc()), filter.Limit, filter.Offset)); err != nil {
		return nil, 0, err
	}

	return fines, total, nil
}

func (r *fineRepository) OutstandingTotal(ctx context.Context, memberID uuid.UUID) (decimal.Decimal, error) {
	stmt := builder.From(tableFines).Prepared(true).
		Select(goqu.COALESCE(goqu.SUM("amount"), 0)).
		Where(goqu.Ex{"member_id": memberID, "settled": false})

	var total decimal.Decimal
	if err := getOne(ctx, r.db, &total, stmt); err != nil {
		return decimal.Zero, translateError(err)
	}

	return total, nil
}

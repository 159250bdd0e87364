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

const tableMembers = "members"

var memberColumns = []interface{}{
	"id", "first_name", "last_name", "email", "phone", "subscription_active",
	"subscription_type", "subscription_end_date", "created_at", "updated_at",
}

type memberRepository struct {
	db *sqlx.DB
}

func NewMemberRepository(db *sqlx.DB) MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) byID(id uuid.UUID) *goqu.SelectDataset {
	return builder.From(tableMembers).Prepared(true).
		Select(memberColumns...).
		Where(goqu.Ex{"id": id})
}

func (r *memberRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	var member domain.Member
	if err := getOne(ctx, r.db, &member, r.byID(id)); err != nil {
		return nil, notFound(err, "Member", id.String())
	}

	return &member, nil
}

func (r *memberRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	var member domain.Member
	if err := getOne(ctx, r.db, &member, r.byID(id).ForUpdate(exp.Wait)); err != nil {
		return nil, notFound(err, "Member", id.String())
	}

	return &member, nil
}

func (r *memberRepository) FindAll(ctx context.Context, filter domain.MemberFilter) ([]*domain.Member, int, error) {
	ds := builder.From(tableMembers).Prepared(true).Select(memberColumns...)

	if filter.Query != "" {
		pattern := "%" + filter.Query + "%"
		ds = ds.Where(goqu.Or(
			goqu.C("first_name").ILike(pattern),
			goqu.C("last_name").ILike(pattern),
			goqu.C("email").ILike(pattern),
		))
	}
	if filter.SubscriptionActive != nil {
		ds = ds.Where(goqu.C("subscription_active").Eq(*filter.SubscriptionActive))
	}
	if filter.EndsAfter != nil {
		ds = ds.Where(goqu.C("subscription_end_date").Gte(*filter.EndsAfter))
	}
	if filter.EndsBefore != nil {
		ds = ds.Where(goqu.C("subscription_end_date").Lte(*filter.EndsBefore))
	}

	total, err := count(ctx, r.db, ds)
	if err != nil {
		return nil, 0, err
	}

	ordered := ds.Order(goqu.C("last_name").Asc(), goqu.C("first_name").Asc())

	members := []*domain.Member{}
	if err := selectAll(ctx, r.db, &members, paginate(ordered, filter.Limit, filter.Offset)); err != nil {
		return nil, 0, err
	}

	return members, total, nil
}

func (r *memberRepository) Create(ctx context.Context, member *domain.Member) error {
	now := time.Now()
	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}
	member.CreatedAt = now
	member.UpdatedAt = now

	stmt := builder.Insert(tableMembers).Prepared(true).Rows(goqu.Record{
		"id":                    member.ID,
		"first_name":            member.FirstName,
		"last_name":             member.LastName,
		"email":                 member.Email,
		"phone":                 member.Phone,
		"subscription_active":   member.SubscriptionActive,
		"subscription_type":     member.SubscriptionType,
		"subscription_end_date": nullTime(member.SubscriptionEndDate),
		"created_at":            member.CreatedAt,
		"updated_at":            member.UpdatedAt,
	})

	_, err := exec(ctx, r.db, stmt)
	return err
}

func (r *memberRepository) Update(ctx context.Context, id uuid.UUID, patch domain.MemberPatch) (*domain.Member, error) {
	fields := patch.Fields()
	if len(fields) == 0 {
		return nil, customError.WrapValidation("no fields to update", nil)
	}
	fields["updated_at"] = time.Now()

	stmt := builder.Update(tableMembers).Prepared(true).
		Set(goqu.Record(fields)).
		Where(goqu.Ex{"id": id}).
		Returning(memberColumns...)

	var member domain.Member
	if err := getOne(ctx, r.db, &member, stmt); err != nil {
		return nil, notFound(err, "Member", id.String())
	}

	return &member, nil
}

func (r *memberRepository) Delete(ctx context.Context, id uuid.UUID) error {
	stmt := builder.Delete(tableMembers).Prepared(true).Where(goqu.Ex{"id": id})

	affected, err := exec(ctx, r.db, stmt)
	if err != nil {
		if isViolation(err, pgForeignKeyViolation, "") {
			return customError.WrapValidation("member has loans or fines and cannot be deleted", err)
		}
		return err
	}
	if affected == 0 {
		return customError.WrapNotFound("Member", id.String())
	}

	return nil
}

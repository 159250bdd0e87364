package repository

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/mediatheque/internal/domain"
	customError "github.com/segyhp/mediatheque/pkg/errors"
)

const tableDocuments = "documents"

var documentColumns = []interface{}{
	"id", "title", "author", "type", "shelf_mark", "isbn", "publisher", "publication_year",
	"price", "available", "max_loan_duration_days", "created_at", "updated_at",
}

type documentRepository struct {
	db *sqlx.DB
}

func NewDocumentRepository(db *sqlx.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	stmt := builder.From(tableDocuments).Prepared(true).
		Select(documentColumns...).
		Where(goqu.Ex{"id": id})

	var doc domain.Document
	if err := getOne(ctx, r.db, &doc, stmt); err != nil {
		return nil, notFound(err, "Document", id.String())
	}

	return &doc, nil
}

func (r *documentRepository) FindAll(ctx context.Context, filter domain.DocumentFilter) ([]*domain.Document, int, error) {
	ds := builder.From(tableDocuments).Prepared(true).Select(documentColumns...)

	if filter.Query != "" {
		pattern := "%" + filter.Query + "%"
		ds = ds.Where(goqu.Or(
			goqu.C("title").ILike(pattern),
			goqu.C("author").ILike(pattern),
			goqu.C("shelf_mark").ILike(pattern),
			goqu.C("isbn").ILike(pattern),
		))
	}
	if filter.Available != nil {
		ds = ds.Where(goqu.C("available").Eq(*filter.Available))
	}
	if filter.Type != "" {
		ds = ds.Where(goqu.C("type").Eq(filter.Type))
	}

	total, err := count(ctx, r.db, ds)
	if err != nil {
		return nil, 0, err
	}

	docs := []*domain.Document{}
	if err := selectAll(ctx, r.db, &docs, paginate(ds.Order(goqu.C("title").Asc()), filter.Limit, filter.Offset)); err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}

func (r *documentRepository) Create(ctx context.Context, doc *domain.Document) error {
	now := time.Now()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.CreatedAt = now
	doc.UpdatedAt = now

	stmt := builder.Insert(tableDocuments).Prepared(true).Rows(goqu.Record{
		"id":                     doc.ID,
		"title":                  doc.Title,
		"author":                 doc.Author,
		"type":                   doc.Type,
		"shelf_mark":             doc.ShelfMark,
		"isbn":                   doc.ISBN,
		"publisher":              doc.Publisher,
		"publication_year":       doc.PublicationYear,
		"price":                  doc.Price,
		"available":              doc.Available,
		"max_loan_duration_days": doc.MaxLoanDurationDays,
		"created_at":             doc.CreatedAt,
		"updated_at":             doc.UpdatedAt,
	})

	_, err := exec(ctx, r.db, stmt)
	return err
}

func (r *documentRepository) Update(ctx context.Context, id uuid.UUID, patch domain.DocumentPatch) (*domain.Document, error) {
	fields := patch.Fields()
	if len(fields) == 0 {
		return nil, customError.WrapValidation("no fields to update", nil)
	}
	fields["updated_at"] = time.Now()

	stmt := builder.Update(tableDocuments).Prepared(true).
		Set(goqu.Record(fields)).
		Where(goqu.Ex{"id": id}).
		Returning(documentColumns...)

	var doc domain.Document
	if err := getOne(ctx, r.db, &doc, stmt); err != nil {
		return nil, notFound(err, "Document", id.String())
	}

	return &doc, nil
}

func (r *documentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	stmt := builder.Delete(tableDocuments).Prepared(true).Where(goqu.Ex{"id": id})

	affected, err := exec(ctx, r.db, stmt)
	if err != nil {
		if isViolation(err, pgForeignKeyViolation, "") {
			return customError.WrapValidation("document has loans and cannot be deleted", err)
		}
		return err
	}
	if affected == 0 {
		return customError.WrapNotFound("Document", id.String())
	}

	return nil
}

func (r *documentRepository) MarkUnavailable(ctx context.Context, id uuid.UUID) (bool, error) {
	stmt := builder.Update(tableDocuments).Prepared(true).
		Set(goqu.Record{"available": false, "updated_at": time.Now()}).
		Where(goqu.Ex{"id": id, "available": true})

	affected, err := exec(ctx, r.db, stmt)
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

func (r *documentRepository) MarkAvailable(ctx context.Context, id uuid.UUID) error {
	stmt := builder.Update(tableDocuments).Prepared(true).
		Set(goqu.Record{"available": true, "updated_at": time.Now()}).
		Where(goqu.Ex{"id": id})

	affected, err := exec(ctx, r.db, stmt)
	if err != nil {
		return err
	}
	if affected == 0 {
		return customError.WrapNotFound("Document", id.String())
	}

	return nil
}

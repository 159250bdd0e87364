package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DocumentTypeBook       = "book"
	DocumentTypePeriodical = "periodical"
	DocumentTypeAudio      = "audio"
	DocumentTypeDVD        = "dvd"
	DocumentTypeBluray     = "bluray"
)

// Document represents a catalogue entry
type Document struct {
	ID                  uuid.UUID           `json:"id" db:"id"`
	Title               string              `json:"title" db:"title" validate:"required,max=255"`
	Author              string              `json:"author" db:"author" validate:"max=255"`
	Type                string              `json:"type" db:"type" validate:"omitempty,oneof=book periodical audio dvd bluray"`
	ShelfMark           string              `json:"shelf_mark" db:"shelf_mark" validate:"required,max=64"`
	ISBN                string              `json:"isbn,omitempty" db:"isbn" validate:"omitempty,isbn"`
	Publisher           string              `json:"publisher,omitempty" db:"publisher" validate:"max=255"`
	PublicationYear     int                 `json:"publication_year,omitempty" db:"publication_year" validate:"gte=0"`
	Price               decimal.NullDecimal `json:"price" db:"price"`
	Available           bool                `json:"available" db:"available"`
	MaxLoanDurationDays int                 `json:"max_loan_duration_days" db:"max_loan_duration_days" validate:"gte=0,lte=365"`
	CreatedAt           time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at" db:"updated_at"`
}

// LoanDurationDays returns the document's own loan duration, falling back to
// defaultDays when the catalogue left it unset.
func (d *Document) LoanDurationDays(defaultDays int) int {
	if d.MaxLoanDurationDays > 0 {
		return d.MaxLoanDurationDays
	}
	return defaultDays
}

// DocumentPatch lists the catalogue fields that can be edited. Availability is
// not among them: only the loan service flips it.
type DocumentPatch struct {
	Title               *string          `json:"title" validate:"omitempty,min=1,max=255"`
	Author              *string          `json:"author" validate:"omitempty,max=255"`
	Type                *string          `json:"type" validate:"omitempty,oneof=book periodical audio dvd bluray"`
	ShelfMark           *string          `json:"shelf_mark" validate:"omitempty,min=1,max=64"`
	ISBN                *string          `json:"isbn" validate:"omitempty,isbn"`
	Publisher           *string          `json:"publisher" validate:"omitempty,max=255"`
	PublicationYear     *int             `json:"publication_year" validate:"omitempty,gte=0"`
	Price               *decimal.Decimal `json:"price"`
	MaxLoanDurationDays *int             `json:"max_loan_duration_days" validate:"omitempty,gte=0,lte=365"`
}

// Fields returns the provided fields keyed by column name
func (p DocumentPatch) Fields() map[string]interface{} {
	fields := map[string]interface{}{}
	setString(fields, "title", p.Title)
	setString(fields, "author", p.Author)
	setString(fields, "type", p.Type)
	setString(fields, "shelf_mark", p.ShelfMark)
	setString(fields, "isbn", p.ISBN)
	setString(fields, "publisher", p.Publisher)
	setInt(fields, "publication_year", p.PublicationYear)
	setInt(fields, "max_loan_duration_days", p.MaxLoanDurationDays)
	if p.Price != nil {
		fields["price"] = *p.Price
	}
	return fields
}

// DocumentFilter narrows FindAll on documents
type DocumentFilter struct {
	Query     string
	Available *bool
	Type      string
	Limit     int
	Offset    int
}

type CreateDocumentRequest struct {
	Title               string           `json:"title" validate:"required"`
	Author              string           `json:"author"`
	Type                string           `json:"type" validate:"omitempty,oneof=book periodical audio dvd bluray"`
	ShelfMark           string           `json:"shelf_mark" validate:"required"`
	ISBN                string           `json:"isbn" validate:"omitempty,isbn"`
	Publisher           string           `json:"publisher"`
	PublicationYear     int              `json:"publication_year" validate:"gte=0"`
	Price               *decimal.Decimal `json:"price"`
	MaxLoanDurationDays int              `json:"max_loan_duration_days" validate:"gte=0,lte=365"`
}

// ToDocument builds a new, available document from the request
func (r CreateDocumentRequest) ToDocument() *Document {
	doc := &Document{
		Title:               r.Title,
		Author:              r.Author,
		Type:                r.Type,
		ShelfMark:           r.ShelfMark,
		ISBN:                r.ISBN,
		Publisher:           r.Publisher,
		PublicationYear:     r.PublicationYear,
		Available:           true,
		MaxLoanDurationDays: r.MaxLoanDurationDays,
	}
	if r.Price != nil {
		doc.Price = decimal.NewNullDecimal(*r.Price)
	}
	return doc
}

func setString(fields map[string]interface{}, column string, v *string) {
	if v != nil {
		fields[column] = *v
	}
}

func setInt(fields map[string]interface{}, column string, v *int) {
	if v != nil {
		fields[column] = *v
	}
}

func setBool(fields map[string]interface{}, column string, v *bool) {
	if v != nil {
		fields[column] = *v
	}
}

func setTime(fields map[string]interface{}, column string, v *time.Time) {
	if v != nil {
		fields[column] = *v
	}
}

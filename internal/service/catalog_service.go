package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/segyhp/mediatheque/internal/domain"
	"github.com/segyhp/mediatheque/internal/repository"
	customError "github.com/segyhp/mediatheque/pkg/errors"
)

// CatalogService manages documents and members. Availability is left to
// LoanService.
type CatalogService struct {
	documents repository.DocumentRepository
	members   repository.MemberRepository
	validator *validator.Validate
}

func NewCatalogService(documents repository.DocumentRepository, members repository.MemberRepository) *CatalogService {
	return &CatalogService{
		documents: documents,
		members:   members,
		validator: validator.New(),
	}
}

func (s *CatalogService) CreateDocument(ctx context.Context, req *domain.CreateDocumentRequest) (*domain.Document, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	if req.Price != nil && req.Price.IsNegative() {
		return nil, customError.WrapValidation("price must not be negative", nil)
	}

	doc := req.ToDocument()
	doc.ID = uuid.New()

	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, err
	}

	return doc, nil
}

func (s *CatalogService) GetDocument(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	return s.documents.FindByID(ctx, id)
}

func (s *CatalogService) ListDocuments(ctx context.Context, filter domain.DocumentFilter) ([]*domain.Document, int, error) {
	return s.documents.FindAll(ctx, filter)
}

func (s *CatalogService) UpdateDocument(ctx context.Context, id uuid.UUID, patch domain.DocumentPatch) (*domain.Document, error) {
	if err := s.validate(patch); err != nil {
		return nil, err
	}
	if len(patch.Fields()) == 0 {
		return nil, customError.WrapValidation("no fields to update", nil)
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		return nil, customError.WrapValidation("price must not be negative", nil)
	}

	return s.documents.Update(ctx, id, patch)
}

func (s *CatalogService) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	return s.documents.Delete(ctx, id)
}

func (s *CatalogService) CreateMember(ctx context.Context, req *domain.CreateMemberRequest) (*domain.Member, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	member := req.ToMember()
	member.ID = uuid.New()

	if err := s.members.Create(ctx, member); err != nil {
		return nil, err
	}

	return member, nil
}

func (s *CatalogService) GetMember(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	return s.members.FindByID(ctx, id)
}

func (s *CatalogService) ListMembers(ctx context.Context, filter domain.MemberFilter) ([]*domain.Member, int, error) {
	return s.members.FindAll(ctx, filter)
}

func (s *CatalogService) UpdateMember(ctx context.Context, id uuid.UUID, patch domain.MemberPatch) (*domain.Member, error) {
	if err := s.validate(patch); err != nil {
		return nil, err
	}
	if len(patch.Fields()) == 0 {
		return nil, customError.WrapValidation("no fields to update", nil)
	}

	return s.members.Update(ctx, id, patch)
}

func (s *CatalogService) DeleteMember(ctx context.Context, id uuid.UUID) error {
	return s.members.Delete(ctx, id)
}

func (s *CatalogService) validate(v interface{}) error {
	err := s.validator.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return customError.WrapValidation("invalid input", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}

	return customError.WrapValidation(strings.Join(msgs, "; "), err)
}

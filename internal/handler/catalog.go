package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/segyhp/mediatheque/internal/domain"
	customError "github.com/segyhp/mediatheque/pkg/errors"
	"github.com/segyhp/mediatheque/pkg/response"
	"github.com/segyhp/mediatheque/pkg/utils"
)

type CatalogService interface {
	CreateDocument(ctx context.Context, req *domain.CreateDocumentRequest) (*domain.Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*domain.Document, error)
	ListDocuments(ctx context.Context, filter domain.DocumentFilter) ([]*domain.Document, int, error)
	UpdateDocument(ctx context.Context, id uuid.UUID, patch domain.DocumentPatch) (*domain.Document, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error

	CreateMember(ctx context.Context, req *domain.CreateMemberRequest) (*domain.Member, error)
	GetMember(ctx context.Context, id uuid.UUID) (*domain.Member, error)
	ListMembers(ctx context.Context, filter domain.MemberFilter) ([]*domain.Member, int, error)
	UpdateMember(ctx context.Context, id uuid.UUID, patch domain.MemberPatch) (*domain.Member, error)
	DeleteMember(ctx context.Context, id uuid.UUID) error
}

// CatalogHandler serves CRUD on documents and members
type CatalogHandler struct {
	service CatalogService
	logger  *slog.Logger
}

func NewCatalogHandler(service CatalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{service: service, logger: logger}
}

func (h *CatalogHandler) Register(api *mux.Router) {
	api.HandleFunc("/documents", h.CreateDocument).Methods(http.MethodPost)
	api.HandleFunc("/documents", h.ListDocuments).Methods(http.MethodGet)
	api.HandleFunc("/documents/{documentId}", h.GetDocument).Methods(http.MethodGet)
	api.HandleFunc("/documents/{documentId}", h.UpdateDocument).Methods(http.MethodPatch)
	api.HandleFunc("/documents/{documentId}", h.DeleteDocument).Methods(http.MethodDelete)

	api.HandleFunc("/members", h.CreateMember).Methods(http.MethodPost)
	api.HandleFunc("/members", h.ListMembers).Methods(http.MethodGet)
	api.HandleFunc("/members/{memberId}", h.GetMember).Methods(http.MethodGet)
	api.HandleFunc("/members/{memberId}", h.UpdateMember).Methods(http.MethodPatch)
	api.HandleFunc("/members/{memberId}", h.DeleteMember).Methods(http.MethodDelete)
}

// ---------- documents ----------

func (h *CatalogHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDocumentRequest
	if !h.decode(w, r, &req) {
		return
	}

	doc, err := h.service.CreateDocument(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/documents/"+doc.ID.String())
	response.Created(w, doc)
}

// GET /documents?q=&available=&type=&page=&limit=
func (h *CatalogHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	available, err := queryBool(r, "available")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	page := queryPage(r)
	filter := domain.DocumentFilter{
		Query:     r.URL.Query().Get("q"),
		Available: available,
		Type:      r.URL.Query().Get("type"),
	}
	filter.Limit, filter.Offset = page.LimitOffset()

	docs, total, err := h.service.ListDocuments(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	response.Paginated(w, docs, utils.NewPagination(page, total))
}

func (h *CatalogHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r, "documentId")
	if !ok {
		return
	}

	doc, err := h.service.GetDocument(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	response.Success(w, doc)
}

func (h *CatalogHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r, "documentId")
	if !ok {
		return
	}
	var patch domain.DocumentPatch
	if !h.decode(w, r, &patch) {
		return
	}

	doc, err := h.service.UpdateDocument(r.Context(), id, patch)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	response.Success(w, doc)
}

func (h *CatalogHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r, "documentId")
	if !ok {
		return
	}

	if err := h.service.DeleteDocument(r.Context(), id); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ---------- members ----------

func (h *CatalogHandler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateMemberRequest
	if !h.decode(w, r, &req) {
		return
	}

	member, err := h.service.CreateMember(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/members/"+member.ID.String())
	response.Created(w, member)
}

// GET /members?q=&active=&ends_after=&ends_before=&page=&limit=
func (h *CatalogHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	active, err := queryBool(r, "active")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	endsAfter, err := queryTime(r, "ends_after")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	endsBefore, err := queryTime(r, "ends_before")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	page := queryPage(r)
	filter := domain.MemberFilter{
		Query:              r.URL.Query().Get("q"),
		SubscriptionActive: active,
		EndsAfter:          endsAfter,
		EndsBefore:         endsBefore,
	}
	filter.Limit, filter.Offset = page.LimitOffset()

	members, total, err := h.service.ListMembers(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	response.Paginated(w, members, utils.NewPagination(page, total))
}

func (h *CatalogHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r, "memberId")
	if !ok {
		return
	}

	member, err := h.service.GetMember(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	response.Success(w, member)
}

func (h *CatalogHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r, "memberId")
	if !ok {
		return
	}
	var patch domain.MemberPatch
	if !h.decode(w, r, &patch) {
		return
	}

	member, err := h.service.UpdateMember(r.Context(), id, patch)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	response.Success(w, member)
}

func (h *CatalogHandler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r, "memberId")
	if !ok {
		return
	}

	if err := h.service.DeleteMember(r.Context(), id); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ---------- helpers ----------

func (h *CatalogHandler) id(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := pathID(r, name)
	if err != nil {
		writeError(w, h.logger, r, err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *CatalogHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := response.Decode(r.Body, dst); err != nil {
		response.BadRequest(w, customError.ErrCodeValidation, "invalid json body", err)
		return false
	}
	return true
}

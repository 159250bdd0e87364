package handler

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/mediatheque/internal/domain"
	"github.com/segyhp/mediatheque/internal/logging"
	"github.com/segyhp/mediatheque/internal/mocks"
	customError "github.com/segyhp/mediatheque/pkg/errors"
)

func newCatalogRouter(svc *mocks.MockCatalogService) *mux.Router {
	r := mux.NewRouter()
	NewCatalogHandler(svc, logging.Discard()).Register(r.PathPrefix("/api/v1").Subrouter())
	return r
}

func TestCatalogHandler_CreateDocument(t *testing.T) {
	svc := &mocks.MockCatalogService{}
	id := uuid.New()

	svc.On("CreateDocument", mock.Anything, mock.MatchedBy(func(req *domain.CreateDocumentRequest) bool {
		return req.Title == "Germinal" && req.Price != nil && req.Price.Equal(decimal.RequireFromString("9.50"))
	})).Return(&domain.Document{ID: id, Title: "Germinal", Available: true}, nil)

	rec, env := serve(t, newCatalogRouter(svc), http.MethodPost, "/api/v1/documents",
		`{"title":"Germinal","shelf_mark":"R ZOL","price":"9.50"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/api/v1/documents/"+id.String(), rec.Header().Get("Location"))

	var doc domain.Document
	require.NoError(t, json.Unmarshal(env.Data, &doc))
	assert.True(t, doc.Available)
	svc.AssertExpectations(t)
}

func TestCatalogHandler_ValidationError(t *testing.T) {
	svc := &mocks.MockCatalogService{}
	svc.On("CreateMember", mock.Anything, mock.Anything).
		Return(nil, customError.WrapValidation("LastName failed on required", nil))

	rec, env := serve(t, newCatalogRouter(svc), http.MethodPost, "/api/v1/members", `{"first_name":"Émile"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, customError.ErrCodeValidation, env.Code)
	assert.Equal(t, "LastName failed on required", env.Message)
}

func TestCatalogHandler_ListDocuments(t *testing.T) {
	svc := &mocks.MockCatalogService{}
	available := true

	svc.On("ListDocuments", mock.Anything, domain.DocumentFilter{
		Query:     "hugo",
		Available: &available,
		Type:      "book",
		Limit:     20,
		Offset:    0,
	}).Return([]*domain.Document{{ID: uuid.New()}}, 1, nil)

	rec, env := serve(t, newCatalogRouter(svc), http.MethodGet, "/api/v1/documents?q=hugo&available=true&type=book", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.Total)
	assert.False(t, env.Pagination.HasNext)
	svc.AssertExpectations(t)
}

func TestCatalogHandler_UpdateMember(t *testing.T) {
	svc := &mocks.MockCatalogService{}
	id := uuid.New()

	svc.On("UpdateMember", mock.Anything, id, mock.MatchedBy(func(p domain.MemberPatch) bool {
		return p.Email != nil && *p.Email == "emile@example.org" && p.FirstName == nil
	})).Return(&domain.Member{ID: id, Email: "emile@example.org"}, nil)

	rec, _ := serve(t, newCatalogRouter(svc), http.MethodPatch, "/api/v1/members/"+id.String(), `{"email":"emile@example.org"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestCatalogHandler_Delete(t *testing.T) {
	id := uuid.New()

	t.Run("no content", func(t *testing.T) {
		svc := &mocks.MockCatalogService{}
		svc.On("DeleteDocument", mock.Anything, id).Return(nil)

		rec, _ := serve(t, newCatalogRouter(svc), http.MethodDelete, "/api/v1/documents/"+id.String(), "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("still referenced", func(t *testing.T) {
		svc := &mocks.MockCatalogService{}
		svc.On("DeleteMember", mock.Anything, id).Return(customError.WrapValidation("member is referenced by loans or fines", nil))

		rec, _ := serve(t, newCatalogRouter(svc), http.MethodDelete, "/api/v1/members/"+id.String(), "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown", func(t *testing.T) {
		svc := &mocks.MockCatalogService{}
		svc.On("GetMember", mock.Anything, id).Return(nil, customError.WrapNotFound("Member", id.String()))

		rec, _ := serve(t, newCatalogRouter(svc), http.MethodGet, "/api/v1/members/"+id.String(), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/mediatheque/internal/domain"
	"github.com/segyhp/mediatheque/internal/logging"
	"github.com/segyhp/mediatheque/internal/mocks"
	customError "github.com/segyhp/mediatheque/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type envelope struct {
	Success    bool                `json:"success"`
	Data       jsoniter.RawMessage `json:"data"`
	Code       string              `json:"code"`
	Message    string              `json:"message"`
	Error      string              `json:"error"`
	Pagination *struct {
		Total   int  `json:"total"`
		Page    int  `json:"page"`
		Limit   int  `json:"limit"`
		HasNext bool `json:"has_next"`
	} `json:"pagination"`
}

func newLoanRouter(svc *mocks.MockLoanService) *mux.Router {
	r := mux.NewRouter()
	NewLoanHandler(svc, 3, logging.Discard()).Register(r.PathPrefix("/api/v1").Subrouter())
	return r
}

func serve(t *testing.T, r http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func TestLoanHandler_CreateLoan(t *testing.T) {
	documentID := uuid.New()
	memberID := uuid.New()
	body := `{"document_id":"` + documentID.String() + `","member_id":"` + memberID.String() + `"}`

	tests := []struct {
		name       string
		body       string
		setupMock  func(*mocks.MockLoanService)
		wantStatus int
		wantCode   string
	}{
		{
			name: "Created",
			body: body,
			setupMock: func(m *mocks.MockLoanService) {
				m.On("CreateLoan", mock.Anything, documentID, memberID).
					Return(&domain.Loan{ID: uuid.New(), DocumentID: documentID, MemberID: memberID, Status: domain.LoanStatusActive}, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "Malformed body",
			body:       `{"document_id":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   customError.ErrCodeValidation,
		},
		{
			name:       "Missing member",
			body:       `{"document_id":"` + documentID.String() + `"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   customError.ErrCodeValidation,
		},
		{
			name: "Document unavailable",
			body: body,
			setupMock: func(m *mocks.MockLoanService) {
				m.On("CreateLoan", mock.Anything, documentID, memberID).
					Return(nil, customError.WrapDocumentUnavailable(documentID.String()))
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   customError.ErrCodeDocumentUnavailable,
		},
		{
			name: "Quota reached",
			body: body,
			setupMock: func(m *mocks.MockLoanService) {
				m.On("CreateLoan", mock.Anything, documentID, memberID).
					Return(nil, customError.WrapIneligible(customError.ReasonLoanQuotaReached, memberID.String()))
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INELIGIBLE_LOAN_QUOTA_REACHED",
		},
		{
			name: "Unknown member",
			body: body,
			setupMock: func(m *mocks.MockLoanService) {
				m.On("CreateLoan", mock.Anything, documentID, memberID).
					Return(nil, customError.WrapNotFound("Member", memberID.String()))
			},
			wantStatus: http.StatusNotFound,
			wantCode:   customError.ErrCodeNotFound,
		},
		{
			name: "Transient until retries run out",
			body: body,
			setupMock: func(m *mocks.MockLoanService) {
				m.On("CreateLoan", mock.Anything, documentID, memberID).
					Return(nil, customError.WrapTransient(errors.New("deadlock detected"))).Times(3)
			},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   customError.ErrCodeTransientStore,
		},
		{
			name: "Unexpected failure hides details",
			body: body,
			setupMock: func(m *mocks.MockLoanService) {
				m.On("CreateLoan", mock.Anything, documentID, memberID).
					Return(nil, customError.WrapDatabaseError(errors.New("password authentication failed")))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mocks.MockLoanService{}
			if tt.setupMock != nil {
				tt.setupMock(svc)
			}

			rec, env := serve(t, newLoanRouter(svc), http.MethodPost, "/api/v1/loans", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, env.Code)
			if tt.wantStatus == http.StatusCreated {
				assert.True(t, env.Success)
				assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/api/v1/loans/"))
			}
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotContains(t, rec.Body.String(), "password")
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestLoanHandler_RetriesTransientThenSucceeds(t *testing.T) {
	svc := &mocks.MockLoanService{}
	loanID := uuid.New()

	svc.On("ReturnLoan", mock.Anything, loanID).
		Return(nil, customError.WrapTransient(errors.New("could not serialize access"))).Once()
	svc.On("ReturnLoan", mock.Anything, loanID).
		Return(&domain.ReturnResult{Loan: &domain.Loan{ID: loanID, Status: domain.LoanStatusReturned}}, nil).Once()

	rec, env := serve(t, newLoanRouter(svc), http.MethodPost, "/api/v1/loans/"+loanID.String()+"/return", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	svc.AssertNumberOfCalls(t, "ReturnLoan", 2)
}

func TestLoanHandler_BusinessErrorsAreNotRetried(t *testing.T) {
	svc := &mocks.MockLoanService{}
	loanID := uuid.New()

	svc.On("RenewLoan", mock.Anything, loanID).
		Return(nil, customError.WrapLoanNotRenewable(loanID.String(), "already extended"))

	rec, env := serve(t, newLoanRouter(svc), http.MethodPost, "/api/v1/loans/"+loanID.String()+"/renew", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, customError.ErrCodeLoanNotRenewable, env.Code)
	svc.AssertNumberOfCalls(t, "RenewLoan", 1)
}

func TestLoanHandler_LoanActions(t *testing.T) {
	loanID := uuid.New()

	t.Run("already returned", func(t *testing.T) {
		svc := &mocks.MockLoanService{}
		svc.On("ReturnLoan", mock.Anything, loanID).Return(nil, customError.WrapAlreadyReturned(loanID.String()))

		rec, env := serve(t, newLoanRouter(svc), http.MethodPost, "/api/v1/loans/"+loanID.String()+"/return", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, customError.ErrCodeAlreadyReturned, env.Code)
	})

	t.Run("declare lost", func(t *testing.T) {
		svc := &mocks.MockLoanService{}
		svc.On("DeclareLost", mock.Anything, loanID).Return(&domain.Loan{ID: loanID, Status: domain.LoanStatusLost}, nil)

		rec, env := serve(t, newLoanRouter(svc), http.MethodPost, "/api/v1/loans/"+loanID.String()+"/lost", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var loan domain.Loan
		require.NoError(t, json.Unmarshal(env.Data, &loan))
		assert.Equal(t, domain.LoanStatusLost, loan.Status)
	})

	t.Run("restore document", func(t *testing.T) {
		docID := uuid.New()
		svc := &mocks.MockLoanService{}
		svc.On("RestoreDocument", mock.Anything, docID).Return(&domain.Document{ID: docID, Available: true}, nil)

		rec, env := serve(t, newLoanRouter(svc), http.MethodPost, "/api/v1/documents/"+docID.String()+"/restore", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var doc domain.Document
		require.NoError(t, json.Unmarshal(env.Data, &doc))
		assert.True(t, doc.Available)
	})

	t.Run("restore document on loan", func(t *testing.T) {
		docID := uuid.New()
		svc := &mocks.MockLoanService{}
		svc.On("RestoreDocument", mock.Anything, docID).Return(nil, customError.WrapDocumentUnavailable(docID.String()))

		rec, env := serve(t, newLoanRouter(svc), http.MethodPost, "/api/v1/documents/"+docID.String()+"/restore", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, customError.ErrCodeDocumentUnavailable, env.Code)
	})

	t.Run("get unknown loan", func(t *testing.T) {
		svc := &mocks.MockLoanService{}
		svc.On("GetLoan", mock.Anything, loanID).Return(nil, customError.WrapNotFound("Loan", loanID.String()))

		rec, _ := serve(t, newLoanRouter(svc), http.MethodGet, "/api/v1/loans/"+loanID.String(), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		svc := &mocks.MockLoanService{}

		rec, env := serve(t, newLoanRouter(svc), http.MethodGet, "/api/v1/loans/not-a-uuid", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, customError.ErrCodeValidation, env.Code)
		svc.AssertNotCalled(t, "GetLoan", mock.Anything, mock.Anything)
	})
}

func TestLoanHandler_ListLoans(t *testing.T) {
	svc := &mocks.MockLoanService{}
	memberID := uuid.New()

	svc.On("ListLoans", mock.Anything, mock.MatchedBy(func(f domain.LoanFilter) bool {
		return f.MemberID != nil && *f.MemberID == memberID &&
			len(f.Statuses) == 2 && f.Statuses[0] == domain.LoanStatusActive && f.Statuses[1] == domain.LoanStatusOverdue &&
			f.Limit == 10 && f.Offset == 10
	})).Return([]*domain.Loan{{ID: uuid.New()}}, 25, nil)

	rec, env := serve(t, newLoanRouter(svc), http.MethodGet,
		"/api/v1/loans?member_id="+memberID.String()+"&status=ACTIVE,OVERDUE&page=2&limit=10", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 25, env.Pagination.Total)
	assert.Equal(t, 2, env.Pagination.Page)
	assert.True(t, env.Pagination.HasNext)
	svc.AssertExpectations(t)
}

func TestLoanHandler_ListLoans_BadFilter(t *testing.T) {
	svc := &mocks.MockLoanService{}

	rec, _ := serve(t, newLoanRouter(svc), http.MethodGet, "/api/v1/loans?due_before=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "ListLoans", mock.Anything, mock.Anything)
}

func TestLoanHandler_OverdueSweep(t *testing.T) {
	svc := &mocks.MockLoanService{}
	svc.On("OverdueSweep", mock.Anything).Return(domain.SweepReport{Scanned: 3, Transitioned: 2, Notified: 2}, nil)

	rec, env := serve(t, newLoanRouter(svc), http.MethodPost, "/api/v1/loans/overdue-sweep", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report domain.SweepReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 2, report.Transitioned)
	svc.AssertNotCalled(t, "GetLoan", mock.Anything, mock.Anything)
}

func TestLoanHandler_Eligibility(t *testing.T) {
	svc := &mocks.MockLoanService{}
	memberID := uuid.New()
	svc.On("CheckEligibility", mock.Anything, memberID).Return(&domain.EligibilityResponse{
		MemberID: memberID,
		Eligible: false,
		Reason:   string(customError.ReasonHasOverdueLoans),
		Stats:    domain.LoanStats{Open: 1, Overdue: 1},
	}, nil)

	rec, env := serve(t, newLoanRouter(svc), http.MethodGet, "/api/v1/members/"+memberID.String()+"/eligibility", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.EligibilityResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.False(t, resp.Eligible)
	assert.Equal(t, "HAS_OVERDUE_LOANS", resp.Reason)
}

func TestLoanHandler_ListFines(t *testing.T) {
	svc := &mocks.MockLoanService{}
	memberID := uuid.New()
	unsettled := false

	svc.On("ListFines", mock.Anything, memberID, domain.FineFilter{Settled: &unsettled, Limit: 20, Offset: 0}).
		Return([]*domain.Fine{}, 0, nil)

	rec, _ := serve(t, newLoanRouter(svc), http.MethodGet, "/api/v1/members/"+memberID.String()+"/fines?settled=false", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

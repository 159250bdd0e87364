package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/segyhp/mediatheque/internal/domain"
	customError "github.com/segyhp/mediatheque/pkg/errors"
	"github.com/segyhp/mediatheque/pkg/response"
	"github.com/segyhp/mediatheque/pkg/retry"
	"github.com/segyhp/mediatheque/pkg/utils"
)

// LoanService is the loan lifecycle as seen by the HTTP layer
type LoanService interface {
	CreateLoan(ctx context.Context, documentID, memberID uuid.UUID) (*domain.Loan, error)
	ReturnLoan(ctx context.Context, loanID uuid.UUID) (*domain.ReturnResult, error)
	RenewLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error)
	DeclareLost(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error)
	RestoreDocument(ctx context.Context, documentID uuid.UUID) (*domain.Document, error)
	GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error)
	ListLoans(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, int, error)
	OverdueSweep(ctx context.Context) (domain.SweepReport, error)
	CheckEligibility(ctx context.Context, memberID uuid.UUID) (*domain.EligibilityResponse, error)
	ListFines(ctx context.Context, memberID uuid.UUID, filter domain.FineFilter) ([]*domain.Fine, int, error)
}

type LoanHandler struct {
	service   LoanService
	validator *validator.Validate
	retry     []retry.Option
	logger    *slog.Logger
}

// NewLoanHandler builds the handler. Transient store failures are retried up
// to attempts times before the client sees a 503.
func NewLoanHandler(service LoanService, attempts int, logger *slog.Logger) *LoanHandler {
	return &LoanHandler{
		service:   service,
		validator: validator.New(),
		retry:     []retry.Option{retry.WithMaxAttempts(attempts)},
		logger:    logger,
	}
}

// Register mounts the loan routes on an /api/v1 subrouter
func (h *LoanHandler) Register(api *mux.Router) {
	api.HandleFunc("/loans", h.CreateLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans", h.ListLoans).Methods(http.MethodGet)
	api.HandleFunc("/loans/overdue-sweep", h.OverdueSweep).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}", h.GetLoan).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/return", h.ReturnLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/renew", h.RenewLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/lost", h.DeclareLost).Methods(http.MethodPost)
	api.HandleFunc("/documents/{documentId}/restore", h.RestoreDocument).Methods(http.MethodPost)
	api.HandleFunc("/members/{memberId}/eligibility", h.Eligibility).Methods(http.MethodGet)
	api.HandleFunc("/members/{memberId}/fines", h.ListFines).Methods(http.MethodGet)
}

// POST /loans
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLoanRequest
	if err := response.Decode(r.Body, &req); err != nil {
		response.BadRequest(w, customError.ErrCodeValidation, "invalid json body", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, customError.ErrCodeValidation, "document_id and member_id are required", err)
		return
	}

	var loan *domain.Loan
	err := h.do(r.Context(), func(ctx context.Context) (err error) {
		loan, err = h.service.CreateLoan(ctx, req.DocumentID, req.MemberID)
		return err
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/loans/"+loan.ID.String())
	response.Created(w, loan)
}

// GET /loans?member_id=&document_id=&status=&due_before=&page=&limit=
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	filter, page, err := loanFilterFrom(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var (
		loans []*domain.Loan
		total int
	)
	err = h.do(r.Context(), func(ctx context.Context) (err error) {
		loans, total, err = h.service.ListLoans(ctx, filter)
		return err
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	response.Paginated(w, loans, utils.NewPagination(page, total))
}

func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	h.loanAction(w, r, func(ctx context.Context, id uuid.UUID) (interface{}, error) {
		return h.service.GetLoan(ctx, id)
	})
}

func (h *LoanHandler) ReturnLoan(w http.ResponseWriter, r *http.Request) {
	h.loanAction(w, r, func(ctx context.Context, id uuid.UUID) (interface{}, error) {
		return h.service.ReturnLoan(ctx, id)
	})
}

func (h *LoanHandler) RenewLoan(w http.ResponseWriter, r *http.Request) {
	h.loanAction(w, r, func(ctx context.Context, id uuid.UUID) (interface{}, error) {
		return h.service.RenewLoan(ctx, id)
	})
}

func (h *LoanHandler) DeclareLost(w http.ResponseWriter, r *http.Request) {
	h.loanAction(w, r, func(ctx context.Context, id uuid.UUID) (interface{}, error) {
		return h.service.DeclareLost(ctx, id)
	})
}

// POST /documents/{documentId}/restore
func (h *LoanHandler) RestoreDocument(w http.ResponseWriter, r *http.Request) {
	documentID, err := pathID(r, "documentId")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var doc *domain.Document
	err = h.do(r.Context(), func(ctx context.Context) (err error) {
		doc, err = h.service.RestoreDocument(ctx, documentID)
		return err
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	response.Success(w, doc)
}

// POST /loans/overdue-sweep runs the sweep now instead of waiting for cron
func (h *LoanHandler) OverdueSweep(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.OverdueSweep(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	response.Success(w, report)
}

// GET /members/{memberId}/eligibility
func (h *LoanHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberId")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var result *domain.EligibilityResponse
	err = h.do(r.Context(), func(ctx context.Context) (err error) {
		result, err = h.service.CheckEligibility(ctx, memberID)
		return err
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	response.Success(w, result)
}

// GET /members/{memberId}/fines?settled=&page=&limit=
func (h *LoanHandler) ListFines(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberId")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	settled, err := queryBool(r, "settled")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	page := queryPage(r)
	limit, offset := page.LimitOffset()
	filter := domain.FineFilter{Settled: settled, Limit: limit, Offset: offset}

	var (
		fines []*domain.Fine
		total int
	)
	err = h.do(r.Context(), func(ctx context.Context) (err error) {
		fines, total, err = h.service.ListFines(ctx, memberID, filter)
		return err
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	response.Paginated(w, fines, utils.NewPagination(page, total))
}

func (h *LoanHandler) loanAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) (interface{}, error)) {
	loanID, err := pathID(r, "loanId")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var result interface{}
	err = h.do(r.Context(), func(ctx context.Context) (err error) {
		result, err = fn(ctx, loanID)
		return err
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	response.Success(w, result)
}

// do runs fn, retrying transient store failures
func (h *LoanHandler) do(ctx context.Context, fn retry.Func) error {
	return retry.Do(ctx, fn, h.retry...)
}

func loanFilterFrom(r *http.Request) (domain.LoanFilter, utils.Page, error) {
	var filter domain.LoanFilter
	page := queryPage(r)

	memberID, err := queryID(r, "member_id")
	if err != nil {
		return filter, page, err
	}
	documentID, err := queryID(r, "document_id")
	if err != nil {
		return filter, page, err
	}
	dueBefore, err := queryTime(r, "due_before")
	if err != nil {
		return filter, page, err
	}

	filter.MemberID = memberID
	filter.DocumentID = documentID
	filter.DueBefore = dueBefore
	for _, s := range queryList(r, "status") {
		filter.Statuses = append(filter.Statuses, domain.LoanStatus(s))
	}
	filter.Limit, filter.Offset = page.LimitOffset()

	return filter, page, nil
}

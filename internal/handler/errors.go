package handler

import (
	"errors"
	"log/slog"
	"net/http"

	customError "github.com/segyhp/mediatheque/pkg/errors"
	"github.com/segyhp/mediatheque/pkg/response"
)

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, customError.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, customError.ErrValidation),
		errors.Is(err, customError.ErrIneligible),
		errors.Is(err, customError.ErrDocumentUnavailable),
		errors.Is(err, customError.ErrAlreadyReturned),
		errors.Is(err, customError.ErrLoanNotRenewable):
		return http.StatusBadRequest
	case errors.Is(err, customError.ErrTransientStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err in the error envelope. Internal failures are logged
// and their details kept out of the body.
func writeError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	status := statusFor(err)
	code := customError.Code(err)

	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.InternalServerError(w, "internal error", nil)
		return
	}

	message := err.Error()
	var be *customError.BusinessError
	if errors.As(err, &be) {
		message = be.Message
	}

	response.Error(w, status, code, message, err)
}

// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// ErrBadRequest marks request decoding failures raised by handlers.
var ErrBadRequest = errors.New("bad request")

// RespondError maps ledger errors to RFC7807 responses. Internal failures,
// including a tax split that stopped balancing, are logged and returned opaque.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		validation *shared.ValidationError
		conflict   *shared.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		write(w, http.StatusBadRequest, ProblemDetail{Title: "Validation Failed", Detail: validation.Detail, Reason: string(validation.Reason)})
	case errors.As(err, &conflict):
		write(w, http.StatusConflict, ProblemDetail{Title: "Conflict", Detail: conflict.Error(), Reason: string(conflict.Reason), Period: conflict.Period})
	case shared.IsNotFound(err):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrBadRequest):
		Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		if logger != nil {
			logger.Error("request failed", slog.Any("error", err))
		}
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

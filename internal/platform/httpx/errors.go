package httpx

import (
	"errors"
	"net/http"

	"github.com/warden-admin/warden/internal/shared"
)

// RespondError maps domain errors onto problem-detail responses. Forbidden
// responses deliberately carry no detail about which permission was missing.
func RespondError(w http.ResponseWriter, err error) {
	var ve *shared.ValidationError
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", shared.UserSafeMessage(err))
	case errors.As(err, &ve):
		JSON(w, http.StatusBadRequest, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: shared.UserSafeMessage(err),
			Fields: ve.Fields,
		})
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

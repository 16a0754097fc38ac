package api

import (
	"errors"
	"net/http"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/perr"
)

// mapError translates a domain sentinel error into an HTTP status, a short
// machine-readable code, and a human message, directly modeled on the
// teacher's pkg/api/errors.go mapServiceError (errors.Is/errors.As against a
// fixed set of sentinels, falling back to 500 for anything unrecognized).
func mapError(err error) (status int, code, message string) {
	var verr *perr.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, "validation_error", verr.Error()
	}
	switch {
	case errors.Is(err, perr.ErrNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, perr.ErrForbidden):
		return http.StatusForbidden, "forbidden", err.Error()
	case errors.Is(err, perr.ErrAlreadyExists):
		// spec.md §6/§8: the upload endpoint's duplicate-name rejection is a
		// 400 validation failure, not a 409 conflict.
		return http.StatusBadRequest, "already_exists", err.Error()
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

package api

import (
	"errors"
	"net/http"

	"github.com/ignite/campaign-targeting/internal/domain"
	"github.com/ignite/campaign-targeting/internal/pkg/httputil"
	"github.com/ignite/campaign-targeting/internal/pkg/logger"
	"github.com/ignite/campaign-targeting/internal/worker"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrTenantNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnknownCampaign),
		errors.Is(err, domain.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, worker.ErrRunInProgress),
		errors.Is(err, domain.ErrStageBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage keeps warehouse and store details out of 5xx responses.
func publicMessage(status int, err error) string {
	if status < http.StatusInternalServerError {
		return err.Error()
	}
	switch {
	case errors.Is(err, domain.ErrQueryTimeout):
		return "warehouse query timed out"
	case errors.Is(err, domain.ErrQueryFailure):
		return "warehouse query failed"
	case errors.Is(err, domain.ErrPartialStage):
		return "staging partially applied, retry the trigger"
	default:
		return "internal server error"
	}
}

// respondError logs the full error server-side and writes a sanitized
// JSON error envelope.
func respondError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Trigger failed", "status", status, "error", err)
	} else {
		logger.Warn("Trigger rejected", "status", status, "error", err)
	}
	httputil.Error(w, status, publicMessage(status, err))
}

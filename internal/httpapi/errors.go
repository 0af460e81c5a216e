package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/campuslink/moderation/internal/logger"
	"github.com/campuslink/moderation/internal/notify"
	"github.com/campuslink/moderation/internal/pipeline"
	"github.com/campuslink/moderation/internal/punish"
	"github.com/campuslink/moderation/internal/storage"
)

type errorPayload struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorPayload{Error: message, ErrorCode: code})
}

// respondError maps core errors onto the API's status and error_code
// contract. Unexpected failures are logged and surfaced as a generic 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var policyErr *pipeline.PolicyError
	if errors.As(err, &policyErr) {
		if policyErr.RateLimited() {
			writeError(w, http.StatusTooManyRequests, policyErr.Message, policyErr.Code)
			return
		}
		writeError(w, http.StatusForbidden, policyErr.Message, policyErr.Code)
		return
	}

	var resolveErr *notify.ResolveError
	if errors.As(err, &resolveErr) {
		status := http.StatusBadRequest
		if strings.HasSuffix(resolveErr.Code, "_NOT_FOUND") {
			status = http.StatusNotFound
		}
		writeError(w, status, resolveErr.Message, resolveErr.Code)
		return
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found", "")
	case errors.Is(err, punish.ErrMissingTarget), errors.Is(err, punish.ErrInvalidType):
		writeError(w, http.StatusBadRequest, err.Error(), "")
	default:
		logger.L().Error("request failed", "err", err, "path", r.URL.Path, "method", r.Method)
		writeError(w, http.StatusInternalServerError, "something went wrong", "")
	}
}

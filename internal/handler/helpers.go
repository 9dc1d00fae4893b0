package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/calluna/rewardbox/internal/redeem"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

// writeEngineError translates the engine's error taxonomy to HTTP. Validation
// and conflict outcomes are expected and surfaced verbatim for user-facing
// messaging; anything unclassified is a store failure.
func writeEngineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case redeem.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, redeem.ErrNotOwner):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case redeem.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case redeem.IsConflict(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		logger.Error("engine error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

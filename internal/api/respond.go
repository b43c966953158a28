package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/readiness-engine/internal/benchmark"
	"github.com/sells-group/readiness-engine/internal/engine"
	"github.com/sells-group/readiness-engine/internal/model"
	"github.com/sells-group/readiness-engine/internal/resilience"
	"github.com/sells-group/readiness-engine/internal/scoring"
	"github.com/sells-group/readiness-engine/internal/signals"
	"github.com/sells-group/readiness-engine/internal/store"
	"github.com/sells-group/readiness-engine/internal/valuation"
)

type errorBody struct {
	Error string `json:"error"`
}

var badRequest = []error{
	model.ErrUnknownCategory,
	model.ErrUnknownImpact,
	model.ErrUnknownDifficulty,
	model.ErrUnknownEffort,
	model.ErrUnknownSeverity,
	model.ErrUnknownConfidence,
	model.ErrUnknownStatus,
	model.ErrUnknownReason,
	scoring.ErrUnknownFactor,
	valuation.ErrMissingMultiples,
	valuation.ErrInvalidMultiples,
	valuation.ErrInvalidDLOMRate,
	valuation.ErrUnknownSizeCategory,
	benchmark.ErrInvalidNAICS,
	engine.ErrInvalidDriftRequest,
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, engine.ErrNoSnapshots):
		return http.StatusNotFound
	case errors.Is(err, signals.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	}
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// limitParam reads ?limit=, returning def when absent.
func limitParam(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return n, nil
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/leshachaplin/loginpipe/internal/apierror"
	"github.com/leshachaplin/loginpipe/internal/worker"
)

// StatsProvider exposes the counters of a running pipeline.
type StatsProvider interface {
	Stats() worker.Stats
}

type Handler struct {
	stats  StatsProvider
	logger zerolog.Logger
}

func NewHandler(stats StatsProvider, logger zerolog.Logger) *Handler {
	return &Handler{
		stats:  stats,
		logger: logger,
	}
}

// Ready answers 200 until the pipeline has failed.
func (h *Handler) Ready(w http.ResponseWriter, _ *http.Request) {
	stats := h.stats.Stats()
	if stats.State == worker.StateFailed {
		apiErr := apierror.NewAPIError("pipeline failed", http.StatusServiceUnavailable)
		apiErr.Details = map[string]interface{}{
			"run_id": stats.RunID,
			"error":  stats.Error,
		}
		h.error(apiErr, w)
		return
	}
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	if err := encodeJSONResponse(w, http.StatusOK, h.stats.Stats()); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode stats.")
	}
}

func (h *Handler) error(err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	var apiErr apierror.Error
	if !errors.As(err, &apiErr) {
		apiErr = apierror.NewAPIError(err.Error(), http.StatusInternalServerError)
	}

	w.WriteHeader(apiErr.StatusCode())
	if err = json.NewEncoder(w).Encode(apiErr); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode api error.")
	}
}

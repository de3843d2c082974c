package api

import (
	"context"
	"net/http"

	service "github.com/okian/dronesoccer/internal/app"
	"github.com/okian/dronesoccer/internal/domain/model"
)

// TelemetryIngester stores drone telemetry batches.
type TelemetryIngester interface {
	IngestTelemetry(ctx context.Context, b model.TelemetryBatch) (service.TelemetryAck, error)
}

// TelemetryHandler handles drone telemetry posts.
type TelemetryHandler struct {
	deps TelemetryIngester
}

// NewTelemetryHandler creates a new telemetry handler.
func NewTelemetryHandler(deps TelemetryIngester) *TelemetryHandler {
	return &TelemetryHandler{deps: deps}
}

// HandlePost handles POST /api/telemetry. A fresh batch answers 202; a
// batch id seen before answers 200 with duplicate=true.
func (h *TelemetryHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	var b model.TelemetryBatch
	if !decode(w, r, &b, false) {
		return
	}
	ack, err := h.deps.IngestTelemetry(r.Context(), b)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if ack.Duplicate {
		writeJSON(w, http.StatusOK, ack)
		return
	}
	writeJSON(w, http.StatusAccepted, ack)
}

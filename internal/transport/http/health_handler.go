package http

import (
	"context"
	"net/http"
	"time"

	"github.com/IgorGrieder/link-redirector/internal/infrastructure/logger"
	"github.com/IgorGrieder/link-redirector/pkg/httputils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status" example:"ok"`
	Store     string `json:"store,omitempty" example:"ok"`
	Timestamp string `json:"timestamp" example:"2024-01-15T10:30:00Z"`
}

// HealthHandler serves liveness and metrics. check, when set, probes the
// link store.
type HealthHandler struct {
	check func(ctx context.Context) error
}

func NewHealthHandler(check func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{check: check}
}

// Health returns the health status of the service
// @Summary      Health check
// @Description  Returns the health status of the API server and its link store
// @Tags         Health
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Failure      503  {object}  HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Timestamp: time.Now().UTC().Format(time.RFC3339)}
	status := http.StatusOK

	if h.check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp.Store = "ok"
		if err := h.check(ctx); err != nil {
			logger.Warn("health check failed", zap.Error(err))
			resp.Status = "degraded"
			resp.Store = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	httputils.RespondJSON(w, status, resp)
}

// Metrics returns Prometheus metrics
func (h *HealthHandler) Metrics() http.Handler {
	return promhttp.Handler()
}

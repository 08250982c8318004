package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"invoicer/internal/domain"
	"invoicer/internal/service"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	batchService service.BatchService
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(batchService service.BatchService) *HealthHandler {
	return &HealthHandler{batchService: batchService}
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Health handles GET /api/health. It reports the provider a new batch would
// use and answers 503 when none is reachable.
func (h *HealthHandler) Health(c *gin.Context) {
	status, err := h.batchService.Health(c.Request.Context())
	if errors.Is(err, domain.ErrNoProviderAvailable) {
		c.JSON(http.StatusServiceUnavailable, APIResponse{
			Success: false,
			Data:    status,
			Error:   &APIError{Code: "NO_PROVIDER_AVAILABLE", Message: "no provider available"},
		})
		return
	}
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, status)
}

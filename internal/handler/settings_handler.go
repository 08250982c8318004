package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"invoicer/internal/service"
)

// SettingsHandler handles provider preference endpoints.
type SettingsHandler struct {
	batchService service.BatchService
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(batchService service.BatchService) *SettingsHandler {
	return &SettingsHandler{batchService: batchService}
}

// Get handles GET /api/settings
func (h *SettingsHandler) Get(c *gin.Context) {
	RespondOK(c, h.batchService.Settings(c.Request.Context()))
}

// Update handles POST /api/settings
func (h *SettingsHandler) Update(c *gin.Context) {
	var input service.SettingsUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	settings, err := h.batchService.UpdateSettings(c.Request.Context(), input)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, settings)
}

// ProviderHandler lists the registered extraction providers.
type ProviderHandler struct {
	batchService service.BatchService
}

// NewProviderHandler creates a new ProviderHandler.
func NewProviderHandler(batchService service.BatchService) *ProviderHandler {
	return &ProviderHandler{batchService: batchService}
}

// List handles GET /api/providers
func (h *ProviderHandler) List(c *gin.Context) {
	RespondOK(c, h.batchService.Providers(c.Request.Context()))
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jengzang/machine-efficiency-go/internal/service"
	"github.com/jengzang/machine-efficiency-go/pkg/response"
)

// ModelHandler reports on the served model
type ModelHandler struct {
	service *service.PredictionService
}

// NewModelHandler creates a new model handler
func NewModelHandler(service *service.PredictionService) *ModelHandler {
	return &ModelHandler{service: service}
}

// GetModel returns the active model's metadata
// GET /api/v1/model
func (h *ModelHandler) GetModel(c *gin.Context) {
	info, err := h.service.ModelInfo()
	if err != nil {
		response.Error(c, statusFor(err), err.Error())
		return
	}
	response.Success(c, info)
}

// Health reports liveness
// GET /health
func (h *ModelHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

// Ready reports whether predictions can be served
// GET /ready
func (h *ModelHandler) Ready(c *gin.Context) {
	if !h.service.Ready() {
		response.ServiceUnavailable(c, "model not loaded yet")
		return
	}
	response.Success(c, gin.H{"status": "ready"})
}

package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/machine-efficiency-go/internal/pipeline"
	"github.com/jengzang/machine-efficiency-go/internal/service"
	"github.com/jengzang/machine-efficiency-go/pkg/response"
)

// RunHandler handles HTTP requests for pipeline runs
type RunHandler struct {
	service *service.RunService
}

// NewRunHandler creates a new run handler
func NewRunHandler(service *service.RunService) *RunHandler {
	return &RunHandler{service: service}
}

// ListRuns retrieves runs, newest first. With current=true it returns the
// run being served instead.
// GET /api/v1/runs
func (h *RunHandler) ListRuns(c *gin.Context) {
	if current, _ := strconv.ParseBool(c.Query("current")); current {
		run, err := h.service.CurrentRun()
		if err != nil {
			response.Error(c, statusFor(err), err.Error())
			return
		}
		response.Success(c, run)
		return
	}

	kind := c.Query("kind")
	status := c.Query("status")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		offset = 0
	}

	runs, total, err := h.service.ListRuns(kind, status, limit, offset)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"runs":   runs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetRun retrieves a run by ID
// GET /api/v1/runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	run, err := h.service.GetRun(c.Param("id"))
	if err != nil {
		response.Error(c, statusFor(err), err.Error())
		return
	}
	response.Success(c, run)
}

// TriggerRun starts a retraining chain
// POST /api/v1/runs
func (h *RunHandler) TriggerRun(c *gin.Context) {
	id, err := h.service.TriggerRetrain("api")
	if errors.Is(err, pipeline.ErrChainRunning) {
		response.ErrorWithData(c, http.StatusConflict, err.Error(), gin.H{"run_id": id})
		return
	}
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Accepted(c, gin.H{"run_id": id, "status": "pending"})
}

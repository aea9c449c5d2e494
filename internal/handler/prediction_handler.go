package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/machine-efficiency-go/internal/features"
	"github.com/jengzang/machine-efficiency-go/internal/logger"
	"github.com/jengzang/machine-efficiency-go/internal/service"
	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
	"github.com/jengzang/machine-efficiency-go/pkg/response"
)

// PredictionHandler handles HTTP requests for predictions
type PredictionHandler struct {
	service *service.PredictionService
	log     *slog.Logger
}

// NewPredictionHandler creates a new prediction handler
func NewPredictionHandler(service *service.PredictionService, log *slog.Logger) *PredictionHandler {
	return &PredictionHandler{service: service, log: logger.OrDiscard(log)}
}

// Predict classifies one machine reading
// POST /api/v1/predict
func (h *PredictionHandler) Predict(c *gin.Context) {
	fields, err := readFields(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	pred, err := h.service.Predict(fields)
	if err != nil {
		status := statusFor(err)
		switch {
		case apperr.KindOf(err) == apperr.UnknownCategory:
			response.Error(c, status, fmt.Sprintf("cannot classify: unknown operation mode %q", fields[features.ColOperationMode]))
		case status == http.StatusServiceUnavailable:
			response.ServiceUnavailable(c, "model not available: "+apperr.Message(err))
		case status == http.StatusInternalServerError:
			h.log.Error("prediction failed", "kind", apperr.KindOf(err), "error", err)
			response.InternalError(c, "prediction failed")
		default:
			response.Error(c, status, apperr.Message(err))
		}
		return
	}

	response.Success(c, pred)
}

// Schema describes the prediction input
// GET /api/v1/predict/schema
func (h *PredictionHandler) Schema(c *gin.Context) {
	schema, err := h.service.Schema()
	if err != nil {
		response.Error(c, statusFor(err), err.Error())
		return
	}
	response.Success(c, schema)
}

// readFields accepts a flat JSON object or form fields.
func readFields(c *gin.Context) (map[string]string, error) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var raw map[string]any
		dec := json.NewDecoder(c.Request.Body)
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		fields := make(map[string]string, len(raw))
		for k, v := range raw {
			switch x := v.(type) {
			case string:
				fields[k] = x
			case json.Number:
				fields[k] = x.String()
			case bool:
				fields[k] = strconv.FormatBool(x)
			case nil:
			default:
				return nil, fmt.Errorf("field %s must be a string or number", k)
			}
		}
		return fields, nil
	}

	if err := c.Request.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form body: %w", err)
	}
	fields := make(map[string]string, len(c.Request.PostForm))
	for k, v := range c.Request.PostForm {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields, nil
}

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/machine-efficiency-go/internal/handler"
	"github.com/jengzang/machine-efficiency-go/internal/logger"
	"github.com/jengzang/machine-efficiency-go/internal/middleware"
	"github.com/jengzang/machine-efficiency-go/internal/service"
)

// Deps are the services behind the routes.
type Deps struct {
	Predictions *service.PredictionService
	Runs        *service.RunService
	Logger      *slog.Logger

	// RateLimit applies to the predict endpoint; zero disables it.
	RateLimit       int
	RateLimitWindow time.Duration
}

// SetupRouter 设置路由. ctx bounds background helpers such as the rate
// limiter's cleanup.
func SetupRouter(ctx context.Context, deps Deps) *gin.Engine {
	log := logger.OrDiscard(deps.Logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log))

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	predictionHandler := handler.NewPredictionHandler(deps.Predictions, log)
	modelHandler := handler.NewModelHandler(deps.Predictions)

	// 健康检查
	r.GET("/health", modelHandler.Health)
	r.GET("/ready", modelHandler.Ready)

	// API 路由组
	api := r.Group("/api/v1")
	{
		predict := api.Group("/predict")
		{
			predict.GET("/schema", predictionHandler.Schema)
			if deps.RateLimit > 0 {
				predict.POST("", middleware.RateLimit(ctx, deps.RateLimit, deps.RateLimitWindow), predictionHandler.Predict)
			} else {
				predict.POST("", predictionHandler.Predict)
			}
		}

		api.GET("/model", modelHandler.GetModel)

		if deps.Runs != nil {
			runHandler := handler.NewRunHandler(deps.Runs)
			runs := api.Group("/runs")
			{
				runs.GET("", runHandler.ListRuns)
				runs.GET("/:id", runHandler.GetRun)
				runs.POST("", runHandler.TriggerRun)
			}
		}
	}

	return r
}

package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/machine-efficiency-go/internal/api"
	"github.com/jengzang/machine-efficiency-go/internal/database"
	"github.com/jengzang/machine-efficiency-go/internal/features"
	"github.com/jengzang/machine-efficiency-go/internal/inference"
	"github.com/jengzang/machine-efficiency-go/internal/model"
	"github.com/jengzang/machine-efficiency-go/internal/models"
	"github.com/jengzang/machine-efficiency-go/internal/pipeline"
	"github.com/jengzang/machine-efficiency-go/internal/repository"
	"github.com/jengzang/machine-efficiency-go/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func writeCSV(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Timestamp,Machine_ID,Operation_Mode,Temperature_C,Vibration_Hz,Power_Consumption_kW," +
		"Network_Latency_ms,Packet_Loss_%,Quality_Control_Defect_Rate_%,Production_Speed_units_per_hr," +
		"Predictive_Maintenance_Score,Error_Rate_%,Efficiency_Status\n")
	modes := []string{"Idle", "Active", "Maintenance"}
	errorRate := []float64{14, 8, 2}
	for c, label := range []string{"Low", "Medium", "High"} {
		for i := 0; i < 5; i++ {
			fmt.Fprintf(&b, "2024-02-%02d %02d:00:00,%d,%s,%d,2,5,20,1,3,300,0.5,%.1f,%s\n",
				i+1, i, c*5+i, modes[i%3], 60+i, errorRate[c]+float64(i)/10, label)
		}
	}
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

type fixture struct {
	root   string
	raw    string
	holder *inference.Holder
	runs   *repository.RunRepository
	evals  *repository.EvaluationRepository
	chains *pipeline.Service
}

func newFixture(t *testing.T, stages ...pipeline.Stage) *fixture {
	t.Helper()
	root := t.TempDir()

	db, err := database.Open(database.Config{Path: filepath.Join(root, "runs.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	if len(stages) == 0 {
		stages = []pipeline.Stage{
			&pipeline.PrepareStage{Options: pipeline.DefaultPrepareOptions()},
			&pipeline.TrainStage{Options: pipeline.TrainOptions{Model: model.DefaultOptions()}},
			&pipeline.PromoteStage{},
		}
	}

	f := &fixture{
		root:   root,
		raw:    writeCSV(t, root),
		holder: inference.NewHolder(),
		runs:   repository.NewRunRepository(db),
		evals:  repository.NewEvaluationRepository(db),
	}
	runner := pipeline.NewRunner(pipeline.NewRegistry(stages...), f.runs, f.evals, nil)
	f.chains = pipeline.NewService(runner, pipeline.ChainConfig{
		RawData:     f.raw,
		RunsDir:     filepath.Join(root, "runs"),
		PointerPath: filepath.Join(root, "current.json"),
	}, nil)
	t.Cleanup(f.chains.Close)
	return f
}

// promote runs a full chain synchronously and loads the result.
func (f *fixture) promote(t *testing.T) string {
	t.Helper()
	rc := f.chains.NewRunContext()
	require.NoError(t, f.chains.RunChain(context.Background(), rc, "test"))
	p, err := inference.LoadCurrent(rc.PointerPath)
	require.NoError(t, err)
	f.holder.Store(p)
	return rc.RunID
}

func (f *fixture) router(t *testing.T, rateLimit int) *gin.Engine {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return api.SetupRouter(ctx, api.Deps{
		Predictions:     service.NewPredictionService(f.holder, f.evals),
		Runs:            service.NewRunService(f.runs, f.evals, f.chains),
		RateLimit:       rateLimit,
		RateLimitWindow: time.Minute,
	})
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func get(path string) *http.Request {
	return httptest.NewRequest(http.MethodGet, path, nil)
}

func postJSON(path string, body any) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(b)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func reading() map[string]any {
	return map[string]any{
		features.ColOperationMode:    "Active",
		features.ColTemperature:      61,
		features.ColVibration:        2,
		features.ColPower:            5,
		features.ColLatency:          20,
		features.ColPacketLoss:       1,
		features.ColDefectRate:       3,
		features.ColProductionSpeed:  300,
		features.ColMaintenanceScore: 0.5,
		features.ColErrorRate:        "2.2",
		features.ColYear:             2024,
		features.ColMonth:            2,
		features.ColDay:              3,
		features.ColHour:             4,
	}
}

func TestNotReady(t *testing.T) {
	f := newFixture(t)
	r := f.router(t, 0)

	w, _ := do(t, r, get("/health"))
	require.Equal(t, http.StatusOK, w.Code)

	for _, req := range []*http.Request{
		get("/ready"),
		get("/api/v1/model"),
		get("/api/v1/predict/schema"),
		postJSON("/api/v1/predict", reading()),
	} {
		w, env := do(t, r, req)
		require.Equal(t, http.StatusServiceUnavailable, w.Code, req.URL.Path)
		require.Equal(t, http.StatusServiceUnavailable, env.Code)
	}

	w, _ = do(t, r, get("/api/v1/runs?current=true"))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestPredict(t *testing.T) {
	f := newFixture(t)
	runID := f.promote(t)
	r := f.router(t, 0)

	w, _ := do(t, r, get("/ready"))
	require.Equal(t, http.StatusOK, w.Code)

	w, env := do(t, r, postJSON("/api/v1/predict", reading()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, 0, env.Code)

	var pred inference.Prediction
	require.NoError(t, json.Unmarshal(env.Data, &pred))
	require.Contains(t, []string{"Low", "Medium", "High"}, pred.Label)
	require.Len(t, pred.Probabilities, 3)
	require.Equal(t, runID, pred.RunID)

	form := url.Values{}
	for k, v := range reading() {
		form.Set(k, fmt.Sprint(v))
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w, env = do(t, r, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var formPred inference.Prediction
	require.NoError(t, json.Unmarshal(env.Data, &formPred))
	require.Equal(t, pred.Label, formPred.Label)
	require.InDeltaMapValues(t, pred.Probabilities, formPred.Probabilities, 1e-12)
}

func TestPredictRejections(t *testing.T) {
	f := newFixture(t)
	f.promote(t)
	r := f.router(t, 0)

	body := reading()
	body[features.ColOperationMode] = "Turbo"
	w, env := do(t, r, postJSON("/api/v1/predict", body))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, `cannot classify: unknown operation mode "Turbo"`, env.Message)

	body = reading()
	delete(body, features.ColVibration)
	w, env = do(t, r, postJSON("/api/v1/predict", body))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, env.Message, features.ColVibration)

	body = reading()
	body[features.ColPower] = "lots"
	w, _ = do(t, r, postJSON("/api/v1/predict", body))
	require.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w, _ = do(t, r, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSchemaAndModel(t *testing.T) {
	f := newFixture(t)
	runID := f.promote(t)
	r := f.router(t, 0)

	w, env := do(t, r, get("/api/v1/predict/schema"))
	require.Equal(t, http.StatusOK, w.Code)
	var schema inference.Schema
	require.NoError(t, json.Unmarshal(env.Data, &schema))
	require.Equal(t, features.Names, schema.Features)
	require.Equal(t, []string{"Idle", "Active", "Maintenance"}, schema.OperationModes)

	w, env = do(t, r, get("/api/v1/model"))
	require.Equal(t, http.StatusOK, w.Code)
	var info service.ModelInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	require.Equal(t, runID, info.RunID)
	require.NotNil(t, info.Evaluation)
	require.Equal(t, runID, info.Evaluation.RunID)
}

func TestTriggerRun(t *testing.T) {
	f := newFixture(t)
	r := f.router(t, 0)

	w, env := do(t, r, postJSON("/api/v1/runs", nil))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var started struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &started))
	require.NotEmpty(t, started.RunID)

	f.chains.Wait()

	w, env = do(t, r, get("/api/v1/runs/"+started.RunID))
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		models.Run
		Evaluation *models.Evaluation `json:"evaluation"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	require.Equal(t, models.RunStatusCompleted, detail.Status)
	require.Equal(t, models.RunKindChain, detail.Kind)
	require.NotZero(t, detail.PromotedAt)
	require.NotNil(t, detail.Evaluation)

	w, env = do(t, r, get("/api/v1/runs?status=completed"))
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Runs  []models.Run `json:"runs"`
		Total int          `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Equal(t, 1, list.Total)
	require.Equal(t, started.RunID, list.Runs[0].ID)

	w, env = do(t, r, get("/api/v1/runs?current=true"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var current struct {
		models.Run
		Evaluation *models.Evaluation `json:"evaluation"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &current))
	require.Equal(t, started.RunID, current.ID)
	require.NotNil(t, current.Evaluation)

	w, _ = do(t, r, get("/api/v1/runs?status=bogus"))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, get("/api/v1/runs/does-not-exist"))
	require.Equal(t, http.StatusNotFound, w.Code)
}

// gateStage blocks until release is closed.
type gateStage struct {
	name    string
	release chan struct{}
}

func (s *gateStage) Name() string { return s.name }

func (s *gateStage) Run(ctx context.Context, _ *pipeline.RunContext) error {
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestTriggerRunConflict(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t,
		&gateStage{name: pipeline.StagePrepare, release: release},
		&gateStage{name: pipeline.StageTrain, release: release},
		&gateStage{name: pipeline.StagePromote, release: release},
	)
	r := f.router(t, 0)

	w, env := do(t, r, postJSON("/api/v1/runs", nil))
	require.Equal(t, http.StatusAccepted, w.Code)
	var first struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &first))

	w, env = do(t, r, postJSON("/api/v1/runs", nil))
	require.Equal(t, http.StatusConflict, w.Code)
	var second struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &second))
	require.Equal(t, first.RunID, second.RunID)

	close(release)
	f.chains.Wait()

	w, _ = do(t, r, postJSON("/api/v1/runs", nil))
	require.Equal(t, http.StatusAccepted, w.Code)
	f.chains.Wait()
}

func TestPredictRateLimit(t *testing.T) {
	f := newFixture(t)
	f.promote(t)
	r := f.router(t, 2)

	for i := 0; i < 2; i++ {
		w, _ := do(t, r, postJSON("/api/v1/predict", reading()))
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, env := do(t, r, postJSON("/api/v1/predict", reading()))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "60", w.Header().Get("Retry-After"))
	require.Equal(t, http.StatusTooManyRequests, env.Code)

	// other routes are not limited
	w, _ = do(t, r, get("/api/v1/predict/schema"))
	require.Equal(t, http.StatusOK, w.Code)
}

package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/jengzang/machine-efficiency-go/internal/logger"
	"github.com/jengzang/machine-efficiency-go/internal/models"
)

// ErrChainRunning is returned while a retraining chain is in progress.
var ErrChainRunning = errors.New("a retraining run is already in progress")

// ChainConfig locates the inputs and outputs of a retraining chain.
type ChainConfig struct {
	RawData     string
	RunsDir     string
	PointerPath string
}

// RunPaths returns the processed and model directories of a run.
func (c ChainConfig) RunPaths(runID string) (processed, modelDir string) {
	base := filepath.Join(c.RunsDir, runID)
	return filepath.Join(base, "processed"), filepath.Join(base, "models")
}

// Service runs retraining chains in the background, one at a time.
type Service struct {
	runner *Runner
	cfg    ChainConfig
	log    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active string
}

// NewService creates a chain service. Close stops it.
func NewService(runner *Runner, cfg ChainConfig, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		runner: runner,
		cfg:    cfg,
		log:    logger.OrDiscard(log),
		ctx:    ctx,
		cancel: cancel,
	}
}

// NewRunContext prepares a chain run under a fresh run directory.
func (s *Service) NewRunContext() *RunContext {
	id := uuid.NewString()
	processed, modelDir := s.cfg.RunPaths(id)
	return &RunContext{
		RunID:        id,
		RawData:      s.cfg.RawData,
		ProcessedDir: processed,
		ModelDir:     modelDir,
		PointerPath:  s.cfg.PointerPath,
	}
}

// RunChain runs prepare, train and promote synchronously.
func (s *Service) RunChain(ctx context.Context, rc *RunContext, createdBy string) error {
	return s.runner.Run(ctx, models.RunKindChain, ChainStages, rc, createdBy)
}

// TriggerChain starts a chain in the background and returns its run ID.
// It fails with ErrChainRunning while another chain is active.
func (s *Service) TriggerChain(createdBy string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != "" {
		return s.active, ErrChainRunning
	}

	rc := s.NewRunContext()
	s.active = rc.RunID
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.active = ""
			s.mu.Unlock()
		}()

		if err := s.RunChain(s.ctx, rc, createdBy); err != nil {
			s.log.Warn("background run ended with error", "run_id", rc.RunID, "error", err)
		}
	}()

	return rc.RunID, nil
}

// Active returns the ID of the running chain, or "".
func (s *Service) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Wait blocks until no chain is running.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close cancels a running chain and waits for it.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

package pipeline

import (
	"context"
	"log/slog"
	"path"
	"time"

	"github.com/jengzang/machine-efficiency-go/internal/artifact"
	"github.com/jengzang/machine-efficiency-go/internal/inference"
	"github.com/jengzang/machine-efficiency-go/internal/logger"
	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// PromoteOptions control the promotion stage.
type PromoteOptions struct {
	RunID        string
	ProcessedDir string
	ModelDir     string
	PointerPath  string
	// Mirror receives a copy of every artifact before the pointer moves.
	// Nil skips mirroring.
	Mirror artifact.Mirror
	Now    func() time.Time
	Logger *slog.Logger
}

// Promote makes a run's artifacts the ones served. The run is loaded the way
// the server would load it first, so a broken run never becomes current.
func Promote(ctx context.Context, opts PromoteOptions) (*artifact.Pointer, error) {
	log := logger.OrDiscard(opts.Logger).With("stage", StagePromote, "run_id", opts.RunID)

	ptr, err := promote(ctx, log, opts)
	if err != nil {
		err = apperr.Wrap(err, "promote run "+opts.RunID)
		logFailure(log, err)
		return nil, err
	}
	return ptr, nil
}

func promote(ctx context.Context, log *slog.Logger, opts PromoteOptions) (*artifact.Pointer, error) {
	if opts.PointerPath == "" {
		return nil, apperr.New(apperr.InvalidInput, "no pointer path")
	}
	if _, err := inference.Load(opts.ProcessedDir, opts.ModelDir); err != nil {
		return nil, err
	}

	if opts.Mirror != nil {
		for _, d := range []struct {
			dir, sub string
			names    []string
		}{
			{opts.ProcessedDir, "processed", artifact.ProcessedFiles},
			{opts.ModelDir, "models", artifact.ModelFiles},
		} {
			n, err := artifact.MirrorDir(ctx, opts.Mirror, d.dir, path.Join(opts.RunID, d.sub), d.names)
			if err != nil {
				return nil, err
			}
			log.Info("artifacts mirrored", "dir", d.dir, "files", n)
		}
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	ptr := &artifact.Pointer{
		RunID:        opts.RunID,
		ProcessedDir: opts.ProcessedDir,
		ModelDir:     opts.ModelDir,
		PromotedAt:   now().UTC(),
	}
	if err := artifact.WritePointer(opts.PointerPath, ptr); err != nil {
		return nil, err
	}
	log.Info("run promoted", "pointer", opts.PointerPath)
	return ptr, nil
}

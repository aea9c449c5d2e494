package inference

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jengzang/machine-efficiency-go/internal/logger"
	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// Watcher reloads the holder whenever the pointer file is replaced.
type Watcher struct {
	path     string
	holder   *Holder
	log      *slog.Logger
	debounce time.Duration

	// loaded is called after every reload attempt; tests hook it.
	loaded func(*Predictor, error)
}

// NewWatcher watches pointerPath on behalf of holder.
func NewWatcher(pointerPath string, holder *Holder, log *slog.Logger) *Watcher {
	return &Watcher{
		path:     filepath.Clean(pointerPath),
		holder:   holder,
		log:      logger.OrDiscard(log),
		debounce: 200 * time.Millisecond,
	}
}

// Reload loads the pointed-to run and swaps it in. On failure the previous
// predictor stays active.
func (w *Watcher) Reload() (*Predictor, error) {
	p, err := LoadCurrent(w.path)
	if err != nil {
		w.log.Warn("reload failed; keeping previous model",
			"kind", apperr.KindOf(err), "error", err)
	} else {
		w.holder.Store(p)
		w.log.Info("model loaded", "run_id", p.RunID, "model_dir", p.ModelDir)
	}
	if w.loaded != nil {
		w.loaded(p, err)
	}
	return p, err
}

// Run blocks until ctx is done. The pointer's directory is watched rather
// than the file because promotion replaces the file by rename.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return apperr.WrapAs(apperr.Internal, err, "create file watcher")
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return apperr.WrapAs(apperr.Internal, err, "watch "+filepath.Dir(w.path))
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != w.path {
				continue
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
				continue
			}
			// a rename fires several events; reload once they settle
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("file watcher error", "error", err)
		case <-timer.C:
			w.Reload()
		}
	}
}

package pipeline

import (
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// logFailure writes err at ERROR with the location where it was first raised.
func logFailure(log *slog.Logger, err error) {
	attrs := []any{
		"kind", string(apperr.KindOf(err)),
		"message", apperr.Message(err),
	}

	var origin *apperr.Error
	for cur := err; cur != nil; {
		var e *apperr.Error
		if !errors.As(cur, &e) {
			break
		}
		origin = e
		cur = e.Cause
	}
	if origin != nil {
		attrs = append(attrs,
			"file", filepath.Base(origin.File),
			"line", origin.Line,
			"func", origin.Func,
		)
	}
	attrs = append(attrs, "stack", apperr.StackOf(err))

	log.Error("stage failed", attrs...)
}

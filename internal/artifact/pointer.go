package artifact

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// Pointer names the artifact directories currently served.
type Pointer struct {
	RunID        string    `json:"run_id"`
	ProcessedDir string    `json:"processed_dir"`
	ModelDir     string    `json:"model_dir"`
	PromotedAt   time.Time `json:"promoted_at"`
}

// ReadPointer loads the pointer file at path.
func ReadPointer(path string) (*Pointer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.WrapAs(apperr.ArtifactNotFound, err, "no promoted run")
		}
		return nil, apperr.WrapAs(apperr.Internal, err, "read "+path)
	}

	var p Pointer
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, apperr.WrapAs(apperr.ArtifactInvalid, err, "decode "+path)
	}
	if p.ProcessedDir == "" || p.ModelDir == "" {
		return nil, apperr.New(apperr.ArtifactInvalid, "%s names no artifact directories", path)
	}
	return &p, nil
}

// WritePointer atomically replaces the pointer file at path.
func WritePointer(path string, p *Pointer) error {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return apperr.WrapAs(apperr.Internal, err, "encode pointer")
	}
	return WriteFile(path, append(b, '\n'))
}

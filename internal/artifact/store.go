// Package artifact persists pipeline outputs as whole files.
//
// Every artifact is one deterministic CBOR document written through a
// temporary file and renamed into place, so readers see either the old or the
// new file and never a partial one. Encoding the same value twice yields the
// same bytes.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// Artifact file names.
const (
	XTrain     = "X_train.cbor"
	XTest      = "X_test.cbor"
	YTrain     = "y_train.cbor"
	YTest      = "y_test.cbor"
	Scaler     = "scaler.cbor"
	Encoders   = "encoders.cbor"
	Model      = "model.cbor"
	Evaluation = "evaluation.cbor"
	Profile    = "profile.cbor"
)

// ProcessedFiles are written by the data-split stage.
var ProcessedFiles = []string{XTrain, XTest, YTrain, YTest, Scaler, Encoders, Profile}

// ModelFiles are written by the training stage.
var ModelFiles = []string{Model, Evaluation}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, apperr.WrapAs(apperr.Internal, err, "encode artifact")
	}
	return b, nil
}

// Save writes v to dir/name atomically, creating dir if needed.
func Save(dir, name string, v any) error {
	b, err := Marshal(v)
	if err != nil {
		return apperr.Wrap(err, name)
	}
	return WriteFile(filepath.Join(dir, name), b)
}

// Load decodes dir/name into v. A missing file is ArtifactNotFound and an
// undecodable one is ArtifactInvalid.
func Load(dir, name string, v any) error {
	_, err := LoadDigest(dir, name, v)
	return err
}

// LoadDigest is Load that also returns the digest of the decoded bytes.
func LoadDigest(dir, name string, v any) (string, error) {
	path := filepath.Join(dir, name)
	b, err := read(dir, name)
	if err != nil {
		return "", err
	}
	if err := cbor.Unmarshal(b, v); err != nil {
		return "", apperr.WrapAs(apperr.ArtifactInvalid, err, "decode "+path)
	}
	return digest(b), nil
}

// Digest returns the hex SHA-256 of dir/name. Artifacts are encoded
// deterministically, so equal values have equal digests.
func Digest(dir, name string) (string, error) {
	b, err := read(dir, name)
	if err != nil {
		return "", err
	}
	return digest(b), nil
}

func read(dir, name string) ([]byte, error) {
	path := filepath.Join(dir, name)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.WrapAs(apperr.ArtifactNotFound, err, "artifact "+name+" missing in "+dir)
		}
		return nil, apperr.WrapAs(apperr.Internal, err, "read "+path)
	}
	return b, nil
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// WriteFile replaces path with data via a synced temp file in the same
// directory followed by a rename.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.WrapAs(apperr.Internal, err, "create "+dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return apperr.WrapAs(apperr.Internal, err, "create temp file in "+dir)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperr.WrapAs(apperr.Internal, err, "write "+tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return apperr.WrapAs(apperr.Internal, err, "sync "+tmpName)
	}
	if err := tmp.Close(); err != nil {
		return apperr.WrapAs(apperr.Internal, err, "close "+tmpName)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return apperr.WrapAs(apperr.Internal, err, "chmod "+tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return apperr.WrapAs(apperr.Internal, err, "rename into "+path)
	}
	return nil
}

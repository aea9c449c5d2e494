package artifact

import (
	"bytes"
	"context"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// Mirror copies promoted artifacts to secondary storage.
type Mirror interface {
	Upload(ctx context.Context, key string, data []byte) error
}

// NopMirror discards uploads.
type NopMirror struct{}

func (NopMirror) Upload(context.Context, string, []byte) error { return nil }

// S3Mirror uploads to an S3 compatible bucket.
type S3Mirror struct {
	Client *minio.Client
	Bucket string
	Prefix string
}

// NewS3Mirror connects to endpoint with static credentials.
func NewS3Mirror(endpoint, accessKeyID, secretKey, bucket, prefix string, secure bool) (*S3Mirror, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, apperr.WrapAs(apperr.Internal, err, "create S3 client")
	}
	return &S3Mirror{Client: client, Bucket: bucket, Prefix: prefix}, nil
}

func (s *S3Mirror) Upload(ctx context.Context, key string, data []byte) error {
	if s == nil || s.Client == nil {
		return apperr.New(apperr.Internal, "s3 client not initialized")
	}

	_, err := s.Client.PutObject(
		ctx,
		s.Bucket,
		path.Join(s.Prefix, key),
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType: "application/cbor",
		},
	)
	if err != nil {
		return apperr.WrapAs(apperr.Internal, err, "s3 put object "+key)
	}
	return nil
}

// MirrorDir uploads the named files of dir under keyPrefix. Missing files
// are skipped.
func MirrorDir(ctx context.Context, m Mirror, dir, keyPrefix string, names []string) (int, error) {
	uploaded := 0
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return uploaded, apperr.WrapAs(apperr.Internal, err, "read "+name)
		}
		if err := m.Upload(ctx, path.Join(keyPrefix, name), data); err != nil {
			return uploaded, err
		}
		uploaded++
	}
	return uploaded, nil
}

package storage

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/supaconn/supaconn/errors"
)

// S3Config targets the platform's S3-compatible storage endpoint, useful for
// bulk transfers that should skip the REST object routes.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// S3Transfer moves object content over the S3 protocol.
type S3Transfer struct {
	c *minio.Client
}

func NewS3Transfer(cfg S3Config) (*S3Transfer, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Region: cfg.Region,
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error in creating s3 client")
	}
	return &S3Transfer{c: client}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *S3Transfer) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.c.BucketExists(ctx, bucket)
	if err != nil {
		return errors.Wrap(err, "error in checking bucket '%s'", bucket)
	}
	if exists {
		return nil
	}
	return errors.Wrap(s.c.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}), "error in creating bucket '%s'", bucket)
}

// Upload streams r into bucket/key. Pass size -1 when unknown.
func (s *S3Transfer) Upload(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.c.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType: guessContentType(key, contentType),
	})
	return errors.Wrap(err, "error in uploading '%s'", key)
}

// Download returns a reader over bucket/key. The caller closes it.
func (s *S3Transfer) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := s.c.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "error in downloading '%s'", key)
	}
	return obj, nil
}

package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// Uploader copies rendered maps to S3-compatible storage.
type Uploader struct {
	client *minio.Client
	bucket string
	region string
}

// NewUploaderFromEnv connects using MINIO_ENDPOINT, MINIO_ACCESS_KEY,
// MINIO_SECRET_KEY and MINIO_USE_SSL.
func NewUploaderFromEnv(bucket, region string) (*Uploader, error) {
	if bucket == "" {
		return nil, errors.New("upload bucket is empty")
	}

	endpoint := os.Getenv("MINIO_ENDPOINT")
	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	if endpoint == "" || accessKey == "" || secretKey == "" {
		return nil, errors.New("missing one or more required environment variables: MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return &Uploader{client: client, bucket: bucket, region: region}, nil
}

// Upload stores the file at path under key, creating the bucket when needed.
// An empty key uses the file name.
func (u *Uploader) Upload(ctx context.Context, path, key string) error {
	if key == "" {
		key = filepath.Base(path)
	}

	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if !exists {
		if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: u.region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", u.bucket, err)
		}
	}

	info, err := u.client.FPutObject(ctx, u.bucket, key, path, minio.PutObjectOptions{
		ContentType: FormatFromPath(path).ContentType(),
	})
	if err != nil {
		return fmt.Errorf("upload %s to %s/%s: %w", path, u.bucket, key, err)
	}

	log.Info().
		Str("bucket", u.bucket).
		Str("key", key).
		Int64("size", info.Size).
		Msg("Map image uploaded")

	return nil
}

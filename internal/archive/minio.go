package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var _ Uploader = (*MinioUploader)(nil)

// MinioUploader keeps objects in one S3-compatible bucket.
type MinioUploader struct {
	client *minio.Client
	bucket string
}

func NewMinioUploader(endpoint, id, secret string, ssl bool, bucket string) (*MinioUploader, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(id, secret, ""),
		Secure: ssl,
	})
	if err != nil {
		return nil, fmt.Errorf("archive: creating minio client: %w", err)
	}
	return &MinioUploader{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (u *MinioUploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("archive: checking bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("archive: creating bucket %s: %w", u.bucket, err)
	}
	return nil
}

func (u *MinioUploader) Upload(ctx context.Context, key string, reader io.ReadSeeker, length int64) error {
	_, err := u.client.PutObject(ctx, u.bucket, key, reader, length, minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return fmt.Errorf("archive: putting %s: %w", key, err)
	}
	return nil
}

func (u *MinioUploader) StoreIdentifier() string {
	return u.bucket
}

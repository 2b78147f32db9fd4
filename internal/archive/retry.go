package archive

import (
	"context"
	"io"
	"time"

	"github.com/sethvargo/go-retry"
)

var _ Uploader = (*RetryUploader)(nil)

// RetryUploader wraps every call in a backoff loop.
type RetryUploader struct {
	uploader Uploader
	backoff  func() retry.Backoff
}

// NewRetryUploader retries with exponential backoff for up to 30 seconds.
func NewRetryUploader(u Uploader) *RetryUploader {
	return NewRetryUploaderBackoff(u, func() retry.Backoff {
		b := retry.NewExponential(200 * time.Millisecond)
		b = retry.WithCappedDuration(5*time.Second, b)
		return retry.WithMaxDuration(30*time.Second, b)
	})
}

// NewRetryUploaderBackoff takes a factory since Backoff values are stateful.
func NewRetryUploaderBackoff(u Uploader, backoff func() retry.Backoff) *RetryUploader {
	return &RetryUploader{uploader: u, backoff: backoff}
}

func (r *RetryUploader) Upload(ctx context.Context, key string, reader io.ReadSeeker, length int64) error {
	return retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		if _, err := reader.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if err := r.uploader.Upload(ctx, key, reader, length); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (r *RetryUploader) StoreIdentifier() string {
	return r.uploader.StoreIdentifier()
}

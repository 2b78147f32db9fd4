// Package archive stores submitted source code in object storage.
package archive

import (
	"bytes"
	"context"
	"io"
	"path"
)

// Uploader persists blobs by key.
type Uploader interface {
	// Upload creates or overwrites the object at key. reader is read from
	// its current position; implementations that retry seek it back to 0.
	Upload(ctx context.Context, key string, reader io.ReadSeeker, length int64) error
	// StoreIdentifier names the destination for logs, e.g. the bucket.
	StoreIdentifier() string
}

// SourceKey is where a submission's source is kept.
func SourceKey(submissionID string) string {
	return path.Join("submissions", submissionID, "source")
}

// Source archives one submission's source code.
type Source struct {
	uploader Uploader
}

func NewSource(u Uploader) *Source {
	return &Source{uploader: u}
}

func (s *Source) Put(ctx context.Context, submissionID, source string) error {
	b := []byte(source)
	return s.uploader.Upload(ctx, SourceKey(submissionID), bytes.NewReader(b), int64(len(b)))
}

func (s *Source) Store() string {
	return s.uploader.StoreIdentifier()
}

package port

import (
	"context"
	"io"
)

// UploadInput describes one object to store.
type UploadInput struct {
	Bucket      string
	Key         string
	Body        io.Reader
	ContentType string
}

// UploadOutput contains the location of a stored object.
type UploadOutput struct {
	Location string
	ETag     string
}

// ObjectStorage mirrors session archives to remote object storage.
type ObjectStorage interface {
	Upload(ctx context.Context, input UploadInput) (*UploadOutput, error)
	Delete(ctx context.Context, bucket, key string) error
	GetPresignedURL(ctx context.Context, bucket, key string, expirySeconds int64) (string, error)
}

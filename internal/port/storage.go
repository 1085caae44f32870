package port

import (
	"context"
	"io"
)

// UploadInput describes one stored document artifact.
type UploadInput struct {
	Bucket      string
	Key         string
	Body        io.Reader
	ContentType string
	Size        int64
	// Metadata links the object back to its document and sign request.
	Metadata map[string]string
}

// UploadOutput contains the result of a successful upload.
type UploadOutput struct {
	Location string
	ETag     string
}

// PresignInput describes a time-limited read link.
type PresignInput struct {
	Bucket        string
	Key           string
	ExpirySeconds int64
	// Filename, when set, makes browsers save the object under that name.
	Filename string
}

// ObjectStorage is the byte store for originals and signed artifacts.
// Artifacts are never deleted, so there is no delete operation.
type ObjectStorage interface {
	Upload(ctx context.Context, input UploadInput) (*UploadOutput, error)
	// Download returns domain.ErrNotFound for a missing key.
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	GetPresignedURL(ctx context.Context, input PresignInput) (string, error)
}

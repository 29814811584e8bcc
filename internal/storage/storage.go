package storage

import (
	"context"
	"io"
	"time"
)

// Store is the local byte store backing uploads, thumbnails and frame
// scratch space. Paths it returns are readable by the ffmpeg adapters.
type Store interface {
	SaveUpload(objectName string, r io.Reader) (path string, err error)
	UploadPath(objectName string) string
	ThumbnailPath(objectName string) string
	// ScratchDir creates (if needed) a scratch directory namespaced by the
	// given id so concurrent jobs never collide on disk.
	ScratchDir(id string) (string, error)
	Exists(path string) error
	Delete(path string) error
	DeleteDir(path string) error
}

// Uploader publishes derived artifacts (thumbnails) to an object store so
// the frontend can fetch them directly.
type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
}

// Signer issues short-lived read URLs for private objects.
type Signer interface {
	SignedGetURL(ctx context.Context, objectName string, ttl time.Duration) (string, error)
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/moodlocation/apiserver/config"
)

const (
	BackendMinio = "minio"
	BackendGCS   = "gcs"
)

const (
	// Stored keys embed a fresh uuid, so objects never change once written.
	imageCacheControl = "public, max-age=31536000, immutable"

	// ownerMetadataKey tags every object with the id of the account it belongs to.
	ownerMetadataKey = "owner"
)

// ErrObjectNotFound is returned by Open when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Upload describes an image to be written.
type Upload struct {
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
	Owner       string
}

// Object is a stored image opened for reading. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// ObjectStorage defines the image operations every backend provides.
// Remove must treat a missing key as success.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, upload Upload) error
	Open(ctx context.Context, key string) (Object, error)
	Remove(ctx context.Context, key string) error
	Bucket() string
}

// Storage is the profile image store handed to the services.
type Storage struct {
	backend ObjectStorage
}

// NewStorage constructs a Storage over the provided backend.
func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// Open builds the backend selected by cfg.Backend and makes sure its bucket
// exists. It returns nil, nil when no backend is configured.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case BackendMinio:
		backend, err = NewMinioClient(cfg.Minio)
	case BackendGCS:
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return NewStorage(backend), nil
}

// Put writes an image. Size must be the exact body length.
func (s *Storage) Put(ctx context.Context, upload Upload) error {
	if upload.Key == "" {
		return errors.New("object key is required")
	}
	if upload.Body == nil || upload.Size <= 0 {
		return fmt.Errorf("put %s: empty body", upload.Key)
	}
	return s.backend.Put(ctx, upload)
}

// Open returns the image stored under key, or ErrObjectNotFound.
func (s *Storage) Open(ctx context.Context, key string) (Object, error) {
	return s.backend.Open(ctx, key)
}

// Delete removes the image stored under key. Missing keys are ignored.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Remove(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

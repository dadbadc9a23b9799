package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/moodlocation/apiserver/config"
	"google.golang.org/api/option"
)

// maxUploadChunk caps the resumable upload buffer; avatars fit in one chunk.
const maxUploadChunk = 16 << 20

// GCSClient keeps profile images in a Google Cloud Storage bucket.
type GCSClient struct {
	bucket    *storage.BucketHandle
	name      string
	projectID string
}

func NewGCSClient(ctx context.Context, cfg config.GCSConfig) (*GCSClient, error) {
	name := strings.TrimSpace(cfg.Bucket)
	if name == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if file := strings.TrimSpace(cfg.CredentialsFile); file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &GCSClient{
		bucket:    client.Bucket(name),
		name:      name,
		projectID: strings.TrimSpace(cfg.ProjectID),
	}, nil
}

// EnsureBucket creates the bucket when it is missing, which needs a project id.
func (g *GCSClient) EnsureBucket(ctx context.Context) error {
	_, err := g.bucket.Attrs(ctx)
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return err
	}
	if g.projectID == "" {
		return errors.New("gcs project id is required to create bucket")
	}
	return g.bucket.Create(ctx, g.projectID, nil)
}

// Put streams an upload into the bucket. A failed read cancels the upload
// so no partial object is committed.
func (g *GCSClient) Put(ctx context.Context, upload Upload) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.bucket.Object(upload.Key).NewWriter(ctx)
	w.ContentType = upload.ContentType
	w.CacheControl = imageCacheControl
	w.ChunkSize = int(min(upload.Size, maxUploadChunk))
	if upload.Owner != "" {
		w.Metadata = map[string]string{ownerMetadataKey: upload.Owner}
	}

	if _, err := io.Copy(w, upload.Body); err != nil {
		cancel()
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (g *GCSClient) Open(ctx context.Context, key string) (Object, error) {
	r, err := g.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return Object{}, ErrObjectNotFound
	}
	if err != nil {
		return Object{}, err
	}
	return Object{Body: r, ContentType: r.Attrs.ContentType, Size: r.Attrs.Size}, nil
}

func (g *GCSClient) Remove(ctx context.Context, key string) error {
	err := g.bucket.Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (g *GCSClient) Bucket() string {
	return g.name
}

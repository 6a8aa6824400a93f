package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// uploadTimeout bounds a single object write.
const uploadTimeout = 2 * time.Minute

// GCS stores objects in a single Google Cloud Storage bucket. It assumes
// Application Default Credentials are configured.
type GCS struct {
	client *storage.Client
	bucket string
}

func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

// Fetch downloads the object at a gs:// URI. URIs pointing at other buckets
// are honored, so documents can live outside the working bucket.
func (g *GCS) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, objectPath, err := splitURI(uri)
	if err != nil {
		return nil, err
	}

	rc, err := g.client.Bucket(bucket).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object %s/%s: %w", bucket, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, objectPath, err)
	}
	return data, nil
}

// Put uploads data under objectName in the working bucket and returns its
// gs:// URI.
func (g *GCS) Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload %s: %w", objectName, err)
	}
	return fmt.Sprintf("gs://%s/%s", g.bucket, objectName), nil
}

func splitURI(uri string) (bucket, objectPath string, err error) {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed storage URI %q", uri)
	}
	return parts[0], parts[1], nil
}

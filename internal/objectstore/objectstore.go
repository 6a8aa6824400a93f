// Package objectstore abstracts blob storage for source documents and
// derived artifacts such as cropped check images.
package objectstore

import "context"

// Store reads and writes immutable blobs addressed by URI.
type Store interface {
	// Fetch downloads the full contents of the object at uri.
	Fetch(ctx context.Context, uri string) ([]byte, error)

	// Put uploads data under objectName and returns the object's URI.
	Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
}

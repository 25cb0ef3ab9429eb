// Package blob stores uploaded images and maps them to public URLs.
package blob

import (
	"context"
	"errors"
	"io"
)

var (
	ErrExists      = errors.New("object already exists")
	ErrInvalidPath = errors.New("invalid object path")
	ErrTooLarge    = errors.New("object exceeds the size limit")
	ErrUnsupported = errors.New("unsupported content type")
)

// Bucket is an object store addressed by slash-separated paths.
type Bucket interface {
	// Upload writes r under objectPath. Existing objects are never overwritten.
	Upload(ctx context.Context, objectPath string, r io.Reader) error
	// Remove deletes objects; missing objects are not an error.
	Remove(ctx context.Context, objectPaths ...string) error
	// PublicURL returns the URL clients use to fetch objectPath.
	PublicURL(objectPath string) string
	// PathFromURL reverses PublicURL for URLs this bucket issued.
	PathFromURL(url string) (string, bool)
}

package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Local is a Bucket on the local filesystem, served by the HTTP router under baseURL.
type Local struct {
	name    string
	dir     string
	baseURL string
}

// NewLocal creates root/name if needed. Objects are published as baseURL/name/<path>.
func NewLocal(root, baseURL, name string) (*Local, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: bucket name %q", ErrInvalidPath, name)
	}
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket dir %s: %w", dir, err)
	}
	return &Local{
		name:    name,
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/") + "/" + name + "/",
	}, nil
}

// Name is the bucket name.
func (b *Local) Name() string { return b.name }

func (b *Local) resolve(objectPath string) (string, error) {
	clean := path.Clean("/" + objectPath)
	if objectPath == "" || clean == "/" || clean != "/"+objectPath {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, objectPath)
	}
	return filepath.Join(b.dir, filepath.FromSlash(clean)), nil
}

// Upload writes the object through a temporary file so readers never see partial data.
func (b *Local) Upload(ctx context.Context, objectPath string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := b.resolve(objectPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, objectPath)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		tmp.Close()
		return fmt.Errorf("write object %s: %w", objectPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close object %s: %w", objectPath, err)
	}
	if err := os.Link(tmp.Name(), dst); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, objectPath)
		}
		return fmt.Errorf("publish object %s: %w", objectPath, err)
	}
	return nil
}

// Remove deletes objects, ignoring ones that are already gone.
func (b *Local) Remove(ctx context.Context, objectPaths ...string) error {
	var errs []error
	for _, p := range objectPaths {
		if err := ctx.Err(); err != nil {
			return err
		}
		dst, err := b.resolve(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublicURL returns the URL for objectPath.
func (b *Local) PublicURL(objectPath string) string {
	return b.baseURL + strings.TrimPrefix(objectPath, "/")
}

// PathFromURL returns the object path for a URL issued by this bucket.
func (b *Local) PathFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, b.baseURL) {
		return "", false
	}
	p := strings.TrimPrefix(url, b.baseURL)
	if _, err := b.resolve(p); err != nil {
		return "", false
	}
	return p, true
}

// ctxReader stops copying once the request context is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

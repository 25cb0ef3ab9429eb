package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"

	"looksdehoje-backend/internal/parse"
)

// sniffLen is how much of an upload is buffered for content detection.
const sniffLen = 3072

// DefaultImageTypes are the formats accepted for catalog and hero images.
var DefaultImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// ImageUploader validates image uploads and stores them in a bucket under random names.
type ImageUploader struct {
	Bucket   Bucket
	Prefix   string
	MaxBytes int64
	Allowed  []string
}

// NewImageUploader accepts DefaultImageTypes up to maxBytes.
func NewImageUploader(b Bucket, prefix string, maxBytes int64) *ImageUploader {
	return &ImageUploader{Bucket: b, Prefix: prefix, MaxBytes: maxBytes, Allowed: DefaultImageTypes}
}

// Put sniffs the content type, enforces the size limit and uploads. It returns the public URL.
func (u *ImageUploader) Put(ctx context.Context, clientName string, r io.Reader) (string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read upload %q: %w", clientName, err)
	}
	head = head[:n]

	mtype := mimetype.Detect(head)
	if !u.allowed(mtype) {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, mtype.String())
	}

	body := io.MultiReader(bytes.NewReader(head), r)
	if u.MaxBytes > 0 {
		body = &limitReader{r: body, remaining: u.MaxBytes}
	}

	objectPath := parse.ObjectName(u.Prefix, clientName, mtype.Extension())
	if err := u.Bucket.Upload(ctx, objectPath, body); err != nil {
		return "", err
	}
	return u.Bucket.PublicURL(objectPath), nil
}

// Delete removes an object previously returned by Put. Foreign URLs are ignored.
func (u *ImageUploader) Delete(ctx context.Context, url string) error {
	p, ok := u.Bucket.PathFromURL(url)
	if !ok {
		return nil
	}
	return u.Bucket.Remove(ctx, p)
}

// Owns reports whether url points into this uploader's bucket.
func (u *ImageUploader) Owns(url string) bool {
	_, ok := u.Bucket.PathFromURL(url)
	return ok
}

func (u *ImageUploader) allowed(mtype *mimetype.MIME) bool {
	for _, a := range u.Allowed {
		if mtype.Is(a) {
			return true
		}
	}
	return false
}

// limitReader fails with ErrTooLarge instead of silently truncating.
type limitReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrTooLarge
	}
	return n, err
}

// Package gallery manages the edit-time image list of a catalog piece: persisted images
// mixed with newly attached files that are only uploaded when the piece is saved.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"

	"looksdehoje-backend/internal/model"
)

// DefaultMax is the image limit when none is configured.
const DefaultMax = 10

// PreviewScheme prefixes the temporary reference of a pending entry.
const PreviewScheme = "pending://"

var ErrCapacity = errors.New("image limit reached")

// File is a local file attached during editing.
type File struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// Source is either Pending or Persisted.
type Source interface {
	ref() string
}

// Pending is a file that has not been uploaded yet.
type Pending struct {
	File    File
	Preview string
}

func (p Pending) ref() string { return p.Preview }

// Persisted is an image that already lives in the image store.
type Persisted struct {
	URL string
}

func (p Persisted) ref() string { return p.URL }

// Entry is one slot of the collection.
type Entry struct {
	Source Source
	Order  int
}

// Ref is the remote URL of a persisted entry or the preview reference of a pending one.
func (e Entry) Ref() string { return e.Source.ref() }

// IsPending reports whether the entry still has to be uploaded.
func (e Entry) IsPending() bool {
	_, ok := e.Source.(Pending)
	return ok
}

// Uploader stores a file and returns its public URL.
type Uploader interface {
	Put(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// Collection is not safe for concurrent use; each save builds its own.
type Collection struct {
	max     int
	entries []Entry
}

// New starts a collection from already persisted URLs in display order.
func New(max int, urls ...string) *Collection {
	if max <= 0 {
		max = DefaultMax
	}
	c := &Collection{max: max, entries: make([]Entry, 0, len(urls))}
	for _, u := range urls {
		c.entries = append(c.entries, Entry{Source: Persisted{URL: u}})
	}
	c.renumber()
	return c
}

// FromImages starts a collection from a stored image list.
func FromImages(max int, imgs model.Images) *Collection {
	sorted := imgs.Sorted()
	urls := make([]string, len(sorted))
	for i, img := range sorted {
		urls[i] = img.URL
	}
	return New(max, urls...)
}

func (c *Collection) Len() int { return len(c.entries) }

func (c *Collection) Max() int { return c.max }

// AddFiles appends files as pending entries. The whole batch is rejected when it does not fit.
func (c *Collection) AddFiles(files ...File) ([]Entry, error) {
	if len(c.entries)+len(files) > c.max {
		return nil, fmt.Errorf("%w: %d images allowed, have %d, adding %d",
			ErrCapacity, c.max, len(c.entries), len(files))
	}
	added := make([]Entry, 0, len(files))
	for _, f := range files {
		e := Entry{
			Source: Pending{File: f, Preview: PreviewScheme + uuid.NewString()},
			Order:  len(c.entries),
		}
		c.entries = append(c.entries, e)
		added = append(added, e)
	}
	return added, nil
}

// Remove drops the entry at index. It panics when index is out of range.
func (c *Collection) Remove(index int) Entry {
	c.mustIndex(index)
	e := c.entries[index]
	c.entries = append(c.entries[:index], c.entries[index+1:]...)
	c.renumber()
	return e
}

// Reorder moves the entry at from to position to. It panics when either index is out of range.
func (c *Collection) Reorder(from, to int) {
	c.mustIndex(from)
	c.mustIndex(to)
	if from == to {
		return
	}
	e := c.entries[from]
	c.entries = append(c.entries[:from], c.entries[from+1:]...)
	c.entries = append(c.entries[:to], append([]Entry{e}, c.entries[to:]...)...)
	c.renumber()
}

// Entries returns a copy ordered by Order, stable on ties.
func (c *Collection) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Cover is the first entry.
func (c *Collection) Cover() (Entry, bool) {
	if len(c.entries) == 0 {
		return Entry{}, false
	}
	return c.Entries()[0], true
}

// Commit uploads pending entries in order and returns the final image list. If any upload
// fails, objects uploaded by this call are deleted again and the collection is unchanged.
func (c *Collection) Commit(ctx context.Context, up Uploader) (model.Images, error) {
	entries := c.Entries()
	out := make(model.Images, 0, len(entries))
	var uploaded []string

	for _, e := range entries {
		switch src := e.Source.(type) {
		case Persisted:
			out = append(out, model.Image{URL: src.URL, Order: e.Order})
		case Pending:
			url, err := upload(ctx, up, src.File)
			if err != nil {
				rollback(up, uploaded)
				return nil, fmt.Errorf("upload image %d (%s): %w", e.Order, src.File.Name, err)
			}
			uploaded = append(uploaded, url)
			out = append(out, model.Image{URL: url, Order: e.Order})
		}
	}

	for i := range c.entries {
		c.entries[i] = Entry{Source: Persisted{URL: out[i].URL}, Order: out[i].Order}
	}
	return out, nil
}

func upload(ctx context.Context, up Uploader, f File) (string, error) {
	if f.Open == nil {
		return "", fmt.Errorf("file %q has no content", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return up.Put(ctx, f.Name, rc)
}

// rollback runs on a fresh context so a cancelled request still cleans up.
func rollback(up Uploader, urls []string) {
	ctx := context.Background()
	for _, u := range urls {
		_ = up.Delete(ctx, u)
	}
}

func (c *Collection) renumber() {
	for i := range c.entries {
		c.entries[i].Order = i
	}
}

func (c *Collection) mustIndex(i int) {
	if i < 0 || i >= len(c.entries) {
		panic(fmt.Sprintf("gallery: index %d out of range [0,%d)", i, len(c.entries)))
	}
}

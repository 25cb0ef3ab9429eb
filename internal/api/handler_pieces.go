package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"looksdehoje-backend/internal/framing"
	"looksdehoje-backend/internal/gallery"
	"looksdehoje-backend/internal/model"
)

var (
	errInvalidInput = errors.New("invalid request")
	errUnknownImage = errors.New("image does not belong to the piece")
)

// multipartOverhead is the room left for the text fields of a multipart form.
const multipartOverhead = 1 << 20

// limitBody caps the request body at limit bytes. A non-positive limit leaves it unbounded.
func limitBody(c *gin.Context, limit int64) {
	if limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
}

// formError maps a multipart parse failure to errBodyTooLarge or errInvalidInput.
func formError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return fmt.Errorf("request body over %d bytes: %w", tooBig.Limit, errBodyTooLarge)
	}
	return fmt.Errorf("%w: %v", errInvalidInput, err)
}

// manifestEntry names one image slot of the saved piece: an existing URL or a file part.
type manifestEntry struct {
	URL  string `json:"url,omitempty"`
	File string `json:"file,omitempty"`
}

type pieceInput struct {
	Name         string               `json:"name"`
	CategoryID   string               `json:"category_id"`
	Status       model.Availability   `json:"status"`
	Description  string               `json:"description"`
	Measurements map[string]string    `json:"measurements"`
	Framing      *framing.Positioning `json:"framing"`
	// Manifest is the final image order. Nil keeps the stored images.
	Manifest []manifestEntry `json:"manifest"`

	files map[string][]*multipart.FileHeader
}

// readPieceInput accepts either a JSON body or a multipart form whose structured fields
// (measurements, framing, manifest) are JSON-encoded strings.
func (h *Handler) readPieceInput(c *gin.Context) (*pieceInput, error) {
	var in pieceInput
	if c.ContentType() != binding.MIMEMultipartPOSTForm {
		if err := c.ShouldBindJSON(&in); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidInput, err)
		}
		return &in, in.validate()
	}

	if h.pieces.MaxBytes > 0 {
		limitBody(c, int64(h.maxImages)*h.pieces.MaxBytes+multipartOverhead)
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, formError(err)
	}

	value := func(key string) string {
		if v := form.Value[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	in.Name = value("name")
	in.CategoryID = value("category_id")
	in.Status = model.Availability(value("status"))
	in.Description = value("description")
	for key, dst := range map[string]any{
		"measurements": &in.Measurements,
		"framing":      &in.Framing,
		"manifest":     &in.Manifest,
	} {
		raw := value(key)
		if raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", errInvalidInput, key, err)
		}
	}
	in.files = form.File
	return &in, in.validate()
}

func (in *pieceInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	if in.Name == "" || in.CategoryID == "" {
		return fmt.Errorf("%w: name and category_id are required", errMissingPieceFields)
	}
	if in.Status == "" {
		in.Status = model.Available
	}
	if !in.Status.Valid() {
		return fmt.Errorf("%w: status must be available or rented", errInvalidInput)
	}

	measurements := make(map[string]string, len(in.Measurements))
	for k, v := range in.Measurements {
		if k = strings.TrimSpace(k); k != "" {
			measurements[k] = strings.TrimSpace(v)
		}
	}
	in.Measurements = measurements

	seen := make(map[string]bool, len(in.Manifest))
	for i, e := range in.Manifest {
		if (e.URL == "") == (e.File == "") {
			return fmt.Errorf("%w: entry %d needs exactly one of url or file", errInvalidInput, i)
		}
		key := "url:" + e.URL
		if e.File != "" {
			key = "file:" + e.File
		}
		if seen[key] {
			return fmt.Errorf("%w: entry %d repeats %s", errInvalidInput, i, key)
		}
		seen[key] = true
	}
	return nil
}

// galleryFiles resolves the file parts named by the manifest, in manifest order.
func (in *pieceInput) galleryFiles() ([]gallery.File, error) {
	var files []gallery.File
	for _, e := range in.Manifest {
		if e.File == "" {
			continue
		}
		parts := in.files[e.File]
		if len(parts) == 0 {
			return nil, fmt.Errorf("%w: missing file part %q", errInvalidInput, e.File)
		}
		fh := parts[0]
		files = append(files, gallery.File{
			Name: fh.Filename,
			Size: fh.Size,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return files, nil
}

// imageChanges is the outcome of applying a manifest.
type imageChanges struct {
	images   model.Images
	uploaded []string
	removed  []string
}

// applyManifest turns the stored images plus the manifest into the final image list,
// uploading new files. When it fails nothing new is left in the bucket.
func (h *Handler) applyManifest(ctx context.Context, in *pieceInput, stored model.Images) (imageChanges, error) {
	if in.Manifest == nil {
		return imageChanges{images: stored}, nil
	}

	keep := make(map[string]bool)
	for _, e := range in.Manifest {
		if e.URL == "" {
			continue
		}
		if !stored.Contains(e.URL) {
			return imageChanges{}, fmt.Errorf("%w: %s", errUnknownImage, e.URL)
		}
		keep[e.URL] = true
	}
	files, err := in.galleryFiles()
	if err != nil {
		return imageChanges{}, err
	}

	col := gallery.FromImages(h.maxImages, stored)
	var removed []string
	entries := col.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		if !keep[entries[i].Ref()] {
			removed = append(removed, col.Remove(i).Ref())
		}
	}

	added, err := col.AddFiles(files...)
	if err != nil {
		return imageChanges{}, err
	}

	refs := make([]string, 0, len(in.Manifest))
	next := 0
	for _, e := range in.Manifest {
		if e.URL != "" {
			refs = append(refs, e.URL)
			continue
		}
		refs = append(refs, added[next].Ref())
		next++
	}
	for target, ref := range refs {
		for j, e := range col.Entries() {
			if e.Ref() == ref {
				col.Reorder(j, target)
				break
			}
		}
	}

	images, err := col.Commit(ctx, h.pieces)
	if err != nil {
		return imageChanges{}, err
	}
	var uploaded []string
	for _, img := range images {
		if !stored.Contains(img.URL) {
			uploaded = append(uploaded, img.URL)
		}
	}
	return imageChanges{images: images, uploaded: uploaded, removed: removed}, nil
}

// discard deletes objects on a fresh context; failures are only logged.
func (h *Handler) discard(urls []string) {
	ctx := context.Background()
	for _, u := range urls {
		if !h.pieces.Owns(u) {
			continue
		}
		if err := h.pieces.Delete(ctx, u); err != nil {
			h.log.Warn("failed to delete image", zap.String("url", u), zap.Error(err))
		}
	}
}

// CreatePiece stores a new piece and uploads the files named in its manifest.
func (h *Handler) CreatePiece(c *gin.Context) {
	ctx := c.Request.Context()
	in, err := h.readPieceInput(c)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	if _, err := h.store.GetCategory(ctx, in.CategoryID); err != nil {
		h.abortWithError(c, unknownCategory(err, in.CategoryID))
		return
	}

	changes, err := h.applyManifest(ctx, in, nil)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	piece := model.Piece{
		Name:         in.Name,
		CategoryID:   in.CategoryID,
		Status:       in.Status,
		Description:  in.Description,
		Measurements: in.Measurements,
		Images:       changes.images,
		Framing:      framing.Default(),
	}
	if in.Framing != nil {
		piece.Framing = in.Framing.Normalize()
	}
	if err := h.store.CreatePiece(ctx, &piece); err != nil {
		h.discard(changes.uploaded)
		h.abortWithError(c, err)
		return
	}

	h.invalidate()
	h.log.Info("piece created", zap.String("piece_id", piece.ID), zap.Int("images", len(piece.Images)))
	c.JSON(http.StatusCreated, piece)
}

// UpdatePiece replaces a piece's fields and, when a manifest is sent, its images.
func (h *Handler) UpdatePiece(c *gin.Context) {
	id := c.Param("id")
	if !h.saving.acquire(id) {
		abortWithCode(c, http.StatusConflict, CodeSaveInProgress, "this piece is already being saved")
		return
	}
	defer h.saving.release(id)

	ctx := c.Request.Context()
	in, err := h.readPieceInput(c)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	piece, err := h.store.GetPiece(ctx, id)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	if in.CategoryID != piece.CategoryID {
		if _, err := h.store.GetCategory(ctx, in.CategoryID); err != nil {
			h.abortWithError(c, unknownCategory(err, in.CategoryID))
			return
		}
	}

	changes, err := h.applyManifest(ctx, in, piece.Images)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	piece.Name = in.Name
	piece.CategoryID = in.CategoryID
	piece.Status = in.Status
	piece.Description = in.Description
	piece.Measurements = in.Measurements
	piece.Images = changes.images
	if in.Framing != nil {
		piece.Framing = in.Framing.Normalize()
	}
	piece.Category = nil

	change, err := h.store.UpdatePiece(ctx, piece)
	if err != nil {
		h.discard(changes.uploaded)
		h.abortWithError(c, err)
		return
	}
	h.discard(changes.removed)

	h.invalidate()
	h.notifyIfAvailable(change)
	c.JSON(http.StatusOK, change.Piece)
}

// TogglePieceStatus flips a piece between available and rented.
func (h *Handler) TogglePieceStatus(c *gin.Context) {
	change, err := h.store.TogglePieceStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	h.invalidate()
	h.notifyIfAvailable(change)
	c.JSON(http.StatusOK, change.Piece)
}

// DeletePiece removes the piece and then its images from the bucket.
func (h *Handler) DeletePiece(c *gin.Context) {
	id := c.Param("id")
	if !h.saving.acquire(id) {
		abortWithCode(c, http.StatusConflict, CodeSaveInProgress, "this piece is being saved")
		return
	}
	defer h.saving.release(id)

	piece, err := h.store.DeletePiece(c.Request.Context(), id)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	urls := make([]string, len(piece.Images))
	for i, img := range piece.Images {
		urls[i] = img.URL
	}
	h.discard(urls)

	h.invalidate()
	c.Status(http.StatusNoContent)
}

// RemovePieceImage drops the image at :index and persists the renumbered list.
func (h *Handler) RemovePieceImage(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "index must be a number")
		return
	}
	h.editImages(c, func(col *gallery.Collection) ([]string, error) {
		if index < 0 || index >= col.Len() {
			return nil, fmt.Errorf("%w: index %d out of range [0,%d)", errInvalidInput, index, col.Len())
		}
		return []string{col.Remove(index).Ref()}, nil
	})
}

type reorderRequest struct {
	From *int `json:"from" binding:"required"`
	To   *int `json:"to" binding:"required"`
}

// ReorderPieceImages moves one image to a new position.
func (h *Handler) ReorderPieceImages(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.editImages(c, func(col *gallery.Collection) ([]string, error) {
		from, to := *req.From, *req.To
		if from < 0 || from >= col.Len() || to < 0 || to >= col.Len() {
			return nil, fmt.Errorf("%w: reorder %d to %d out of range [0,%d)", errInvalidInput, from, to, col.Len())
		}
		col.Reorder(from, to)
		return nil, nil
	})
}

// editImages runs edit on the stored image list of :id and persists the result.
// edit returns the URLs it dropped.
func (h *Handler) editImages(c *gin.Context, edit func(*gallery.Collection) ([]string, error)) {
	id := c.Param("id")
	if !h.saving.acquire(id) {
		abortWithCode(c, http.StatusConflict, CodeSaveInProgress, "this piece is already being saved")
		return
	}
	defer h.saving.release(id)

	ctx := c.Request.Context()
	piece, err := h.store.GetPiece(ctx, id)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	col := gallery.FromImages(h.maxImages, piece.Images)
	removed, err := edit(col)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	images, err := col.Commit(ctx, h.pieces)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	if err := h.store.SetPieceImages(ctx, id, images); err != nil {
		h.abortWithError(c, err)
		return
	}
	h.discard(removed)

	h.invalidate()
	piece.Images = images
	c.JSON(http.StatusOK, piece)
}

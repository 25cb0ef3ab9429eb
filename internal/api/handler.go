package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"looksdehoje-backend/internal/blob"
	"looksdehoje-backend/internal/gallery"
	"looksdehoje-backend/internal/session"
	"looksdehoje-backend/internal/store"
)

// Notifier queues "available again" notifications for a piece.
type Notifier interface {
	Dispatch(pieceID string) bool
}

// Deps are the collaborators the handlers need.
type Deps struct {
	Store     store.Store
	Gate      *session.Gate
	Pieces    *blob.ImageUploader
	Hero      *blob.ImageUploader
	Notifier  Notifier
	WebPush   *webpush.Options
	Logger    *zap.Logger
	MaxImages int
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	gate      *session.Gate
	pieces    *blob.ImageUploader
	hero      *blob.ImageUploader
	notifier  Notifier
	webpush   *webpush.Options
	log       *zap.Logger
	cache     *cache.Cache
	saving    *inflight
	maxImages int
}

// NewHandler creates a new API handler. publicCache is flushed after every admin write.
func NewHandler(d Deps, publicCache *cache.Cache) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.MaxImages <= 0 {
		d.MaxImages = gallery.DefaultMax
	}
	return &Handler{
		store:     d.Store,
		gate:      d.Gate,
		pieces:    d.Pieces,
		hero:      d.Hero,
		notifier:  d.Notifier,
		webpush:   d.WebPush,
		log:       d.Logger,
		cache:     publicCache,
		saving:    newInflight(),
		maxImages: d.MaxImages,
	}
}

// invalidate drops cached storefront responses after a write.
func (h *Handler) invalidate() {
	if h.cache != nil {
		h.cache.Flush()
	}
}

// notifyIfAvailable dispatches a notification when a change made a rented piece available.
func (h *Handler) notifyIfAvailable(change store.StatusChange) {
	if h.notifier == nil || !change.BecameAvailable() {
		return
	}
	h.notifier.Dispatch(change.Piece.ID)
}

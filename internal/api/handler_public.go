package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"looksdehoje-backend/internal/model"
	"looksdehoje-backend/internal/store"
)

func pieceFilter(c *gin.Context) (store.PieceFilter, bool) {
	f := store.PieceFilter{
		CategoryID: c.Query("category"),
		Query:      c.Query("q"),
		Status:     model.Availability(c.Query("status")),
	}
	if f.Status != "" && !f.Status.Valid() {
		badRequest(c, "status must be available or rented")
		return f, false
	}
	return f, true
}

// ListPieces returns the catalog, newest first.
func (h *Handler) ListPieces(c *gin.Context) {
	f, ok := pieceFilter(c)
	if !ok {
		return
	}
	pieces, err := h.store.ListPieces(c.Request.Context(), f)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pieces)
}

func (h *Handler) GetPiece(c *gin.Context) {
	p, err := h.store.GetPiece(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ListCategories returns categories with their piece counts.
func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.store.ListCategories(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

type heroResponse struct {
	Slides []model.HeroSlide `json:"slides"`
	Styles []string          `json:"styles"`
}

// GetHero returns the carousel slides and the background style each one renders with.
func (h *Handler) GetHero(c *gin.Context) {
	hero, err := h.store.GetHero(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newHeroResponse(hero.Slides))
}

func newHeroResponse(slides []model.HeroSlide) heroResponse {
	styles := make([]string, len(slides))
	for i, s := range slides {
		styles[i] = s.Positioning().Style()
	}
	return heroResponse{Slides: slides, Styles: styles}
}

// GetStore returns the public store identity and contact links.
func (h *Handler) GetStore(c *gin.Context) {
	st, err := h.store.GetSettings(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"looksdehoje-backend/internal/model"
)

type heroRequest struct {
	Slides []model.HeroSlide `json:"slides"`
}

// SaveHero replaces the whole ordered slide list.
func (h *Handler) SaveHero(c *gin.Context) {
	var req heroRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Slides == nil {
		badRequest(c, "slides is required")
		return
	}
	for i := range req.Slides {
		if err := req.Slides[i].Normalize(); err != nil {
			abortWithCode(c, http.StatusUnprocessableEntity, CodeInvalidRequest, err.Error())
			return
		}
	}

	hero, err := h.store.SaveHero(c.Request.Context(), req.Slides)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	h.invalidate()
	c.JSON(http.StatusOK, newHeroResponse(hero.Slides))
}

// NewHeroSlide returns a placeholder slide for the editor to fill in.
func (h *Handler) NewHeroSlide(c *gin.Context) {
	c.JSON(http.StatusOK, model.NewHeroSlide())
}

// UploadHeroImage stores the "image" form file and returns its public URL.
func (h *Handler) UploadHeroImage(c *gin.Context) {
	if h.hero.MaxBytes > 0 {
		limitBody(c, h.hero.MaxBytes+multipartOverhead)
	}
	fh, err := c.FormFile("image")
	if err != nil {
		if err = formError(err); errors.Is(err, errBodyTooLarge) {
			h.abortWithError(c, err)
			return
		}
		badRequest(c, "image file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	defer f.Close()

	url, err := h.hero.Put(c.Request.Context(), fh.Filename, f)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	h.log.Info("hero image uploaded", zap.String("url", url))
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

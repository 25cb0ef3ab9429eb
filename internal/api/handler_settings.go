package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"looksdehoje-backend/internal/model"
)

type settingsRequest struct {
	StoreName    string `json:"store_name"`
	InstagramURL string `json:"instagram_url"`
	WhatsappURL  string `json:"whatsapp_url"`
	Email        string `json:"email"`
}

func (h *Handler) GetSettings(c *gin.Context) {
	st, err := h.store.GetSettings(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// UpdateSettings saves the store identity and contact links.
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	req.StoreName = strings.TrimSpace(req.StoreName)
	if req.StoreName == "" {
		abortWithCode(c, http.StatusUnprocessableEntity, CodeMissingFields, "store_name is required")
		return
	}

	st, err := h.store.UpdateSettings(c.Request.Context(), model.StoreSettings{
		StoreName:    req.StoreName,
		InstagramURL: strings.TrimSpace(req.InstagramURL),
		WhatsappURL:  strings.TrimSpace(req.WhatsappURL),
		Email:        strings.TrimSpace(req.Email),
	})
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	h.invalidate()
	c.JSON(http.StatusOK, st)
}

type passwordRequest struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
	Confirm string `json:"confirm_password"`
}

// ChangePassword replaces the admin password after verifying the current one.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.gate.ChangePassword(c.Request.Context(), req.Current, req.New, req.Confirm); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stats returns the dashboard counters.
func (h *Handler) Stats(c *gin.Context) {
	st, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

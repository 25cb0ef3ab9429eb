package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"looksdehoje-backend/internal/model"
)

type categoryRequest struct {
	Name string `json:"name" binding:"required"`
}

func bindCategory(c *gin.Context) (string, bool) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return "", false
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		abortWithCode(c, http.StatusUnprocessableEntity, CodeMissingFields, "name is required")
		return "", false
	}
	return name, true
}

func (h *Handler) GetCategory(c *gin.Context) {
	cat, err := h.store.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

func (h *Handler) CreateCategory(c *gin.Context) {
	name, ok := bindCategory(c)
	if !ok {
		return
	}
	cat := model.Category{Name: name}
	if err := h.store.CreateCategory(c.Request.Context(), &cat); err != nil {
		h.abortWithError(c, err)
		return
	}
	h.invalidate()
	c.JSON(http.StatusCreated, cat)
}

func (h *Handler) RenameCategory(c *gin.Context) {
	name, ok := bindCategory(c)
	if !ok {
		return
	}
	cat, err := h.store.RenameCategory(c.Request.Context(), c.Param("id"), name)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	h.invalidate()
	c.JSON(http.StatusOK, cat)
}

// DeleteCategory removes an empty category. Categories with pieces answer 409.
func (h *Handler) DeleteCategory(c *gin.Context) {
	if err := h.store.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		h.abortWithError(c, err)
		return
	}
	h.invalidate()
	c.Status(http.StatusNoContent)
}

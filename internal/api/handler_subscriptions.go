package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"looksdehoje-backend/internal/model"
	"looksdehoje-backend/internal/store"
)

type putSubscriptionRequest struct {
	Endpoint         string   `json:"endpoint" binding:"required"`
	P256DH           string   `json:"p256dh" binding:"required"`
	Auth             string   `json:"auth" binding:"required"`
	SubscribedPieces []string `json:"subscribed_pieces"`
}

// PutSubscription handles the creation or replacement of a subscription.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}
	if err := h.store.UpsertSubscription(c.Request.Context(), &subscription, req.SubscribedPieces); err != nil {
		h.abortWithError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.store.DeleteSubscription(c.Request.Context(), req.Endpoint); err != nil {
		h.abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSubscription returns the pieces an endpoint is waiting for.
func (h *Handler) GetSubscription(c *gin.Context) {
	endpoint := c.Query("endpoint")
	if endpoint == "" {
		badRequest(c, "endpoint is required")
		return
	}

	subscription, err := h.store.GetSubscription(c.Request.Context(), endpoint)
	if errors.Is(err, store.ErrNotFound) {
		abortWithCode(c, http.StatusNotFound, CodeNotFound, "subscription not found")
		return
	}
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	pieceIDs := make([]string, len(subscription.Pieces))
	for i, piece := range subscription.Pieces {
		pieceIDs[i] = piece.ID
	}

	c.JSON(http.StatusOK, gin.H{"subscribed_pieces": pieceIDs})
}

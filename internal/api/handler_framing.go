package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"looksdehoje-backend/internal/framing"
)

type framingPreviewRequest struct {
	Start  *framing.Positioning `json:"start"`
	Steps  []framing.Step       `json:"steps"`
	Frames int                  `json:"frames"`
}

type framingPreviewResponse struct {
	Positioning framing.Positioning   `json:"positioning"`
	Style       string                `json:"style"`
	Changes     []framing.Positioning `json:"changes"`
	Carousel    []string              `json:"carousel,omitempty"`
}

// PreviewFraming replays a recorded pan/zoom gesture and returns where it ends up.
func (h *Handler) PreviewFraming(c *gin.Context) {
	var req framingPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	start := framing.Default()
	if req.Start != nil {
		start = req.Start.Normalize()
	}

	final, changes, err := framing.Replay(start, req.Steps)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	if changes == nil {
		changes = []framing.Positioning{}
	}
	c.JSON(http.StatusOK, framingPreviewResponse{
		Positioning: final,
		Style:       final.Style(),
		Changes:     changes,
		Carousel:    framing.CarouselStyles(req.Frames, final),
	})
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login checks the admin password and marks the session authenticated.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		abortWithCode(c, http.StatusBadRequest, CodeMissingFields, "username and password are required")
		return
	}

	ok, err := h.gate.Login(c.Request.Context(), req.Password)
	if err != nil {
		h.log.Error("admin login failed", zap.Error(err))
		abortWithCode(c, http.StatusServiceUnavailable, CodeAuthUnavailable, "login is temporarily unavailable")
		return
	}
	if !ok {
		abortWithCode(c, http.StatusUnauthorized, CodeInvalidCredential, "invalid credentials")
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.gate.Logout(c.Request.Context()); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": false})
}

// Session reports the admin state of the caller.
func (h *Handler) Session(c *gin.Context) {
	state := h.gate.State(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"state":         state.String(),
		"authenticated": h.gate.IsAuthenticated(c.Request.Context()),
	})
}

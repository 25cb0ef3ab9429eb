package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"looksdehoje-backend/internal/blob"
	"looksdehoje-backend/internal/framing"
	"looksdehoje-backend/internal/gallery"
	"looksdehoje-backend/internal/session"
	"looksdehoje-backend/internal/store"
)

// Error codes returned in the "code" field.
const (
	CodeInvalidRequest    = "invalid_request"
	CodeNotFound          = "not_found"
	CodeCategoryHasPieces = "category_has_pieces"
	CodeDuplicateName     = "duplicate_name"
	CodeUnknownCategory   = "unknown_category"
	CodeUnknownImage      = "unknown_image"
	CodeTooManyImages     = "too_many_images"
	CodeFileTooLarge      = "file_too_large"
	CodeUnsupportedMedia  = "unsupported_media_type"
	CodeSaveInProgress    = "save_in_progress"
	CodeMissingFields     = "missing_fields"
	CodeWrongPassword     = "wrong_password"
	CodePasswordMismatch  = "password_mismatch"
	CodePasswordTooShort  = "password_too_short"
	CodeInvalidCredential = "invalid_credentials"
	CodeAuthUnavailable   = "auth_unavailable"
	CodePushDisabled      = "push_disabled"
	CodeTimeout           = "timeout"
	CodeInternal          = "internal_error"
)

var (
	errMissingPieceFields = errors.New("missing required fields")
	errBodyTooLarge       = errors.New("request body too large")
)

var errorStatus = []struct {
	target error
	status int
	code   string
}{
	{store.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{store.ErrCategoryHasPieces, http.StatusConflict, CodeCategoryHasPieces},
	{store.ErrDuplicateName, http.StatusConflict, CodeDuplicateName},
	{store.ErrUnknownCategory, http.StatusUnprocessableEntity, CodeUnknownCategory},
	{gallery.ErrCapacity, http.StatusUnprocessableEntity, CodeTooManyImages},
	{blob.ErrTooLarge, http.StatusRequestEntityTooLarge, CodeFileTooLarge},
	{blob.ErrUnsupported, http.StatusUnsupportedMediaType, CodeUnsupportedMedia},
	{framing.ErrUnknownOp, http.StatusBadRequest, CodeInvalidRequest},
	{errInvalidInput, http.StatusBadRequest, CodeInvalidRequest},
	{errUnknownImage, http.StatusUnprocessableEntity, CodeUnknownImage},
	{errMissingPieceFields, http.StatusUnprocessableEntity, CodeMissingFields},
	{errBodyTooLarge, http.StatusRequestEntityTooLarge, CodeFileTooLarge},
	{session.ErrMissingFields, http.StatusBadRequest, CodeMissingFields},
	{session.ErrWrongPassword, http.StatusUnprocessableEntity, CodeWrongPassword},
	{session.ErrPasswordMatch, http.StatusUnprocessableEntity, CodePasswordMismatch},
	{session.ErrPasswordTooWeak, http.StatusUnprocessableEntity, CodePasswordTooShort},
}

// unknownCategory turns a failed category lookup for a piece into ErrUnknownCategory.
func unknownCategory(err error, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", store.ErrUnknownCategory, id)
	}
	return err
}

func abortWithCode(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}

func badRequest(c *gin.Context, msg string) {
	abortWithCode(c, http.StatusBadRequest, CodeInvalidRequest, msg)
}

// abortWithError maps known errors to their status and code. Anything else is logged and
// reported as a generic 500.
func (h *Handler) abortWithError(c *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.target) {
			abortWithCode(c, e.status, e.code, err.Error())
			return
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		abortWithCode(c, http.StatusGatewayTimeout, CodeTimeout, "the request took too long")
		return
	}
	_ = c.Error(err)
	h.log.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	abortWithCode(c, http.StatusInternalServerError, CodeInternal, "internal server error")
}

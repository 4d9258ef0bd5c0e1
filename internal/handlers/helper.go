package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/attempt-engine/internal/sandbox"
	"github.com/SAP-F-2025/attempt-engine/internal/services"
)

func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := c.Param(param)
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID cannot be empty",
		})
		return ""
	}
	return idStr
}

// ParseIndexParam reads a non-negative integer path parameter. It writes the
// 400 response itself and reports false on failure.
func ParseIndexParam(c *gin.Context, param string) (int, bool) {
	n, err := strconv.Atoi(c.Param(param))
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "must be a non-negative integer",
		})
		return 0, false
	}
	return n, true
}

func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.RespondWithError(c, http.StatusBadRequest, "Validation failed", err, validationErrors)
		return
	}

	var unsupported *sandbox.UnsupportedLanguageError
	if errors.As(err, &unsupported) {
		h.RespondWithError(c, http.StatusBadRequest, unsupported.Error(), err, map[string]interface{}{
			"language":  unsupported.Label,
			"supported": unsupported.Supported,
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		h.RespondWithError(c, http.StatusForbidden, "Access denied", err, map[string]interface{}{
			"session_id": permissionError.SessionID,
			"action":     permissionError.Action,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		h.RespondWithError(c, http.StatusNotFound, "Session not found", err)
	case errors.Is(err, services.ErrQuestionNotFound):
		h.RespondWithError(c, http.StatusNotFound, "Question not found", err)
	case errors.Is(err, services.ErrSubmitNotConfirmed):
		h.RespondWithError(c, http.StatusBadRequest, "Submission must be confirmed", err)
	case errors.Is(err, services.ErrSubmitInProgress):
		h.RespondWithError(c, http.StatusConflict, "Submission already in progress", err)
	case errors.Is(err, services.ErrSessionFinished):
		h.RespondWithError(c, http.StatusConflict, "Session already finished", err)
	case errors.Is(err, services.ErrReviewNotAvailable):
		h.RespondWithError(c, http.StatusConflict, "Review is only available after submission", err)
	case errors.Is(err, services.ErrAttemptCreateFailed):
		h.RespondWithError(c, http.StatusServiceUnavailable, "Attempt could not be created", err)
	case services.IsNotFound(err):
		h.RespondWithError(c, http.StatusNotFound, "Resource not found", err)
	case services.IsForbidden(err):
		h.RespondWithError(c, http.StatusForbidden, "Access denied", err)
	case services.IsValidation(err):
		h.RespondWithError(c, http.StatusBadRequest, err.Error(), err)
	case services.IsConflict(err):
		h.RespondWithError(c, http.StatusConflict, err.Error(), err)
	default:
		h.RespondWithError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}

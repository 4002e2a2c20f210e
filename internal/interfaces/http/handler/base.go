package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/identity"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/logger"
	"github.com/ledger/backend/internal/interfaces/http/dto"
	"github.com/ledger/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID set by the logging middleware, falling back to the header
func getRequestID(c *gin.Context) string {
	if id := c.GetString(string(logger.RequestIDKey)); id != "" {
		return id
	}
	return c.GetHeader(logger.RequestIDHeader)
}

// Success sends a 200 response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Unauthorized sends a 401 response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, dto.NewErrorResponse(&dto.ErrorInfo{
		Code:      dto.ErrCodeUnauthorized,
		Message:   message,
		RequestID: getRequestID(c),
	}))
}

// InvalidJSON sends a 400 response for a body that could not be decoded
func (h *BaseHandler) InvalidJSON(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.NewErrorResponse(&dto.ErrorInfo{
		Code:      dto.ErrCodeInvalidJSON,
		Message:   "Request body is not valid JSON: " + err.Error(),
		RequestID: getRequestID(c),
	}))
}

// HandleError maps err to a status by its domain kind and writes the error body.
// Storage and unknown errors are logged with their cause.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status, info := dto.ErrorInfoFromError(err, getRequestID(c))
	if status >= http.StatusInternalServerError {
		logger.GetGinLogger(c).Error("Request failed", zap.Error(err), zap.String("code", info.Code))
	}
	_ = c.Error(err)
	c.JSON(status, dto.NewErrorResponse(info))
}

// actor returns the authenticated actor or writes a 401
func (h *BaseHandler) actor(c *gin.Context) (identity.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		h.Unauthorized(c, "Authentication required")
	}
	return actor, ok
}

// pathID parses the :id path parameter or writes a 400
func (h *BaseHandler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.HandleError(c, shared.NewValidationError("id", "must be a valid UUID"))
		return uuid.Nil, false
	}
	return id, true
}

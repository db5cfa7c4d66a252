// Package handler translates HTTP requests into proxy operations and maps
// the error taxonomy onto status codes.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kevingruber/blob-proxy/internal/backend"
	"github.com/kevingruber/blob-proxy/internal/proxy"
)

// Service is the operation surface the handlers call into. Satisfied by
// *proxy.Proxy.
type Service interface {
	Upload(ctx context.Context, key string, payload []byte) (proxy.UploadResult, error)
	Download(ctx context.Context, key string) (proxy.DownloadResult, error)
}

// ObjectHandler serves the blob upload/download endpoints.
type ObjectHandler struct {
	svc        Service
	maxPayload int64
	logger     zerolog.Logger
}

// NewObjectHandler creates the handler. maxPayload bounds the accepted
// request body size in bytes.
func NewObjectHandler(svc Service, maxPayload int64, logger zerolog.Logger) *ObjectHandler {
	return &ObjectHandler{svc: svc, maxPayload: maxPayload, logger: logger}
}

// writeError maps a classified error to a response. The body carries the
// classification name as a machine-readable code and a message that never
// exposes backend addresses.
func (h *ObjectHandler) writeError(c *gin.Context, err error) {
	var berr *backend.Error
	if !errors.As(err, &berr) {
		h.logger.Error().Err(err).Msg("unclassified handler error")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": string(backend.ClassUnexpected), "message": "internal error"},
		})
		return
	}

	status := http.StatusInternalServerError
	switch berr.Class {
	case backend.ClassInputValidation:
		status = http.StatusBadRequest
	case backend.ClassNotFound:
		status = http.StatusNotFound
	case backend.ClassAccessDenied:
		status = http.StatusForbidden
	case backend.ClassConnectivity:
		status = http.StatusServiceUnavailable
	}

	if status >= 500 {
		h.logger.Error().Err(err).Str("key", berr.Key).Msg("operation failed")
	}

	c.JSON(status, gin.H{
		"error": gin.H{"code": string(berr.Class), "message": berr.Message()},
	})
}

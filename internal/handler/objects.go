package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Upload handles PUT requests to store a blob.
func (h *ObjectHandler) Upload(c *gin.Context) {
	key := c.Param("key")

	contentLength := c.Request.ContentLength
	if contentLength > h.maxPayload {
		h.logger.Warn().
			Str("key", key).
			Int64("size", contentLength).
			Int64("max_size", h.maxPayload).
			Msg("upload payload too large")
		c.Status(http.StatusRequestEntityTooLarge)
		return
	}

	// Chunked transfers arrive with unknown length; read with a hard cap.
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxPayload+1))
	if err != nil {
		h.logger.Error().Err(err).Str("key", key).Msg("failed to read request body")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "malformed_input", "message": "failed to read request body"},
		})
		return
	}
	if int64(len(payload)) > h.maxPayload {
		c.Status(http.StatusRequestEntityTooLarge)
		return
	}

	res, err := h.svc.Upload(c.Request.Context(), key, payload)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Download handles GET requests to retrieve a blob.
func (h *ObjectHandler) Download(c *gin.Context) {
	key := c.Param("key")

	res, err := h.svc.Download(c.Request.Context(), key)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if res.FromCache {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.Data(http.StatusOK, res.ContentType, res.Payload)
}

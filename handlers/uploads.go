package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Lupao-eth/triptask-backend/apperr"
	"github.com/Lupao-eth/triptask-backend/middleware"
	"github.com/Lupao-eth/triptask-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UploadHandler struct {
	Store *storage.Store
}

// Upload stores a multipart file and returns its storage path. The
// path is not fetchable on its own; clients get signed URLs from chat
// reads.
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	if fileHeader.Size > storage.MaxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large (5MB max)"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		fail(c, apperr.Wrap(apperr.ErrUpstream, "open upload: %v", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, storage.MaxUploadBytes+1))
	if err != nil {
		fail(c, apperr.Wrap(apperr.ErrUpstream, "read upload: %v", err))
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	ext := filepath.Ext(fileHeader.Filename)
	key := fmt.Sprintf("%d/%d-%s%s", middleware.GetUserID(c), time.Now().UnixMilli(), uuid.NewString(), ext)

	if err := h.Store.Put(key, data, contentType); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":  key,
		"type": contentType,
		"name": fileHeader.Filename,
	})
}

// Download serves a stored blob if the request carries a valid,
// unexpired signature. Non-image types download as attachments.
func (h *UploadHandler) Download(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("path"), "/")
	expires, err := strconv.ParseInt(c.Query("expires"), 10, 64)
	if err != nil {
		fail(c, apperr.Wrap(apperr.ErrValidation, "missing expiry"))
		return
	}
	if err := h.Store.VerifyURL(key, expires, c.Query("sig")); err != nil {
		fail(c, err)
		return
	}
	full, err := h.Store.FilePath(key)
	if err != nil {
		fail(c, err)
		return
	}

	switch strings.ToLower(filepath.Ext(key)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		c.File(full)
	default:
		c.FileAttachment(full, filepath.Base(key))
	}
}

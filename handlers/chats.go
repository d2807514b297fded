package handlers

import (
	"net/http"
	"strconv"

	"github.com/Lupao-eth/triptask-backend/apperr"
	"github.com/Lupao-eth/triptask-backend/chat"
	"github.com/Lupao-eth/triptask-backend/middleware"
	"github.com/Lupao-eth/triptask-backend/models"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	Log *chat.Log
}

// PostMessageRequest deliberately carries no sender field; the display
// name is resolved from the authenticated session so it cannot be
// spoofed.
type PostMessageRequest struct {
	TaskID   uint                `json:"taskId" binding:"required"`
	Text     string              `json:"text"`
	FileURLs []models.Attachment `json:"fileUrls"`
}

// History returns a task's messages in creation order with attachment
// paths resolved to signed URLs.
func (h *ChatHandler) History(c *gin.Context) {
	taskID, err := strconv.ParseUint(c.Param("taskId"), 10, 64)
	if err != nil {
		fail(c, apperr.Wrap(apperr.ErrValidation, "invalid task ID"))
		return
	}
	msgs, err := h.Log.List(uint(taskID))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// Post appends a message to a task's chat and fans it out to the room.
func (h *ChatHandler) Post(c *gin.Context) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.Log.Append(req.TaskID, middleware.GetUserID(c), req.Text, req.FileURLs)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

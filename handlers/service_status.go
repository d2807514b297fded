package handlers

import (
	"net/http"
	"time"

	"github.com/Lupao-eth/triptask-backend/apperr"
	"github.com/Lupao-eth/triptask-backend/hub"
	"github.com/Lupao-eth/triptask-backend/middleware"
	"github.com/Lupao-eth/triptask-backend/models"
	"github.com/Lupao-eth/triptask-backend/policy"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type StatusHandler struct {
	DB  *gorm.DB
	Hub *hub.Hub
}

type PutStatusRequest struct {
	IsOnline *bool `json:"isOnline" binding:"required"`
}

// Get reads the global circuit breaker.
func (h *StatusHandler) Get(c *gin.Context) {
	var status models.ServiceStatus
	if err := h.DB.First(&status, 1).Error; err != nil {
		fail(c, apperr.Wrap(apperr.ErrUpstream, "fetch service status: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"isOnline": status.IsOnline})
}

// Put flips the circuit breaker. Admin or rider only; the write goes
// through the same conditional-update discipline as task transitions
// and the change is broadcast to every connected client.
func (h *StatusHandler) Put(c *gin.Context) {
	if err := policy.CanWriteServiceStatus(middleware.GetRole(c)); err != nil {
		fail(c, err)
		return
	}

	var req PutStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid isOnline value"})
		return
	}

	var status models.ServiceStatus
	if err := h.DB.First(&status, 1).Error; err != nil {
		fail(c, apperr.Wrap(apperr.ErrUpstream, "fetch service status: %v", err))
		return
	}
	if err := flipServiceStatus(h.DB, status.Version, *req.IsOnline); err != nil {
		fail(c, err)
		return
	}

	if h.Hub != nil {
		h.Hub.Broadcast("service-status", gin.H{"isOnline": *req.IsOnline})
	}
	c.JSON(http.StatusOK, gin.H{"message": "Service status updated successfully"})
}

// flipServiceStatus writes the breaker row with a version predicate.
// A writer that read version N only wins if the row is still at N; a
// concurrent flip in between surfaces as Conflict, never a silent
// overwrite.
func flipServiceStatus(db *gorm.DB, version uint, isOnline bool) error {
	res := db.Model(&models.ServiceStatus{}).
		Where("id = ? AND version = ?", 1, version).
		Updates(map[string]any{
			"is_online":  isOnline,
			"version":    version + 1,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return apperr.Wrap(apperr.ErrUpstream, "update service status: %v", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Wrap(apperr.ErrConflict, "service status changed underneath you")
	}
	return nil
}

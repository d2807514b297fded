package handlers

import (
	"net/http"

	"github.com/Lupao-eth/triptask-backend/apperr"
	"github.com/Lupao-eth/triptask-backend/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type UserHandler struct {
	DB *gorm.DB
}

// List returns every registered user. Admin only.
func (h *UserHandler) List(c *gin.Context) {
	var users []models.User
	if err := h.DB.Select("id", "name", "email", "role").Find(&users).Error; err != nil {
		fail(c, apperr.Wrap(apperr.ErrUpstream, "load users: %v", err))
		return
	}
	c.JSON(http.StatusOK, users)
}

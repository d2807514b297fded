package middleware

import (
	"log"
	"net/http"

	"github.com/Lupao-eth/triptask-backend/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ServiceOnline blocks task and chat mutation while the global circuit
// breaker is off. The flag is read fresh from the store on every check
// so that replicas never act on a stale cached value.
func ServiceOnline(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var status models.ServiceStatus
		if err := db.First(&status, 1).Error; err != nil {
			log.Printf("❌ service status check: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to verify service status."})
			c.Abort()
			return
		}
		if !status.IsOnline {
			c.JSON(http.StatusForbidden, gin.H{"error": "Service is currently offline."})
			c.Abort()
			return
		}
		c.Next()
	}
}

package handlers

import (
	"log"

	"github.com/Lupao-eth/triptask-backend/apperr"

	"github.com/gin-gonic/gin"
)

// fail translates a typed error into its HTTP response. Upstream
// failures are logged in full and answered with a generic message;
// everything else echoes its stable client-facing text.
func fail(c *gin.Context, err error) {
	status := apperr.Status(err)
	if apperr.IsInternal(err) {
		log.Printf("❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": "Something went wrong. Please try again."})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

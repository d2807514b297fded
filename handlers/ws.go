package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/Lupao-eth/triptask-backend/auth"
	"github.com/Lupao-eth/triptask-backend/hub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	Hub *hub.Hub
	// AllowAnyOrigin loosens the origin check for non-browser clients
	// and local development.
	AllowAnyOrigin bool
}

// Serve upgrades an authenticated client to a persistent connection.
// The bearer credential is verified exactly once, before the upgrade;
// a bad credential terminates the handshake, there is no anonymous or
// degraded mode. After the upgrade the client only sends join/leave.
func (h *WSHandler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	claims, err := auth.Verify(token)
	if err != nil || claims.TokenUse != auth.UseAccess {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if h.AllowAnyOrigin {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				// Non-browser clients often omit Origin. Allow them.
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return false
			}
			return strings.EqualFold(u.Host, r.Host)
		},
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	conn := h.Hub.Register(ws)
	conn.ReadLoop()
}

package hub

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBuffer   = 32
	writeTimeout = 10 * time.Second
	readLimit    = 1 << 16
	readTimeout  = 120 * time.Second
)

// ClientMessage is what connected clients send after the handshake:
// room membership changes only. Everything else flows over REST.
type ClientMessage struct {
	Action string `json:"action"` // "join" or "leave"
	Room   string `json:"room"`
}

// Conn is one registered client connection. The writer goroutine owns
// the socket for writes; ReadLoop owns it for reads.
type Conn struct {
	hub  *Hub
	ws   *websocket.Conn
	send chan Event
}

func (c *Conn) writePump() {
	for ev := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.ws.WriteJSON(ev); err != nil {
			c.hub.remove(c)
			_ = c.ws.Close()
			// Drain whatever the closer left behind.
			for range c.send {
			}
			return
		}
	}
	_ = c.ws.Close()
}

// ReadLoop consumes join/leave messages until the peer goes away, then
// silently drops the connection from every room. Invalid messages are
// ignored rather than fatal.
func (c *Conn) ReadLoop() {
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			break
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Action {
		case "join":
			if msg.Room != "" {
				c.hub.Join(c, msg.Room)
			}
		case "leave":
			if msg.Room != "" {
				c.hub.Leave(c, msg.Room)
			}
		}
	}
	c.hub.remove(c)
}

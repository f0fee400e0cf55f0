package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs attaches one websocket connection to the progress feed of a
// session. Blocks until the connection closes.
func ServeWs(hub *Hub, c *websocket.Conn, sessionId uuid.UUID) {
	client := &Client{Hub: hub, Conn: c, SessionID: sessionId, Send: make(chan []byte, 256)}
	client.Hub.register <- client

	go client.writePump()
	client.readPump()
}

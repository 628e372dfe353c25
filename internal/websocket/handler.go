package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches conn to sessionID's updates until the peer goes away.
func ServeWs(hub *Hub, c *websocket.Conn, sessionID string) {
	client := &Client{Hub: hub, Conn: c, SessionID: sessionID, Send: make(chan []byte, 256)}
	if !hub.registerClient(client) {
		c.Close()
		return
	}

	go client.writePump()
	client.readPump()
}

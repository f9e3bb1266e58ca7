package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs handles websocket requests from the peer. An empty jobID
// subscribes the client to updates for every job.
func ServeWs(hub *Hub, c *websocket.Conn, jobID string) {
	scope := jobID
	if scope == "" {
		scope = globalScope
	}

	client := &Client{Hub: hub, Conn: c, Scope: scope, Send: make(chan []byte, 256)}
	client.Hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)
}

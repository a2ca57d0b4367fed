package websocket

import (
	"encoding/json"

	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches conn to the hub under sessionID. initial events are
// queued before any hub traffic so the page starts from a full snapshot.
func ServeWs(hub *Hub, conn *websocket.Conn, sessionID string, initial ...Envelope) {
	client := &Client{Hub: hub, Conn: conn, SessionID: sessionID, Send: make(chan []byte, sendBuffer)}
	for _, ev := range initial {
		if data, err := json.Marshal(ev); err == nil {
			client.Send <- data
		}
	}
	if !hub.Register(client) {
		conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package sse

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsMessage is the text frame sent to WebSocket clients.
type wsMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// wsWriter writes events as JSON text messages.
type wsWriter struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (w *wsWriter) WriteEvent(eventType string, payload []byte) error {
	if w.timeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
			return err
		}
	}
	return w.conn.WriteJSON(wsMessage{Event: eventType, Data: payload})
}

func (w *wsWriter) Close() error {
	deadline := time.Now().Add(time.Second)
	//nolint:errcheck // best-effort close frame
	w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream closed"), deadline)
	return w.conn.Close()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Any origin may subscribe, matching the CORS policy of the HTTP API.
	CheckOrigin: func(*http.Request) bool { return true },
}

// readPump discards inbound messages and disconnects the client when the
// peer goes away. Returns when the connection fails.
func readPump(conn *websocket.Conn, c *Client) {
	conn.SetReadLimit(4096)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			c.Close()
			return
		}
	}
}

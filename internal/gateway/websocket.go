package gateway

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// Upgrader is the shared gorilla/websocket upgrader for the gateway's HTTP
// entry point, mirroring the teacher's package-level upgrader in
// cmd/game-server/main.go.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsChannel adapts a *websocket.Conn to the Channel interface.
type wsChannel struct {
	conn *websocket.Conn
}

// NewWebSocketChannel wraps an already-upgraded websocket connection.
func NewWebSocketChannel(conn *websocket.Conn) Channel {
	return &wsChannel{conn: conn}
}

func (w *wsChannel) ReadMessage() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	return data, err
}

func (w *wsChannel) WriteMessage(data []byte) error {
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsChannel) Close() error {
	return w.conn.Close()
}

package web

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn is the subset of *websocket.Conn the endpoint handlers need,
// declared as an interface so tests can substitute a fake socket.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The edge is a local-first tool; any origin check beyond bearer auth is
	// out of scope for this module.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// upgradeWithAuth upgrades r to a WebSocket after validating the ?token=
// query parameter, closing with code 1008 (policy violation) on mismatch.
func upgradeWithAuth(w http.ResponseWriter, r *http.Request, token string) wsConn {
	if !wsBearerOK(r, token) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return nil
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token"),
			time.Now().Add(time.Second))
		conn.Close()
		return nil
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Web] WS upgrade failed: %v", err)
		return nil
	}
	return conn
}

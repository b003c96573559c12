package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The control API sits behind the deployment's own proxy.
		return true
	},
}

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// TickFeed upgrades the connection and streams the world's tick events until
// the client disconnects. Events the client cannot keep up with are dropped
// by the hub, never buffered against the clock.
func (s *Server) TickFeed(w http.ResponseWriter, r *http.Request) {
	id, ok := worldID(r)
	if !ok {
		http.Error(w, "Invalid world id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade for world %d: %v", id, err)
		return
	}
	defer conn.Close()

	ch := s.hub.Subscribe(id, 64)
	defer s.hub.Unsubscribe(ch)

	// Drain client frames so close/ping handling works; we never expect
	// payloads on this feed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case e := <-ch:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

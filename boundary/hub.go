// ABOUTME: hub tracks per-userId websocket subscriptions and broadcasts proactive_expression
// ABOUTME: frames, pruning a connection on write error or close rather than failing the dispatch.

package boundary

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/2389-research/dialogued/proactive"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// hub is the process-wide (but instance-owned, never package-level) registry
// of active push subscriptions, keyed by userId.
type hub struct {
	mu    sync.RWMutex
	conns map[string][]*websocket.Conn
}

func newHub() *hub {
	return &hub{conns: make(map[string][]*websocket.Conn)}
}

func (h *hub) subscribe(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[userID] = append(h.conns[userID], conn)
}

func (h *hub) unsubscribe(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.conns[userID]
	for i, c := range conns {
		if c == conn {
			h.conns[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
	}
}

// broadcast sends dispatch to every connection subscribed under dispatch's
// owning userId.
func (h *hub) broadcast(dispatch proactive.Dispatch) {
	frame := map[string]any{
		"type":      "proactive_expression",
		"sessionId": dispatch.SessionID,
		"content":   dispatch.Content,
		"metadata":  dispatch.Metadata,
	}

	h.mu.RLock()
	targets := append([]*websocket.Conn{}, h.conns[dispatch.UserID]...)
	h.mu.RUnlock()

	for _, conn := range targets {
		if err := conn.WriteJSON(frame); err != nil {
			log.Printf("component=boundary action=broadcast kind=write_failed message=%q", err)
			h.pruneByConn(conn)
		}
	}
}

func (h *hub) pruneByConn(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.conns {
		for i, c := range conns {
			if c == conn {
				h.conns[userID] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		if len(h.conns[userID]) == 0 {
			delete(h.conns, userID)
		}
	}
	_ = conn.Close()
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("component=boundary action=stream_upgrade kind=upgrade_failed message=%q", err)
		return
	}
	s.hub.subscribe(userID, conn)

	defer func() {
		s.hub.unsubscribe(userID, conn)
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

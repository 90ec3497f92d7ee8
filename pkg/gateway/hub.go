package gateway

import (
	"net/http"
	"sync"

	"landkeeper/pkg/matchmaking"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Hub tracks locally-held /realtime WebSocket connections by ticket id
// and delivers match.assigned envelopes to them (spec §4.5 "Realtime
// push").
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*websocket.Conn
}

// NewHub builds an empty connection Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]*websocket.Conn)}
}

func (h *Hub) register(ticketID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[ticketID] = conn
}

func (h *Hub) unregister(ticketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, ticketID)
}

// DeliverLocal writes envelope to ticketID's connection if this node
// currently holds it, reporting whether a delivery was attempted.
func (h *Hub) DeliverLocal(ticketID string, envelope matchmaking.MatchAssignedEnvelope) bool {
	h.mu.RLock()
	conn, ok := h.conns[ticketID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	if err := conn.WriteJSON(envelope); err != nil {
		logrus.WithError(err).WithField("ticketId", ticketID).Warn("gateway: failed to deliver match.assigned")
	}
	return true
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades a /realtime?ticketId=... request and holds the
// connection open until the client disconnects or the ticket resolves,
// waiting to deliver a match.assigned push (spec §6 "the client opens
// /realtime and awaits a match.assigned push").
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ticketID := r.URL.Query().Get("ticketId")
	if ticketID == "" {
		http.Error(w, "ticketId is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("gateway: realtime upgrade failed")
		return
	}

	h.register(ticketID, conn)
	defer func() {
		h.unregister(ticketID)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

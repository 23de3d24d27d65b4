package websocket

import (
	"sync/atomic"

	"rhealth-backend/application/ports"
	"rhealth-backend/application/session"

	"go.uber.org/zap"
)

// Hub maintains the active WebSocket connections. It is the session registry
// the dispatcher registers clients with and the broadcast coordinator fans
// out to.
type Hub struct {
	sessions       *session.Registry
	maxConnections atomic.Int64
	// admitted counts connections holding a slot, from Admit until their
	// client is unregistered
	admitted atomic.Int64
	logger   *zap.Logger
}

// NewHub creates a new WebSocket hub. maxConnections <= 0 means unlimited.
func NewHub(maxConnections int, logger *zap.Logger) *Hub {
	h := &Hub{
		sessions: session.NewRegistry(),
		logger:   logger,
	}
	h.maxConnections.Store(int64(maxConnections))
	return h
}

// Register adds a session
func (h *Hub) Register(s ports.Session) {
	h.sessions.Register(s)
}

// Unregister removes a session and closes its send queue so the write pump
// can say goodbye. Unregistering twice is a no-op.
func (h *Hub) Unregister(s ports.Session) bool {
	if !h.sessions.Unregister(s) {
		return false
	}
	if c, ok := s.(*Client); ok {
		c.closeSend()
		h.Release()
	}
	return true
}

// Sessions returns the registered sessions in join order
func (h *Hub) Sessions() []ports.Session {
	return h.sessions.Sessions()
}

// Count returns the number of registered sessions
func (h *Hub) Count() int {
	return h.sessions.Count()
}

// SetMaxConnections changes the connection cap at runtime
func (h *Hub) SetMaxConnections(n int) {
	old := h.maxConnections.Swap(int64(n))
	if old != int64(n) {
		h.logger.Info("Connection limit changed", zap.Int64("from", old), zap.Int("to", n))
	}
}

// Admit reserves a connection slot and reports whether one was free. Every
// successful Admit is paired with a Release, which Unregister performs for
// clients that made it into the hub. Lowering the cap never evicts
// connections that already hold a slot.
func (h *Hub) Admit() bool {
	for {
		n := h.admitted.Load()
		if limit := h.maxConnections.Load(); limit > 0 && n >= limit {
			return false
		}
		if h.admitted.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release frees a slot taken by Admit
func (h *Hub) Release() {
	h.admitted.Add(-1)
}

// Admitted returns the number of slots currently held
func (h *Hub) Admitted() int {
	return int(h.admitted.Load())
}

// CloseAll closes every connection during shutdown. The read pumps notice and
// unregister their sessions.
func (h *Hub) CloseAll() {
	sessions := h.sessions.Sessions()
	for _, s := range sessions {
		if c, ok := s.(*Client); ok {
			c.conn.Close()
		}
	}
	h.logger.Info("All connections closed", zap.Int("count", len(sessions)))
}

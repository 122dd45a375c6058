package dashboard

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/mdmirror/mdmirror/internal/logging"
)

// writeTimeout bounds a single write to one client.
const writeTimeout = 5 * time.Second

// hub is the set of connected WebSocket clients and the queue of messages
// waiting to be fanned out to them. A client that fails a write is dropped.
type hub struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}

	queue  chan Message
	logger *logging.Logger
}

func newHub(queueSize int, logger *logging.Logger) *hub {
	return &hub{
		conns:  make(map[*websocket.Conn]struct{}),
		queue:  make(chan Message, queueSize),
		logger: logger,
	}
}

// join registers conn and returns the new client count.
func (h *hub) join(conn *websocket.Conn) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
	return len(h.conns)
}

// leave unregisters and closes conn. Repeated calls are no-ops.
func (h *hub) leave(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.conns[conn]
	delete(h.conns, conn)
	n := len(h.conns)
	h.mu.Unlock()

	if !ok {
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
	h.logger.Debug("client disconnected", "clients", n)
}

// closeAll disconnects every client with a going-away status.
func (h *hub) closeAll() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()

	for conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *hub) clients() []*websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		out = append(out, conn)
	}
	return out
}

// enqueue queues msg without blocking. It reports false when the queue is
// full and the message was dropped.
func (h *hub) enqueue(msg Message) bool {
	select {
	case h.queue <- msg:
		return true
	default:
		return false
	}
}

// run fans queued messages out until ctx is done.
func (h *hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.queue:
			data, err := encode(msg)
			if err != nil {
				h.logger.Error("failed to marshal message", "type", msg.Type, "error", err)
				continue
			}
			for _, conn := range h.clients() {
				if err := write(ctx, conn, data); err != nil {
					h.logger.Debug("failed to send to client", "error", err)
					h.leave(conn)
				}
			}
		}
	}
}

func encode(msg Message) ([]byte, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return json.Marshal(msg)
}

func write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

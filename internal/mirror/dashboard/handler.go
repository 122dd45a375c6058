package dashboard

import (
	"context"
	"encoding/json"
	"time"

	msync "github.com/mdmirror/mdmirror/internal/mirror/sync"
)

// Handler turns sync events into dashboard messages. It implements
// sync.Observer.
type Handler struct {
	server *Server
}

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server) *Handler {
	return &Handler{server: server}
}

// OnFileSynced implements sync.Observer.
func (h *Handler) OnFileSynced(outcome msync.FileOutcome) {
	h.send(MessageTypeFileSynced, outcome)
}

// OnSyncComplete implements sync.Observer. A status snapshot follows the
// result so clients can refresh their counts.
func (h *Handler) OnSyncComplete(result *msync.Result) {
	h.send(MessageTypeSyncComplete, result)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg, err := h.server.statusMessage(ctx)
	if err != nil {
		h.server.logger.Warn("failed to read status", "error", err)
		return
	}
	h.server.Broadcast(msg)
}

func (h *Handler) send(t MessageType, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.server.logger.Error("failed to marshal event", "type", t, "error", err)
		return
	}
	h.server.Broadcast(Message{Type: t, Timestamp: time.Now(), Data: data})
}

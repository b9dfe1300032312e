// Package device pushes manifest updates to connected blurt devices over
// websockets.
package device

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/user/blurt/internal/delivery"
)

// Hub tracks device connections by signal id.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.signalID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.signalID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.signalID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.clients, c.signalID)
		}
	}
	h.mu.Unlock()
}

// Push sends data to every device subscribed to signalID and reports how
// many took it. Devices with a full buffer miss the message.
func (h *Hub) Push(signalID string, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for c := range h.clients[signalID] {
		select {
		case c.send <- data:
			sent++
		default:
			h.logger.Warn("device buffer full, dropping message", "signal_id", signalID)
		}
	}
	return sent
}

// Notify pushes n to the devices of its signal id. It satisfies
// delivery.Handler.
func (h *Hub) Notify(_ context.Context, n delivery.Notice) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notice: %w", err)
	}
	sent := h.Push(n.SignalID, data)
	h.logger.Debug("manifest pushed", "signal_id", n.SignalID, "devices", sent)
	return nil
}

// ClientCount returns the number of devices connected for signalID, or the
// total when signalID is empty.
func (h *Hub) ClientCount(signalID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if signalID != "" {
		return len(h.clients[signalID])
	}
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

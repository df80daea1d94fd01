package ws

import (
	"encoding/json"
	"gamewarden/internal/domain"
	"log/slog"
	"sync"
)

// HubManager owns one Hub per server name and turns lifecycle events into
// websocket messages.
type HubManager struct {
	hubs               map[string]*Hub
	mu                 sync.Mutex
	defaultHistorySize int
	log                *slog.Logger
}

func NewHubManager(defaultHistorySize int, logger *slog.Logger) *HubManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &HubManager{
		hubs:               make(map[string]*Hub),
		defaultHistorySize: defaultHistorySize,
		log:                logger.With("component", "ws"),
	}
}

func (m *HubManager) GetHub(server string) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[server]; ok {
		return hub
	}

	hub := NewHub(m.defaultHistorySize, m.log.With("server", server))
	go hub.Run()
	m.hubs[server] = hub
	return hub
}

func (m *HubManager) Publish(server string, ev domain.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		m.log.Error("could not encode event", "server", server, "error", err)
		return
	}
	m.GetHub(server).Broadcast(payload)
}

// Close stops every hub and disconnects their clients.
func (m *HubManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, hub := range m.hubs {
		hub.Stop()
		delete(m.hubs, name)
	}
}

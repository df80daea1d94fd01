package ws

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans messages out to every websocket client watching one server and
// keeps the last few so late subscribers can catch up.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once

	history    [][]byte
	maxHistory int

	log *slog.Logger
	mu  sync.RWMutex
}

func NewHub(maxHistory int, logger *slog.Logger) *Hub {
	if maxHistory < 0 {
		maxHistory = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		maxHistory: maxHistory,
		log:        logger,
	}
}

func (h *Hub) History() [][]byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.history) == 0 {
		return nil
	}
	out := make([][]byte, len(h.history))
	copy(out, h.history)
	return out
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			// replay happens on the hub goroutine so no broadcast can slip
			// in between the snapshot and registration
			for _, msg := range h.History() {
				select {
				case client.send <- msg:
				default:
				}
			}
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case message := <-h.broadcast:
			if h.maxHistory > 0 {
				h.mu.Lock()
				h.history = append(h.history, message)
				if len(h.history) > h.maxHistory {
					h.history = h.history[len(h.history)-h.maxHistory:]
				}
				h.mu.Unlock()
			}

			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.log.Warn("dropping slow websocket client", "remote", client.conn.RemoteAddr().String())
					close(client.send)
					delete(h.clients, client)
				}
			}

		case <-h.stop:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		}
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Broadcast queues message for every client. It never blocks once the hub
// is stopped.
func (h *Hub) Broadcast(message []byte) {
	msg := append([]byte(nil), message...)
	select {
	case h.broadcast <- msg:
	case <-h.stop:
	}
}

func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	client := newClient(h, conn)

	select {
	case h.register <- client:
	case <-h.stop:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

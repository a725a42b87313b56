package ws

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/unklstewy/flightmap/internal/logger"
	"github.com/unklstewy/flightmap/internal/tracker"
	"github.com/unklstewy/flightmap/pkg/flight"
)

// SessionInfo summarizes one connected client.
type SessionInfo struct {
	ID     string               `json:"id"`
	Remote string               `json:"remote"`
	Filter string               `json:"filter,omitempty"`
	Status tracker.PollerStatus `json:"status"`
}

// Hub accepts WebSocket connections and gives each its own tracker session.
// The upstream source is shared by every session.
type Hub struct {
	src      tracker.Source
	dir      *flight.Directory
	cfg      tracker.SessionConfig
	recorder tracker.Recorder
	log      *logger.Logger
	upgrader websocket.Upgrader

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	nextID     atomic.Uint64
	done       chan struct{}
}

// NewHub creates a hub. recorder may be nil.
func NewHub(src tracker.Source, dir *flight.Directory, cfg tracker.SessionConfig, recorder tracker.Recorder, log *logger.Logger) *Hub {
	if dir == nil {
		dir = flight.DefaultDirectory()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		src:        src,
		dir:        dir,
		cfg:        cfg,
		recorder:   recorder,
		log:        log.Named("ws"),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // CORS is enforced by the HTTP layer
			},
		},
	}
}

// Run processes registrations until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("Starting WebSocket hub")
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("Client registered", logger.String("session", client.session.ID()), logger.Int("client_count", count))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("Client unregistered", logger.String("session", client.session.ID()), logger.Int("client_count", count))

		case <-ctx.Done():
			h.mu.Lock()
			clients := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()

			for _, c := range clients {
				c.close()
			}
			h.log.Info("WebSocket hub stopped", logger.Int("closed_clients", len(clients)))
			return
		}
	}
}

// ServeHTTP upgrades the request and starts a session for it.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade connection", logger.Error(err), logger.String("remote_addr", r.RemoteAddr))
		return
	}

	id := fmt.Sprintf("ws-%d", h.nextID.Add(1))
	client := newClient(h, conn, id, r.RemoteAddr)

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	h.log.Info("WebSocket session started", logger.String("session", id), logger.String("remote_addr", r.RemoteAddr))

	client.session.Start(client.ctx)
	go client.writePump()
	go client.readPump()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Sessions describes every connected client, ordered by session id.
func (h *Hub) Sessions() []SessionInfo {
	h.mu.RLock()
	infos := make([]SessionInfo, 0, len(h.clients))
	for c := range h.clients {
		infos = append(infos, SessionInfo{
			ID:     c.session.ID(),
			Remote: c.remote,
			Filter: c.session.Filter().Input(),
			Status: c.session.Status(),
		})
	}
	h.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

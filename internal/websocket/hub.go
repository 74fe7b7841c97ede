package websocket

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/GabrielChurchill/YudokuChallenge/internal/repository"

	"github.com/gofiber/websocket/v2"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// How often the hub compares the redis version counter as a backstop
	// for pushes lost while a client was reconnecting. The UI also polls
	// the leaderboard endpoint on its own; the redundancy is intentional.
	versionPollInterval = 2 * time.Second
)

// updateMessage is the whole payload: listeners re-fetch the leaderboard
// themselves.
var updateMessage = []byte(`{"type":"leaderboardUpdated"}`)

// Client represents a WebSocket client connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub maintains the set of active leaderboard viewers and fans the
// changed notification out to them. Owned by main and injected into the
// service layer as its Notifier; never ambient global state.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client

	// notify coalesces pending leaderboard-changed pushes
	notify chan struct{}

	// versions is the redis change-detection counter; nil in memory mode
	versions *repository.RedisRepository

	mu sync.RWMutex

	lastVersion int64
}

// NewHub creates a new WebSocket hub. versions may be nil, disabling the
// poll backstop.
func NewHub(versions *repository.RedisRepository) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		notify:     make(chan struct{}, 1),
		clients:    make(map[*Client]bool),
		versions:   versions,
	}
}

// Notify schedules a leaderboard-changed push. Never blocks the caller;
// bursts collapse into one pending push.
func (h *Hub) Notify() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Run starts the WebSocket hub
func (h *Hub) Run(ctx context.Context) {
	log.Println("WebSocket hub started")

	ticker := time.NewTicker(versionPollInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("Leaderboard viewer connected (total: %d)", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("Leaderboard viewer disconnected (total: %d)", total)

		case <-h.notify:
			h.broadcast()

		case <-ticker.C:
			h.pollVersion(ctx)

		case <-ctx.Done():
			log.Println("WebSocket hub shutting down")
			return
		}
	}
}

// broadcast pushes the changed notification to every open channel.
// Fire-and-forget per listener: a full send buffer skips that listener,
// its own read pump handles the eventual disconnect.
func (h *Hub) broadcast() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- updateMessage:
		default:
			log.Printf("Viewer send buffer full, skipping")
		}
	}
}

// pollVersion broadcasts when the redis counter moved without a
// corresponding in-process Notify (e.g. another instance changed the
// leaderboard).
func (h *Hub) pollVersion(ctx context.Context) {
	if h.versions == nil {
		return
	}
	current, err := h.versions.GetVersion(ctx)
	if err != nil {
		log.Printf("Failed to get leaderboard version: %v", err)
		return
	}
	if current != h.lastVersion {
		h.lastVersion = current
		h.broadcast()
	}
}

// GetClientCount returns the current number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump drains the connection until the viewer disconnects. Viewers
// send nothing meaningful; reading is how disconnects are detected.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket unexpected close: %v", err)
			}
			break
		}
	}
}

// writePump pumps notifications from the hub to the WebSocket connection
func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
	}()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	// Hub closed the channel
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ServeWS handles WebSocket requests from leaderboard viewers
func ServeWS(hub *Hub, conn *websocket.Conn) {
	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 8),
	}

	client.hub.register <- client

	go client.writePump()

	// Blocks until disconnect
	client.readPump()
}

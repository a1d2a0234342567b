package coordinator

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/garnizeh/searchcoordinator/internal/jobqueue"
	"github.com/garnizeh/searchcoordinator/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// EventHub fans job lifecycle events (jobqueue.Event) out to every
// connected GET /status/stream websocket client. It implements
// jobqueue.EventSink, so it must be constructed before the engine and
// passed to jobqueue.WithEventSink — and then to coordinator.New — so
// both share the same instance.
type EventHub struct {
	log *logging.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}

	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
}

// NewEventHub constructs an EventHub. Call Run in a goroutine to start
// dispatching before any client connects.
func NewEventHub(log *logging.Logger) *EventHub {
	return &EventHub{
		log:        log,
		clients:    make(map[*wsClient]struct{}),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
	}
}

// Publish implements jobqueue.EventSink.
func (h *EventHub) Publish(ev jobqueue.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- b:
	default:
		// Slow consumers must not block the engine's event-publishing path.
	}
}

// Run dispatches registrations and broadcasts until ctx is cancelled.
func (h *EventHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
			}
			h.clients = nil
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

type wsClient struct {
	hub  *EventHub
	conn *websocket.Conn
	send chan []byte
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleStatusStream upgrades GET /status/stream to a websocket that
// streams job lifecycle events as they happen.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warning("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &wsClient{hub: s.hub, conn: conn, send: make(chan []byte, 64)}
	c.hub.register <- c

	go c.writePump()
	go c.readPump()
}

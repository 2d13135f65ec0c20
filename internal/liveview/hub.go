package liveview

import (
	"context"
	"sync"

	"swapdesk/internal/core"
	"swapdesk/pkg/concurrency"
	"swapdesk/pkg/telemetry"
)

// Client is one connected UI browser tab
type Client struct {
	id     string
	send   chan Message
	mu     sync.Mutex
	closed bool
}

func NewClient(id string) *Client {
	return &Client{
		id:   id,
		send: make(chan Message, 256), // Buffered to prevent blocking
	}
}

// Send queues a message for the client without blocking. Returns false when
// the client is closed or too slow to keep up.
func (c *Client) Send(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) SendChan() <-chan Message {
	return c.send
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub tracks connected clients and broadcasts state frames to all of them.
// Fan-out runs on the shared worker pool so a large client count never stalls
// the event that triggered the broadcast.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client

	mu     sync.RWMutex
	pool   *concurrency.WorkerPool
	logger core.ILogger
}

func NewHub(pool *concurrency.WorkerPool, logger core.ILogger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		pool:       pool,
		logger:     logger.WithField("component", "liveview"),
	}
}

// Run is the hub's main loop; it returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			telemetry.GetGlobalMetrics().SetConnectedClients("liveview", int64(total))
			h.logger.Info("Client registered", "client_id", client.id, "total_clients", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			telemetry.GetGlobalMetrics().SetConnectedClients("liveview", int64(total))
			h.logger.Info("Client unregistered", "client_id", client.id, "total_clients", total)

		case message := <-h.broadcast:
			h.mu.RLock()
			clientList := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clientList = append(clientList, client)
			}
			h.mu.RUnlock()

			h.fanOut(clientList, message)
		}
	}
}

func (h *Hub) fanOut(clients []*Client, msg Message) {
	for _, client := range clients {
		c := client
		err := h.pool.Submit(func() {
			if !c.Send(msg) {
				select {
				case h.unregister <- c:
				default:
				}
			}
		})
		if err != nil {
			// pool saturated, deliver inline
			if !c.Send(msg) {
				select {
				case h.unregister <- c:
				default:
				}
			}
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast queues a message for all clients, dropping it when the queue is
// full.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Broadcast channel full, dropping message", "type", msg.Type)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

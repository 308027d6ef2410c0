package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// WebSocketHub manages WebSocket connections and broadcasts ingestion
// notifications to every connected consumer.
type WebSocketHub struct {
	clients    map[*wsClient]bool
	broadcast  chan any
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
}

// wsClient is one WebSocket connection.
type wsClient struct {
	hub  *WebSocketHub
	conn *websocket.Conn
	send chan []byte
}

// NewWebSocketHub creates a new hub. Call Run to start its broadcast loop.
func NewWebSocketHub() *WebSocketHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketHub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan any, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run processes registrations and broadcasts until Stop is called.
func (h *WebSocketHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("server: websocket client connected (total: %d)", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("server: websocket client disconnected (total: %d)", count)

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				log.Printf("server: failed to marshal websocket message: %v", err)
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Slow consumer; disconnect rather than block the hub.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// Stop shuts down the hub and closes every client connection.
func (h *WebSocketHub) Stop() {
	h.cancel()
	h.mu.Lock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close(websocket.StatusNormalClosure, "")
	}
	h.clients = make(map[*wsClient]bool)
	h.mu.Unlock()
}

// Broadcast queues a message for every connected client. Messages are dropped
// (with a logged warning) when the queue is full; event notifications are
// advisory, the durable state is always available over the REST API.
func (h *WebSocketHub) Broadcast(message any) {
	select {
	case h.broadcast <- message:
	default:
		log.Println("server: websocket broadcast channel full, dropping message")
	}
}

// ServeHTTP upgrades the request to a WebSocket connection and registers it
// with the hub.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // consumers are same-host tools, no browser origin to validate
	})
	if err != nil {
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{hub: h, conn: conn, send: make(chan []byte, 256)}
	if !h.addClient(client) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go client.writePump()
	go client.readPump()
}

// addClient hands a connection to the hub loop. Returns false when the hub
// has stopped; the send would otherwise block forever with nobody receiving.
func (h *WebSocketHub) addClient(c *wsClient) bool {
	select {
	case h.register <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// removeClient asks the hub loop to drop a connection. After Stop this is a
// no-op; Stop already closed every client.
func (h *WebSocketHub) removeClient(c *wsClient) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// writePump sends queued messages to the connection.
func (c *wsClient) writePump() {
	defer c.conn.Close(websocket.StatusNormalClosure, "")
	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			c.hub.removeClient(c)
			return
		}
	}
}

// readPump drains the connection to detect disconnects; clients have nothing
// to say to the server.
func (c *wsClient) readPump() {
	defer c.conn.Close(websocket.StatusNormalClosure, "")
	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			c.hub.removeClient(c)
			return
		}
	}
}

package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // single-tenant app behind the workshop firewall
	},
}

// Hub fans schedule change events out to the connected planning boards.
// It implements the scheduler's Notifier.
type Hub struct {
	mu    sync.Mutex
	conns map[*wsConnection]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*wsConnection]bool)}
}

// Event represents one schedule change pushed to the planning board.
type Event struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
	At      time.Time   `json:"at"`
}

// Publish broadcasts a schedule change to every connected client.
func (h *Hub) Publish(event string, payload interface{}) {
	data, err := json.Marshal(Event{Event: event, Payload: payload, At: time.Now()})
	if err != nil {
		log.Printf("Error marshaling event %s: %v", event, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		select {
		case conn.send <- data:
		default:
			log.Println("WebSocket buffer full, dropping event")
		}
	}
}

func (h *Hub) register(c *wsConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = true
}

func (h *Hub) unregister(c *wsConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}

// wsConnection maintains one planning-board client connection.
type wsConnection struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// handleWebSocket upgrades a planning-board connection and starts its pumps.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	wsConn := &wsConnection{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  s.Hub,
	}
	s.Hub.register(wsConn)

	go wsConn.writePump()
	go wsConn.readPump()
}

// readPump drains client messages; the planning board only listens, so
// reads exist to notice disconnects and answer pings.
func (c *wsConnection) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

// writePump pushes events and keepalive pings to the client.
func (c *wsConnection) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

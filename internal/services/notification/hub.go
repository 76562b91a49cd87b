package notification

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"restaurant-ordering/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

type client struct {
	room string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans notifications out to websocket clients grouped by room.
// Rooms are "branch:<id>" for staff screens and "table:<id>" for customers.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*client]struct{}
	logger   *logger.Logger
	upgrader websocket.Upgrader
}

// NewHub creates an empty hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*client]struct{}),
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ValidRoom reports whether room names a branch or table channel
func ValidRoom(room string) bool {
	for _, prefix := range []string{"branch:", "table:"} {
		if strings.HasPrefix(room, prefix) && len(room) > len(prefix) {
			return true
		}
	}
	return false
}

func (h *Hub) join(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[c.room] == nil {
		h.rooms[c.room] = make(map[*client]struct{})
	}
	h.rooms[c.room][c] = struct{}{}
}

func (h *Hub) leave(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[c.room]
	if !ok {
		return
	}
	if _, ok := members[c]; !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, c.room)
	}
	close(c.send)
}

// Publish queues payload for every client of room and returns how many accepted it.
// Clients whose buffer is full are disconnected.
func (h *Hub) Publish(room string, payload []byte) int {
	var slow []*client
	delivered := 0

	h.mu.RLock()
	for c := range h.rooms[room] {
		select {
		case c.send <- payload:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("ws_client_dropped", "Dropping slow websocket client", "", map[string]interface{}{"room": room})
		h.leave(c)
	}
	return delivered
}

// ClientCount returns the number of connected clients in room
func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, members := range h.rooms {
		for c := range members {
			close(c.send)
		}
		delete(h.rooms, room)
	}
}

// HandleWebSocket upgrades GET /ws/:room and streams the room's notifications
func (h *Hub) HandleWebSocket(c *gin.Context) {
	room := c.Param("room")
	if !ValidRoom(room) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room must be branch:<id> or table:<id>"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("ws_upgrade_failed", "Failed to upgrade websocket", "", err, map[string]interface{}{"room": room})
		return
	}

	cl := &client{room: room, conn: conn, send: make(chan []byte, sendBuffer)}
	h.join(cl)
	h.logger.Debug("ws_client_joined", "Websocket client joined", "", map[string]interface{}{"room": room})

	go h.writePump(cl)
	h.readPump(cl)
}

// readPump only watches for disconnects and pongs; clients never send notifications
func (h *Hub) readPump(c *client) {
	defer func() {
		h.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

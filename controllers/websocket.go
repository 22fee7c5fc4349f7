package controllers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"slopesentry/config"
	"slopesentry/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const writeWait = 5 * time.Second

// Client is one connected dashboard.
type Client struct {
	Conn   *websocket.Conn
	UserID uint

	mu sync.Mutex // gorilla connections allow one writer at a time
}

func (c *Client) write(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(websocket.TextMessage, msg)
}

// Hub tracks dashboard connections and pushes new verdicts to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*Client)}
}

// LiveHub is the process-wide dashboard hub.
var LiveHub = NewHub()

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c.Conn] = c
	h.mu.Unlock()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

// Len is the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg []byte) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(msg); err != nil {
			slog.Debug("websocket write failed", "user_id", c.UserID, "err", err)
		}
	}
}

// BroadcastVerdict sends a stored reading to all WebSocket clients.
func (h *Hub) BroadcastVerdict(rec models.SensorReading) {
	msg, err := json.Marshal(gin.H{"type": "reading", "data": rec})
	if err != nil {
		return
	}
	h.broadcast(msg)
}

// BroadcastAlert tells all clients a High verdict was produced.
func (h *Hub) BroadcastAlert(rec models.SensorReading) {
	var count int64
	if config.DB != nil {
		config.DB.Model(&models.SensorReading{}).Where("risk_state = ?", "High").Count(&count)
	}

	msg, err := json.Marshal(gin.H{
		"type":        "alert",
		"message":     "High landslide risk detected!",
		"data":        rec,
		"alert_count": count,
	})
	if err != nil {
		return
	}
	h.broadcast(msg)
}

// HandleWebSocket upgrades the request and keeps the connection registered
// until the client goes away.
func HandleWebSocket(c *gin.Context) {
	userID, ok := contextUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	LiveHub.add(&Client{Conn: conn, UserID: userID})
	defer func() {
		LiveHub.remove(conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// contextUserID converts the user_id claim set by the auth middleware.
func contextUserID(c *gin.Context) (uint, bool) {
	raw, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return uint(v), true
	case uint:
		return v, true
	case int:
		return uint(v), true
	case string:
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			return uint(id), true
		}
	}
	return 0, false
}

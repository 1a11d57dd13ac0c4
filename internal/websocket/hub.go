package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"hrportal/internal/changefeed"
	"hrportal/internal/metrics"
	"hrportal/internal/middleware"
	"hrportal/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	snapshotTimeout = 10 * time.Second

	// EventSnapshot is the only message the hub sends
	EventSnapshot = "requests.snapshot"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for dev simplicity
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SnapshotSource produces the request view a connected viewer is allowed to see
type SnapshotSource interface {
	Snapshot(ctx context.Context, viewer service.Viewer) (service.Projection, error)
}

// Message is the frame written to clients
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Client is one connected viewer
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	viewer  service.Viewer
	send    chan []byte
	refresh chan struct{}
	done    chan struct{}
}

// Hub keeps the connected clients and pushes each of them a fresh snapshot whenever the
// change feed reports a request change.
type Hub struct {
	source     SnapshotSource
	feed       changefeed.Feed
	secret     []byte
	log        *zap.Logger
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}
}

func NewHub(source SnapshotSource, feed changefeed.Feed, secret []byte, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		source:     source,
		feed:       feed,
		secret:     secret,
		log:        log.Named("websocket"),
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
	}
}

// Run is the hub loop. It returns when ctx is cancelled, closing every client.
func (h *Hub) Run(ctx context.Context) {
	signals := h.feed.Subscribe()
	defer h.feed.Unsubscribe(signals)
	defer close(h.stopped)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.remove(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			metrics.WebsocketClients.Inc()
			h.log.Info("Client connected", zap.String("user_id", c.viewer.UserID), zap.Int("clients", len(h.clients)))
			c.requestRefresh()
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.remove(c)
				h.log.Info("Client disconnected", zap.String("user_id", c.viewer.UserID), zap.Int("clients", len(h.clients)))
			}
		case sig, ok := <-signals:
			if !ok {
				return
			}
			h.log.Debug("Request changed", zap.String("request_id", sig.RequestID), zap.String("event", sig.Event))
			for c := range h.clients {
				c.requestRefresh()
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	delete(h.clients, c)
	close(c.done)
	metrics.WebsocketClients.Dec()
}

// ServeWs authenticates via the token query parameter (or the access token cookie) and
// upgrades the connection.
func (h *Hub) ServeWs(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		tokenString, _ = c.Cookie("access_token")
	}
	if tokenString == "" {
		h.log.Warn("Connection rejected: missing token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	claims, err := middleware.ParseToken(h.secret, tokenString)
	if err != nil {
		h.log.Warn("Connection rejected: invalid token", zap.Error(err))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:     h,
		conn:    conn,
		viewer:  service.Viewer{UserID: claims.Subject, Role: claims.Role, Department: claims.Dept},
		send:    make(chan []byte, 16),
		refresh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	select {
	case h.register <- client:
	case <-h.stopped:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.snapshotPump()
	go client.readPump()
}

// requestRefresh coalesces bursts of changes into one pending reload
func (c *Client) requestRefresh() {
	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

func (c *Client) snapshotPump() {
	for {
		select {
		case <-c.done:
			return
		case <-c.refresh:
		}

		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		snap, err := c.hub.source.Snapshot(ctx, c.viewer)
		cancel()
		if err != nil {
			c.hub.log.Error("Failed to build snapshot", zap.String("user_id", c.viewer.UserID), zap.Error(err))
			continue
		}

		payload, err := json.Marshal(Message{Event: EventSnapshot, Data: snap})
		if err != nil {
			c.hub.log.Error("Failed to encode snapshot", zap.Error(err))
			continue
		}

		select {
		case c.send <- payload:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// readPump only keeps the connection alive; clients never send commands
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopped:
		}
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("Unexpected close", zap.String("user_id", c.viewer.UserID), zap.Error(err))
			}
			return
		}
	}
}

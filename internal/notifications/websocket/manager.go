package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/notifications"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// ErrHubClosed is returned when notifying through a stopped hub
var ErrHubClosed = errors.New("websocket hub closed")

// ErrBroadcastFull is returned when the broadcast queue cannot take another alert
var ErrBroadcastFull = errors.New("websocket broadcast queue full")

// Manager handles WebSocket connections and routes alerts to the
// connections subscribed to the alert's company.
type Manager struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// Connection represents a WebSocket client connection
type Connection struct {
	ID           string
	UserID       string
	Conn         *websocket.Conn
	Send         chan notifications.WebSocketMessage
	LastActivity time.Time
	UserAgent    string
	IPAddress    string

	mu        sync.Mutex
	companies map[string]bool
}

func (c *Connection) subscribe(companyIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range companyIDs {
		if id = strings.TrimSpace(id); id != "" {
			c.companies[id] = true
		}
	}
}

func (c *Connection) unsubscribe(companyIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range companyIDs {
		delete(c.companies, id)
	}
}

func (c *Connection) subscribed(companyID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.companies[companyID]
}

// Subscriptions returns the company ids this connection receives alerts for
func (c *Connection) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.companies))
	for id := range c.companies {
		ids = append(ids, id)
	}
	return ids
}

func (c *Connection) touch() {
	c.mu.Lock()
	c.LastActivity = time.Now()
	c.mu.Unlock()
}

type envelope struct {
	companyID string
	message   notifications.WebSocketMessage
}

type directMessage struct {
	conn    *Connection
	message notifications.WebSocketMessage
}

// Hub owns the set of live connections. Only the hub goroutine closes a
// connection's Send channel.
type Hub struct {
	connections map[*Connection]bool
	broadcast   chan envelope
	direct      chan directMessage
	register    chan *Connection
	unregister  chan *Connection
	stop        chan struct{}
	done        chan struct{}
	stopOnce    sync.Once
	count       atomic.Int64
	logger      *zap.Logger
}

func newHub(logger *zap.Logger) *Hub {
	return &Hub{
		connections: make(map[*Connection]bool),
		broadcast:   make(chan envelope, sendBuffer),
		direct:      make(chan directMessage, sendBuffer),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// NewManager creates a new WebSocket manager and starts its hub
func NewManager(logger *zap.Logger) *Manager {
	hub := newHub(logger)
	go hub.run()

	return &Manager{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleConnection upgrades the request and registers the connection with an
// initial set of company subscriptions.
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, userID string, companyIDs []string) (*Connection, error) {
	select {
	case <-m.hub.stop:
		return nil, ErrHubClosed
	default:
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:           uuid.New().String(),
		UserID:       userID,
		Conn:         conn,
		Send:         make(chan notifications.WebSocketMessage, sendBuffer),
		LastActivity: time.Now(),
		UserAgent:    r.Header.Get("User-Agent"),
		IPAddress:    r.RemoteAddr,
		companies:    make(map[string]bool),
	}
	connection.subscribe(companyIDs)

	select {
	case m.hub.register <- connection:
	case <-m.hub.stop:
		conn.Close()
		return nil, ErrHubClosed
	}

	go m.readPump(connection)
	go m.writePump(connection)

	m.logger.Debug("WebSocket connected",
		zap.String("connection_id", connection.ID),
		zap.String("user_id", userID),
		zap.Int("subscriptions", len(companyIDs)),
	)

	return connection, nil
}

// ServeGin is the gin handler for the alert stream. Initial subscriptions
// come from repeated company_id query parameters.
func (m *Manager) ServeGin(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		userID = c.GetHeader("X-User-ID")
	}

	if _, err := m.HandleConnection(c.Writer, c.Request, userID, c.QueryArray("company_id")); err != nil {
		m.logger.Warn("WebSocket connection rejected", zap.Error(err))
		if errors.Is(err, ErrHubClosed) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		}
	}
}

// readPump reads client frames until the connection fails
func (m *Manager) readPump(conn *Connection) {
	defer func() {
		select {
		case m.hub.unregister <- conn:
		case <-m.hub.done:
		}
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(maxMessageSize)
	conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.Conn.SetPongHandler(func(string) error {
		conn.touch()
		return conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg notifications.WebSocketMessage
		if err := conn.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				m.logger.Warn("WebSocket read error", zap.String("connection_id", conn.ID), zap.Error(err))
			}
			return
		}

		conn.touch()
		m.handleMessage(conn, msg)
	}
}

// writePump delivers queued messages and keeps the connection alive with pings
func (m *Manager) writePump(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes subscription changes and pings from the client
func (m *Manager) handleMessage(conn *Connection, msg notifications.WebSocketMessage) {
	var reply notifications.WebSocketMessage

	switch msg.Type {
	case notifications.MessageTypeSubscribe:
		conn.subscribe(msg.CompanyIDs)
		reply = notifications.WebSocketMessage{Type: notifications.MessageTypeSubscribed, CompanyIDs: conn.Subscriptions()}
	case notifications.MessageTypeUnsubscribe:
		conn.unsubscribe(msg.CompanyIDs)
		reply = notifications.WebSocketMessage{Type: notifications.MessageTypeSubscribed, CompanyIDs: conn.Subscriptions()}
	case notifications.MessageTypePing:
		reply = notifications.WebSocketMessage{Type: notifications.MessageTypePong}
	default:
		reply = notifications.WebSocketMessage{Type: notifications.MessageTypeError, Data: "unknown message type: " + msg.Type}
	}
	reply.Timestamp = time.Now().UTC()

	select {
	case m.hub.direct <- directMessage{conn: conn, message: reply}:
	case <-m.hub.stop:
	}
}

// Notify queues an alert for every connection subscribed to its company.
// It never blocks on slow clients.
func (m *Manager) Notify(ctx context.Context, alert notifications.Alert) error {
	select {
	case <-m.hub.stop:
		return ErrHubClosed
	default:
	}

	a := alert
	env := envelope{
		companyID: alert.CompanyID.String(),
		message: notifications.WebSocketMessage{
			Type:      notifications.MessageTypeAlert,
			Alert:     &a,
			Timestamp: time.Now().UTC(),
		},
	}

	select {
	case m.hub.broadcast <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBroadcastFull
	}
}

// GetConnectionCount returns the number of registered connections
func (m *Manager) GetConnectionCount() int {
	return int(m.hub.count.Load())
}

// Close stops the hub and disconnects every client
func (m *Manager) Close() {
	m.hub.stopOnce.Do(func() { close(m.hub.stop) })
	<-m.hub.done
}

// run is the hub's event loop
func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case conn := <-h.register:
			h.connections[conn] = true
			h.count.Add(1)

		case conn := <-h.unregister:
			h.remove(conn)

		case msg := <-h.direct:
			if h.connections[msg.conn] {
				h.deliver(msg.conn, msg.message)
			}

		case env := <-h.broadcast:
			delivered := 0
			for conn := range h.connections {
				if conn.subscribed(env.companyID) {
					h.deliver(conn, env.message)
					delivered++
				}
			}
			h.logger.Debug("Alert broadcast",
				zap.String("company_id", env.companyID),
				zap.Int("recipients", delivered),
			)

		case <-h.stop:
			for conn := range h.connections {
				h.remove(conn)
			}
			return
		}
	}
}

// deliver queues a message, dropping the connection when its buffer is full
func (h *Hub) deliver(conn *Connection, message notifications.WebSocketMessage) {
	select {
	case conn.Send <- message:
	default:
		h.logger.Warn("Dropping slow WebSocket client", zap.String("connection_id", conn.ID))
		h.remove(conn)
	}
}

func (h *Hub) remove(conn *Connection) {
	if !h.connections[conn] {
		return
	}
	delete(h.connections, conn)
	close(conn.Send)
	h.count.Add(-1)
}

var _ notifications.Notifier = (*Manager)(nil)

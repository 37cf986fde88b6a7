package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// IntentHandler reacts to client frames and connection loss
type IntentHandler interface {
	HandleMessage(ctx context.Context, c *Connection, raw []byte)
	HandleDisconnect(ctx context.Context, connID string)
}

// ConnectionManager manages websocket connections and their room broadcast groups
type ConnectionManager struct {
	connections map[string]*Connection
	rooms       map[string]map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	handler  IntentHandler

	broadcastCh chan BroadcastMessage
}

// Connection represents a websocket connection to a client
type Connection struct {
	ID       string
	RoomCode string // broadcast group, guarded by the manager lock
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	progressLimiter *rate.Limiter

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for websocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool

	// ProgressRate and ProgressBurst bound player_update frames per connection
	ProgressRate  rate.Limit
	ProgressBurst int
}

// BroadcastMessage is an encoded frame queued for one room or one connection
type BroadcastMessage struct {
	RoomCode string
	ConnID   string // if set, only send to this connection
	Type     EventType
	Data     []byte
}

// DefaultConnectionConfig returns default websocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		ProgressRate:  rate.Limit(20),
		ProgressBurst: 10,
	}
}

// NewConnectionManager creates a new websocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		rooms:       make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// SetIntentHandler installs the handler for inbound frames. Call before serving.
func (cm *ConnectionManager) SetIntentHandler(h IntentHandler) {
	cm.handler = h
}

// Start processes queued broadcasts until ctx is done
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to websocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := cm.newConnection(uuid.New().String())
	connection.Conn = conn
	cm.registerConnection(connection)

	ctx := context.WithoutCancel(r.Context())
	go connection.writePump()
	go connection.readPump(ctx)

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("websocket connection established")

	return connection, nil
}

func (cm *ConnectionManager) newConnection(id string) *Connection {
	size := cm.config.SendBufferSize
	if size <= 0 {
		size = 256
	}
	return &Connection{
		ID:              id,
		Send:            make(chan []byte, size),
		Manager:         cm,
		progressLimiter: rate.NewLimiter(cm.config.ProgressRate, cm.config.ProgressBurst),
		ConnectedAt:     time.Now(),
	}
}

// AllowProgress reports whether another progress update fits the connection's rate
func (c *Connection) AllowProgress() bool {
	if c.progressLimiter == nil {
		return true
	}
	return c.progressLimiter.Allow()
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn.ID] = conn
	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection and notifies the handler. It runs
// on the connection's read pump so no intent from the connection can land after
// the disconnect. Only the first call for a connection has any effect.
func (cm *ConnectionManager) unregisterConnection(ctx context.Context, conn *Connection) {
	cm.mu.Lock()
	if _, exists := cm.connections[conn.ID]; !exists {
		cm.mu.Unlock()
		return
	}
	delete(cm.connections, conn.ID)
	cm.removeFromRoomLocked(conn)
	close(conn.Send)
	cm.mu.Unlock()

	log.Info().
		Str("connection_id", conn.ID).
		Dur("connected_for", time.Since(conn.ConnectedAt)).
		Msg("connection unregistered")

	if cm.handler != nil {
		cm.handler.HandleDisconnect(ctx, conn.ID)
	}
}

func (cm *ConnectionManager) removeFromRoomLocked(conn *Connection) {
	if conn.RoomCode == "" {
		return
	}
	if members, ok := cm.rooms[conn.RoomCode]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(cm.rooms, conn.RoomCode)
		}
	}
	conn.RoomCode = ""
}

// JoinRoom moves a connection into a room's broadcast group
func (cm *ConnectionManager) JoinRoom(connID, code string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	conn, ok := cm.connections[connID]
	if !ok {
		return
	}
	cm.removeFromRoomLocked(conn)
	if cm.rooms[code] == nil {
		cm.rooms[code] = make(map[*Connection]bool)
	}
	cm.rooms[code][conn] = true
	conn.RoomCode = code
}

// LeaveRoom removes a connection from its broadcast group
func (cm *ConnectionManager) LeaveRoom(connID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if conn, ok := cm.connections[connID]; ok {
		cm.removeFromRoomLocked(conn)
	}
}

// BroadcastToRoom queues an event for every connection in a room
func (cm *ConnectionManager) BroadcastToRoom(code string, eventType EventType, data any) {
	cm.enqueue(BroadcastMessage{RoomCode: code, Type: eventType}, data)
}

// SendToConnection queues an event for a single connection
func (cm *ConnectionManager) SendToConnection(connID string, eventType EventType, data any) {
	cm.enqueue(BroadcastMessage{ConnID: connID, Type: eventType}, data)
}

func (cm *ConnectionManager) enqueue(message BroadcastMessage, data any) {
	frame, err := json.Marshal(Message[any]{Type: message.Type, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event_type", string(message.Type)).Msg("failed to marshal event for broadcast")
		return
	}
	message.Data = frame

	select {
	case cm.broadcastCh <- message:
	default:
		log.Warn().
			Str("room_code", message.RoomCode).
			Str("connection_id", message.ConnID).
			Str("event_type", string(message.Type)).
			Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	var slow []*Connection
	delivered := 0

	// Sends happen under the read lock so no connection's Send channel can be
	// closed underneath us.
	cm.mu.RLock()
	for _, conn := range cm.targets(message) {
		select {
		case conn.Send <- message.Data:
			delivered++
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	// Only the socket is closed here. The read pump sees the error and runs
	// the disconnect path after any intent it is still handling.
	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("connection send buffer full, closing connection")
		if conn.Conn != nil {
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(message.Type)).
		Str("room_code", message.RoomCode).
		Int("connections", delivered).
		Msg("event broadcasted")
}

func (cm *ConnectionManager) targets(message BroadcastMessage) []*Connection {
	if message.ConnID != "" {
		if conn, ok := cm.connections[message.ConnID]; ok {
			return []*Connection{conn}
		}
		return nil
	}
	members := cm.rooms[message.RoomCode]
	out := make([]*Connection, 0, len(members))
	for conn := range members {
		out = append(out, conn)
	}
	return out
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		if conn.Conn != nil {
			conn.Conn.Close()
		}
	}
}

// ConnectionStats describes the live connections
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveRooms      int            `json:"active_rooms"`
	RoomConnections  map[string]int `json:"room_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	counts := make(map[string]int, len(cm.rooms))
	for code, members := range cm.rooms {
		counts[code] = len(members)
	}
	return ConnectionStats{
		TotalConnections: len(cm.connections),
		ActiveRooms:      len(cm.rooms),
		RoomConnections:  counts,
	}
}

// writePump handles sending messages to the websocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to websocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump reads client frames until the connection drops, then runs the
// disconnect path.
func (c *Connection) readPump(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("connection_id", c.ID).Msg("recovered panic in read pump")
		}
		c.Manager.unregisterConnection(ctx, c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected websocket close error")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))

		if messageType != websocket.TextMessage {
			continue
		}
		if c.Manager.handler != nil {
			c.Manager.handler.HandleMessage(ctx, c, message)
		}
	}
}

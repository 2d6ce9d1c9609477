package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// EventType for WebSocket messages
type EventType string

const (
	EventNewMessage          EventType = "new_message"
	EventMessageDeleted      EventType = "message_deleted"
	EventConversationRenamed EventType = "conversation_renamed"
	EventMemberKicked        EventType = "member_kicked"
)

const conversationChannelPrefix = "chat:conversation:"

// Event represents a realtime conversation event
type Event struct {
	Type           EventType   `json:"type"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	SenderID       uuid.UUID   `json:"sender_id,omitempty"`
	MessageID      uuid.UUID   `json:"message_id,omitempty"`
	Message        *Message    `json:"message,omitempty"`
	Data           interface{} `json:"data,omitempty"`
}

// Connection represents one WebSocket client
type Connection struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte

	// Conversations this connection listens to
	conversations map[uuid.UUID]bool
}

// Hub fans conversation events out to local WebSocket connections, bridging
// instances through Redis Pub/Sub so an event published on any server reaches
// every subscriber.
type Hub struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	redis  *redis.Client
	pubsub *redis.PubSub

	register   chan *Connection
	unregister chan *Connection

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a hub; redisClient may be nil for single-instance setups
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		connections: make(map[*Connection]bool),
		redis:       redisClient,
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		ctx:         ctx,
		cancel:      cancel,
	}
	if redisClient != nil {
		h.pubsub = redisClient.PSubscribe(ctx, conversationChannelPrefix+"*")
	}
	return h
}

// Run starts the hub loop (call in a goroutine)
func (h *Hub) Run() {
	if h.pubsub != nil {
		go h.runRedisSubscriber()
	}

	for {
		select {
		case <-h.ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn] = true
			h.mu.Unlock()
			log.Debug().Str("user_id", conn.UserID.String()).Msg("WebSocket connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if h.connections[conn] {
				delete(h.connections, conn)
				close(conn.Send)
			}
			h.mu.Unlock()
			log.Debug().Str("user_id", conn.UserID.String()).Msg("WebSocket disconnected")
		}
	}
}

// Stop shuts the hub down
func (h *Hub) Stop() {
	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}
}

// Register attaches a connection subscribed to the given conversations
func (h *Hub) Register(conn *Connection, conversationIDs []uuid.UUID) {
	conn.conversations = make(map[uuid.UUID]bool, len(conversationIDs))
	for _, id := range conversationIDs {
		conn.conversations[id] = true
	}
	select {
	case h.register <- conn:
	case <-h.ctx.Done():
	}
}

// Unregister detaches a connection. Safe to call after Stop, when the hub
// loop no longer drains the channel.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.ctx.Done():
	}
}

// BroadcastEvent publishes an event to every instance via Redis, falling back
// to local delivery when Redis is not configured
func (h *Hub) BroadcastEvent(ctx context.Context, conversationID uuid.UUID, event *Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event")
		return
	}

	if h.redis != nil {
		channel := conversationChannelPrefix + conversationID.String()
		if err := h.redis.Publish(ctx, channel, payload).Err(); err != nil {
			log.Error().Err(err).Str("channel", channel).Msg("Failed to publish event")
		}
		return
	}

	h.deliverLocal(conversationID, payload)
}

func (h *Hub) runRedisSubscriber() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case msg, ok := <-h.pubsub.Channel():
			if !ok {
				return
			}
			idStr := msg.Channel[len(conversationChannelPrefix):]
			conversationID, err := uuid.Parse(idStr)
			if err != nil {
				continue
			}
			h.deliverLocal(conversationID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) deliverLocal(conversationID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.connections {
		if !conn.conversations[conversationID] {
			continue
		}
		select {
		case conn.Send <- payload:
		default:
			// Slow consumer; drop rather than block the hub.
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and pumps events to the client
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID uuid.UUID, conversationIDs []uuid.UUID) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	conn := &Connection{
		UserID: userID,
		Conn:   ws,
		Send:   make(chan []byte, 64),
	}
	h.Register(conn, conversationIDs)

	go func() {
		defer func() {
			h.Unregister(conn)
			ws.Close()
		}()
		for payload := range conn.Send {
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}()

	// Reader loop: we only care about the close.
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				h.Unregister(conn)
				return
			}
		}
	}()
}

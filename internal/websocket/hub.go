package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog"

	"github.com/hirewise/api/internal/logger"
	"github.com/hirewise/api/internal/model"
)

const sendBuffer = 64

// Client is one connected socket and who is behind it.
type Client struct {
	UserID    string
	CompanyID string
	Roles     []string
	// JobID is set for sockets watching a single job.
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

func NewClient(conn *websocket.Conn, userID, companyID string, roles []string, jobID string) *Client {
	return &Client{
		UserID:    userID,
		CompanyID: companyID,
		Roles:     roles,
		JobID:     jobID,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
	}
}

// matches reports whether an envelope is for this client. A job socket only
// ever carries updates for its own job.
func (c *Client) matches(kind model.TargetType, target string) bool {
	if c.JobID != "" {
		return kind == model.TargetJob && c.JobID == target
	}
	switch kind {
	case model.TargetBroadcast:
		return true
	case model.TargetUser:
		return c.UserID == target
	case model.TargetCompany:
		return c.CompanyID != "" && c.CompanyID == target
	case model.TargetRole:
		for _, r := range c.Roles {
			if strings.EqualFold(r, target) {
				return true
			}
		}
	}
	return false
}

// Envelope is an encoded frame and who should get it.
type Envelope struct {
	Kind    model.TargetType
	Target  string
	Payload []byte
	to      *Client
}

// Hub maintains active WebSocket connections
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	deliver    chan Envelope
	done       chan struct{}

	mu  sync.RWMutex
	log zerolog.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan Envelope, 256),
		done:       make(chan struct{}),
		log:        logger.With("websocket"),
	}
}

// Run starts the hub's main loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.log.Debug().Str("userId", client.UserID).Str("jobId", client.JobID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			h.log.Debug().Str("userId", client.UserID).Msg("client unregistered")

		case env := <-h.deliver:
			h.mu.Lock()
			for client := range h.clients {
				if env.to != nil && env.to != client {
					continue
				}
				if env.to == nil && !client.matches(env.Kind, env.Target) {
					continue
				}
				select {
				case client.Send <- env.Payload:
				default:
					// slow consumer
					close(client.Send)
					delete(h.clients, client)
					h.log.Warn().Str("userId", client.UserID).Msg("dropping slow client")
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Deliver queues a frame for matching clients. It never blocks; frames are
// dropped when the hub is saturated.
func (h *Hub) Deliver(env Envelope) bool {
	select {
	case h.deliver <- env:
		return true
	default:
		h.log.Warn().Str("kind", string(env.Kind)).Str("target", env.Target).Msg("hub saturated, frame dropped")
		return false
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleConnection pumps frames for one socket until it closes.
func (h *Hub) HandleConnection(client *Client) {
	c := client.Conn
	h.Register(client)
	defer h.Unregister(client)

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					_ = c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Str("userId", client.UserID).Msg("websocket error")
			}
			return
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.WSMessageTypePing {
			h.Deliver(Envelope{Payload: pong, to: client})
		}
	}
}

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/damoang/angple-messenger/internal/broadcast"
	"github.com/damoang/angple-messenger/internal/metrics"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrForbiddenChannel the client may not subscribe to the channel
var ErrForbiddenChannel = errors.New("channel subscription not allowed")

// ChannelAuthorizer decides whether userID may listen on ch
type ChannelAuthorizer func(ctx context.Context, userID string, ch broadcast.Channel) bool

// Hub manages WebSocket clients and their channel subscriptions.
// It implements broadcast.Driver as the self-hosted socket relay.
type Hub struct {
	// Subscribed clients grouped by channel key (class:name)
	channels map[string]map[*Client]bool
	clients  map[*Client]bool

	unregister chan *Client

	// Local delivery to one channel
	deliver chan *delivery

	mu           sync.RWMutex
	authorize    ChannelAuthorizer
	redisClient  *redis.Client
	redisChannel string
	instanceID   string
	logger       zerolog.Logger
	ctx          context.Context
	cancel       context.CancelFunc
}

type delivery struct {
	Key  string
	Data []byte
}

// redisMessage cross-instance envelope; Origin lets an instance skip its own publishes
type redisMessage struct {
	Origin string          `json:"origin"`
	Key    string          `json:"key"`
	Data   json.RawMessage `json:"data"`
}

// HubOptions optional collaborators
type HubOptions struct {
	// Redis enables multi-instance fan-out when non-nil
	Redis        *redis.Client
	RedisChannel string
	Authorize    ChannelAuthorizer
	Logger       zerolog.Logger
}

// NewHub creates a new Hub
func NewHub(opts HubOptions) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.RedisChannel == "" {
		opts.RedisChannel = "messenger:ws"
	}
	return &Hub{
		channels:     make(map[string]map[*Client]bool),
		clients:      make(map[*Client]bool),
		unregister:   make(chan *Client),
		deliver:      make(chan *delivery, 256),
		authorize:    opts.Authorize,
		redisClient:  opts.Redis,
		redisChannel: opts.RedisChannel,
		instanceID:   uuid.NewString(),
		logger:       opts.Logger.With().Str("component", "ws").Logger(),
		ctx:          ctx,
		cancel:       cancel,
	}
}

func channelKey(ch broadcast.Channel) string {
	return string(ch.Class) + ":" + ch.Name
}

// Name implements broadcast.Driver
func (h *Hub) Name() string { return "websocket" }

// Register adds a client to the hub and subscribes it to its own user channel
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.addLocked(client, broadcast.UserChannel(client.userID))
	h.mu.Unlock()
	metrics.SocketClients.Inc()
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	// Start Redis subscriber if Redis is available
	if h.redisClient != nil {
		go h.subscribeRedis()
	}

	for {
		select {
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.removeClientLocked(client)
				metrics.SocketClients.Dec()
			}
			h.mu.Unlock()

		case msg := <-h.deliver:
			h.mu.Lock()
			for client := range h.channels[msg.Key] {
				select {
				case client.send <- msg.Data:
				default:
					// slow consumer
					h.removeClientLocked(client)
					metrics.SocketClients.Dec()
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// removeClientLocked 호출자가 lock을 보유해야 함
func (h *Hub) removeClientLocked(client *Client) {
	for key := range client.subscriptions {
		if subs, ok := h.channels[key]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.channels, key)
			}
		}
	}
	delete(h.clients, client)
	close(client.send)
}

func (h *Hub) addLocked(client *Client, ch broadcast.Channel) {
	key := channelKey(ch)
	if h.channels[key] == nil {
		h.channels[key] = make(map[*Client]bool)
	}
	h.channels[key][client] = true
	client.subscriptions[key] = true
}

// Subscribe attaches client to ch after authorization
func (h *Hub) Subscribe(ctx context.Context, client *Client, ch broadcast.Channel) error {
	if ch != broadcast.UserChannel(client.userID) {
		if h.authorize == nil || !h.authorize(ctx, client.userID, ch) {
			return ErrForbiddenChannel
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return ErrForbiddenChannel
	}
	h.addLocked(client, ch)
	return nil
}

// Unsubscribe detaches client from ch
func (h *Hub) Unsubscribe(client *Client, ch broadcast.Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := channelKey(ch)
	if subs, ok := h.channels[key]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.channels, key)
		}
	}
	delete(client.subscriptions, key)
}

// Subscribers number of local clients on ch
func (h *Hub) Subscribers(ch broadcast.Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channelKey(ch)])
}

// Broadcast implements broadcast.Driver: local delivery plus Redis publish
func (h *Hub) Broadcast(ctx context.Context, ev broadcast.Event) error {
	for _, ch := range ev.Channels {
		data, err := json.Marshal(ev.Envelope(ch))
		if err != nil {
			return err
		}
		key := channelKey(ch)

		// Local broadcast
		select {
		case h.deliver <- &delivery{Key: key, Data: data}:
		case <-ctx.Done():
			return ctx.Err()
		case <-h.ctx.Done():
			return errors.New("websocket hub stopped")
		}

		// Publish to Redis for multi-instance support
		if h.redisClient != nil {
			msg, err := json.Marshal(&redisMessage{Origin: h.instanceID, Key: key, Data: data})
			if err != nil {
				return err
			}
			if err := h.redisClient.Publish(ctx, h.redisChannel, msg).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

// subscribeRedis listens for events from other instances
func (h *Hub) subscribeRedis() {
	pubsub := h.redisClient.Subscribe(h.ctx, h.redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var rm redisMessage
			if err := json.Unmarshal([]byte(msg.Payload), &rm); err != nil {
				h.logger.Warn().Err(err).Msg("invalid fan-out message")
				continue
			}
			if rm.Origin == h.instanceID {
				continue
			}
			// Only local broadcast (don't re-publish to Redis)
			select {
			case h.deliver <- &delivery{Key: rm.Key, Data: rm.Data}:
			case <-h.ctx.Done():
				return
			}
		case <-h.ctx.Done():
			return
		}
	}
}

// Close implements io.Closer so the broadcaster can shut the hub down
func (h *Hub) Close() error {
	h.Stop()
	return nil
}

// Stop gracefully shuts down the hub
func (h *Hub) Stop() {
	h.cancel()
}

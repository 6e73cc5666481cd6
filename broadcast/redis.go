// Package broadcast fans operation frames out across horizontally-scaled
// server processes over Redis Pub/Sub, so a client connected to process A
// sees operations applied on process B.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"cardsync/server/ot"
)

// Frame is the wire shape of one broadcast operation: the session id plus
// the ot.Operation in its own JSON form (kind, clientId, timestamp, version
// and one kind-specific payload field).
type Frame struct {
	SessionID string       `json:"session_id"`
	Operation ot.Operation `json:"operation"`
}

// Handler is invoked for every frame received on a subscribed session's
// channel, including frames this process itself published.
type Handler func(frame Frame)

// Hub fans operation frames out over Redis Pub/Sub. Grounded on the
// teacher's main.go subscribeToRoom/roomSubscriptions, generalized from one
// subscription goroutine per room to an explicit Subscribe/Unsubscribe API
// so the websocket layer owns the client-fan-out logic instead of this
// package reaching into it directly.
type Hub struct {
	client *redis.Client

	mu   sync.Mutex
	subs map[string]*subscription
}

type subscription struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
}

// NewHub wraps an existing Redis client.
func NewHub(client *redis.Client) *Hub {
	return &Hub{client: client, subs: make(map[string]*subscription)}
}

func channelName(sessionID string) string {
	return "session:" + sessionID
}

// Publish broadcasts op to every process subscribed to sessionID.
func (h *Hub) Publish(ctx context.Context, sessionID string, op ot.Operation) error {
	frame := Frame{SessionID: sessionID, Operation: op}
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("broadcast: marshal frame: %w", err)
	}
	if err := h.client.Publish(ctx, channelName(sessionID), payload).Err(); err != nil {
		return fmt.Errorf("broadcast: publish to %s: %w", sessionID, err)
	}
	return nil
}

// Subscribe starts receiving frames for sessionID, invoking onFrame for
// each. It is idempotent: calling it again for a session already subscribed
// is a no-op.
func (h *Hub) Subscribe(sessionID string, onFrame Handler) {
	h.mu.Lock()
	if _, exists := h.subs[sessionID]; exists {
		h.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := h.client.Subscribe(ctx, channelName(sessionID))
	h.subs[sessionID] = &subscription{pubsub: pubsub, cancel: cancel}
	h.mu.Unlock()

	go h.receiveLoop(ctx, sessionID, pubsub, onFrame)
}

func (h *Hub) receiveLoop(ctx context.Context, sessionID string, pubsub *redis.PubSub, onFrame Handler) {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var frame Frame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				continue
			}
			onFrame(frame)
		}
	}
}

// Unsubscribe stops receiving frames for sessionID and releases its
// subscription.
func (h *Hub) Unsubscribe(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, exists := h.subs[sessionID]
	if !exists {
		return
	}
	sub.cancel()
	sub.pubsub.Close()
	delete(h.subs, sessionID)
}

// ActiveSessions reports how many sessions currently have a live
// subscription on this process.
func (h *Hub) ActiveSessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

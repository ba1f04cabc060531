package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/ksuid"
)

// bridgeMessage wraps a relayed frame with the originating hub instance so
// an instance never re-injects its own publications.
type bridgeMessage struct {
	HubID string `json:"hub_id"`
	Data  []byte `json:"data"`
}

// RedisBridge fans room broadcasts across hub instances through Redis
// pub/sub, so peers of one session can land on different hubs. Presence
// stays instance-local; multi-instance deployments should pin a session's
// peers to one instance for a full roster.
type RedisBridge struct {
	rdb   *redis.Client
	hubID string
	hub   *Hub

	mu     sync.Mutex
	pubsub *redis.PubSub
	rooms  map[string]bool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRedisBridge connects to Redis and verifies the connection.
func NewRedisBridge(addr string) (*RedisBridge, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithCancel(context.Background())
	if err := rdb.Ping(ctx).Err(); err != nil {
		cancel()
		return nil, err
	}
	return &RedisBridge{
		rdb:    rdb,
		hubID:  ksuid.New().String(),
		rooms:  make(map[string]bool),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start subscribes to the room channel pattern and begins injecting remote
// publications into the local hub.
func (b *RedisBridge) Start() {
	b.mu.Lock()
	b.pubsub = b.rdb.PSubscribe(b.ctx, "room:*")
	ch := b.pubsub.Channel()
	b.mu.Unlock()

	go func() {
		for msg := range ch {
			var bm bridgeMessage
			if err := json.Unmarshal([]byte(msg.Payload), &bm); err != nil {
				log.Printf("bridge: dropping malformed message: %v", err)
				continue
			}
			if bm.HubID == b.hubID {
				continue
			}
			room := msg.Channel[len("room:"):]
			b.hub.injectRemote(room, bm.Data)
		}
	}()
	log.Printf("redis bridge started (instance %s)", b.hubID)
}

// EnsureRoom notes that a room is live locally. Kept for symmetry with
// brokers that need per-topic subscriptions; the pattern subscription
// already covers every room.
func (b *RedisBridge) EnsureRoom(room string) {
	b.mu.Lock()
	b.rooms[room] = true
	b.mu.Unlock()
}

// Publish pushes a relayed frame to the other hub instances.
func (b *RedisBridge) Publish(room string, data []byte) {
	payload, err := json.Marshal(bridgeMessage{HubID: b.hubID, Data: data})
	if err != nil {
		log.Printf("bridge: marshal failed: %v", err)
		return
	}
	if err := b.rdb.Publish(b.ctx, "room:"+room, payload).Err(); err != nil {
		log.Printf("bridge: publish to room %s failed: %v", room, err)
	}
}

// Close stops the subscription and releases the client.
func (b *RedisBridge) Close() {
	b.cancel()
	b.mu.Lock()
	if b.pubsub != nil {
		b.pubsub.Close()
	}
	b.mu.Unlock()
	b.rdb.Close()
}

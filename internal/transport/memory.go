package transport

import (
	"context"
	"sync"

	"pairpad/internal/models"
)

// MemoryBroker is an in-process pub/sub broker with the same contract as
// the relay hub: topic-scoped broadcast with sender exclusion, and a
// presence directory fanned out as a full snapshot on every change.
// It backs tests and single-process demos.
type MemoryBroker struct {
	mu       sync.Mutex
	topics   map[string]map[*MemoryChannel]struct{}
	presence map[string]map[string]models.PresenceRecord
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		topics:   make(map[string]map[*MemoryChannel]struct{}),
		presence: make(map[string]map[string]models.PresenceRecord),
	}
}

// Channel creates an unsubscribed channel onto topic for the given peer.
func (b *MemoryBroker) Channel(topic, peerID string, h Handlers) *MemoryChannel {
	return &MemoryChannel{
		broker:   b,
		topic:    topic,
		peerID:   peerID,
		handlers: h,
	}
}

type inboundEvent struct {
	envelope  *models.Envelope
	directory map[string]models.PresenceRecord
}

// MemoryChannel is one peer's handle into a MemoryBroker topic.
type MemoryChannel struct {
	broker   *MemoryBroker
	topic    string
	peerID   string
	handlers Handlers

	mu         sync.Mutex
	subscribed bool
	inbox      chan inboundEvent
	done       chan struct{}
}

var _ Channel = (*MemoryChannel)(nil)

// Subscribe registers the channel with the broker and starts its delivery
// pump. A second Subscribe tears down the prior registration first.
func (c *MemoryChannel) Subscribe(ctx context.Context) error {
	if err := c.Close(); err != nil {
		return err
	}

	c.mu.Lock()
	c.inbox = make(chan inboundEvent, 256)
	c.done = make(chan struct{})
	c.subscribed = true
	inbox, done := c.inbox, c.done
	c.mu.Unlock()

	go c.pump(inbox, done)

	c.broker.mu.Lock()
	if c.broker.topics[c.topic] == nil {
		c.broker.topics[c.topic] = make(map[*MemoryChannel]struct{})
	}
	c.broker.topics[c.topic][c] = struct{}{}
	dir := copyDirectory(c.broker.presence[c.topic])
	c.broker.mu.Unlock()

	// Late joiners get the current roster right away.
	c.enqueue(inboundEvent{directory: dir})
	return ctx.Err()
}

// Publish fans the envelope out to every other subscriber of the topic.
func (c *MemoryChannel) Publish(env models.Envelope) error {
	c.mu.Lock()
	subscribed := c.subscribed
	c.mu.Unlock()
	if !subscribed {
		return nil
	}

	c.broker.mu.Lock()
	subs := make([]*MemoryChannel, 0, len(c.broker.topics[c.topic]))
	for sub := range c.broker.topics[c.topic] {
		if sub != c {
			subs = append(subs, sub)
		}
	}
	c.broker.mu.Unlock()

	for _, sub := range subs {
		e := env
		sub.enqueue(inboundEvent{envelope: &e})
	}
	return nil
}

// Track records the peer's presence and fans the full directory to every
// subscriber, the tracking peer included.
func (c *MemoryChannel) Track(rec models.PresenceRecord) error {
	c.mu.Lock()
	subscribed := c.subscribed
	c.mu.Unlock()
	if !subscribed {
		return nil
	}

	c.broker.mu.Lock()
	if c.broker.presence[c.topic] == nil {
		c.broker.presence[c.topic] = make(map[string]models.PresenceRecord)
	}
	c.broker.presence[c.topic][c.peerID] = rec
	c.broker.fanDirectoryLocked(c.topic)
	c.broker.mu.Unlock()
	return nil
}

// Close unregisters the channel, removes its presence entry and notifies
// the remaining subscribers. Safe to call repeatedly.
func (c *MemoryChannel) Close() error {
	c.mu.Lock()
	if !c.subscribed {
		c.mu.Unlock()
		return nil
	}
	c.subscribed = false
	done := c.done
	c.mu.Unlock()

	c.broker.mu.Lock()
	delete(c.broker.topics[c.topic], c)
	if dir := c.broker.presence[c.topic]; dir != nil {
		delete(dir, c.peerID)
	}
	c.broker.fanDirectoryLocked(c.topic)
	c.broker.mu.Unlock()

	close(done)
	return nil
}

func (c *MemoryChannel) enqueue(ev inboundEvent) {
	c.mu.Lock()
	inbox := c.inbox
	subscribed := c.subscribed
	c.mu.Unlock()
	if !subscribed || inbox == nil {
		return
	}
	select {
	case inbox <- ev:
	default:
		// Best-effort delivery: a slow consumer loses messages rather
		// than blocking the broker.
	}
}

// pump delivers inbound events one at a time, preserving the single
// delivery goroutine guarantee of the Channel contract.
func (c *MemoryChannel) pump(inbox chan inboundEvent, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev := <-inbox:
			if ev.envelope != nil && c.handlers.OnEnvelope != nil {
				c.handlers.OnEnvelope(*ev.envelope)
			}
			if ev.directory != nil && c.handlers.OnPresence != nil {
				c.handlers.OnPresence(ev.directory)
			}
		}
	}
}

// fanDirectoryLocked snapshots the topic's directory and enqueues it for
// every subscriber. Caller holds b.mu.
func (b *MemoryBroker) fanDirectoryLocked(topic string) {
	dir := copyDirectory(b.presence[topic])
	for sub := range b.topics[topic] {
		sub.enqueue(inboundEvent{directory: dir})
	}
}

func copyDirectory(dir map[string]models.PresenceRecord) map[string]models.PresenceRecord {
	out := make(map[string]models.PresenceRecord, len(dir))
	for k, v := range dir {
		out[k] = v
	}
	return out
}

package transport

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"pairpad/internal/models"
)

// WebsocketChannel is a Channel backed by the relay hub's websocket
// endpoint. Outbound frames published while the connection is down are
// dropped silently; the layer above never buffers across reconnects.
type WebsocketChannel struct {
	hubURL string
	roomID string
	peerID string

	handlers Handlers

	mu        sync.Mutex
	conn      *websocket.Conn
	closed    bool
	lastTrack *models.PresenceRecord
}

var _ Channel = (*WebsocketChannel)(nil)

// NewWebsocketChannel builds a channel for room roomID against the hub at
// hubURL (e.g. "ws://localhost:8080").
func NewWebsocketChannel(hubURL, roomID, peerID string, h Handlers) *WebsocketChannel {
	return &WebsocketChannel{
		hubURL:   hubURL,
		roomID:   roomID,
		peerID:   peerID,
		handlers: h,
	}
}

func (c *WebsocketChannel) endpoint() string {
	return fmt.Sprintf("%s/ws/room/%s?peer_id=%s", c.hubURL, c.roomID, url.QueryEscape(c.peerID))
}

// Subscribe dials the hub and returns once the subscription is confirmed.
// A prior connection, if any, is torn down first.
func (c *WebsocketChannel) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.closed = false
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

// dial connects and consumes frames until the hub confirms the
// subscription.
func (c *WebsocketChannel) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.endpoint(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial hub: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		var frame models.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			conn.Close()
			return nil, fmt.Errorf("waiting for subscribe confirmation: %w", err)
		}
		if frame.Type == models.FrameSubscribed {
			conn.SetReadDeadline(time.Time{})
			return conn, nil
		}
	}
}

// Publish sends a broadcast frame. Drops silently when disconnected.
func (c *WebsocketChannel) Publish(env models.Envelope) error {
	return c.writeFrame(models.Frame{Type: models.FrameBroadcast, Envelope: &env})
}

// Track publishes the peer's presence record. The record is remembered so
// it can be re-tracked after a reconnect.
func (c *WebsocketChannel) Track(rec models.PresenceRecord) error {
	c.mu.Lock()
	c.lastTrack = &rec
	c.mu.Unlock()
	return c.writeFrame(models.Frame{Type: models.FrameTrack, Presence: &rec})
}

func (c *WebsocketChannel) writeFrame(frame models.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.conn.WriteJSON(frame); err != nil {
		log.Printf("transport: dropping %s frame: %v", frame.Type, err)
	}
	return nil
}

// Close tears the connection down and stops the reconnect loop.
func (c *WebsocketChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	return nil
}

// readLoop dispatches inbound frames and reconnects with exponential
// backoff when the connection drops out from under an open channel.
func (c *WebsocketChannel) readLoop(conn *websocket.Conn) {
	for {
		var frame models.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return
			}
			log.Printf("transport: connection lost: %v", err)
			if !c.reconnect() {
				return
			}
			c.mu.Lock()
			conn = c.conn
			c.mu.Unlock()
			continue
		}

		switch frame.Type {
		case models.FrameBroadcast:
			if frame.Envelope != nil && c.handlers.OnEnvelope != nil {
				c.handlers.OnEnvelope(*frame.Envelope)
			}
		case models.FramePresenceSync:
			if frame.Directory != nil && c.handlers.OnPresence != nil {
				c.handlers.OnPresence(frame.Directory)
			}
		case models.FrameSubscribed:
			// Redundant confirmation; nothing to do.
		}
	}
}

// reconnect re-dials until it succeeds or the channel is closed, then
// re-tracks the last presence record. Returns false if the channel was
// closed while retrying.
func (c *WebsocketChannel) reconnect() bool {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return backoff.Permanent(fmt.Errorf("channel closed"))
		}

		conn, err := c.dial(context.Background())
		if err != nil {
			log.Printf("transport: reconnect failed: %v", err)
			return err
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		return nil
	}, bo)
	if err != nil {
		return false
	}

	c.mu.Lock()
	rec := c.lastTrack
	c.mu.Unlock()
	if rec != nil {
		c.Track(*rec)
	}
	log.Printf("transport: reconnected to room %s", c.roomID)
	return true
}

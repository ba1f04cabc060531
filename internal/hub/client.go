package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"pairpad/internal/middleware"
	"pairpad/internal/models"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// client is one websocket connection inside a room.
type client struct {
	hub    *Hub
	room   string
	peerID string
	conn   *websocket.Conn
	send   chan []byte

	mu         sync.Mutex
	lastActive time.Time
}

func newClient(h *Hub, room, peerID string, conn *websocket.Conn) *client {
	return &client{
		hub:    h,
		room:   room,
		peerID: peerID,
		conn:   conn,
		send:   make(chan []byte, 256),
	}
}

func (c *client) touch() {
	c.mu.Lock()
	c.lastActive = time.Now()
	c.mu.Unlock()
}

func (c *client) sendFrame(frame models.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("peer %s: frame marshal failed: %v", c.peerID, err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("peer %s: send buffer full, dropping %s frame", c.peerID, frame.Type)
	}
}

// readPump consumes frames from the connection. Malformed frames and
// unknown envelope events are protocol faults: logged and dropped, never
// relayed.
func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("peer %s: websocket error: %v", c.peerID, err)
			}
			return
		}
		c.touch()

		msgCtx, span := middleware.StartSpan(ctx, "Hub.ProcessFrame",
			attribute.String("room.id", c.room),
			attribute.String("peer.id", c.peerID),
			attribute.Int("frame.size", len(raw)),
		)

		var frame models.Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Printf("peer %s: dropping malformed frame: %v", c.peerID, err)
			middleware.AddSpanError(msgCtx, err)
			span.End()
			continue
		}

		switch frame.Type {
		case models.FrameBroadcast:
			if frame.Envelope == nil {
				span.End()
				continue
			}
			c.hub.Relay(msgCtx, c, raw, frame.Envelope)
		case models.FrameTrack:
			if frame.Presence == nil {
				span.End()
				continue
			}
			rec := *frame.Presence
			if rec.PeerID == "" {
				rec.PeerID = c.peerID
			}
			c.hub.Track(c.room, rec)
		default:
			log.Printf("peer %s: dropping unexpected %s frame", c.peerID, frame.Type)
		}
		span.End()
	}
}

// writePump pushes queued frames to the connection and keeps it alive with
// pings. One writer goroutine per connection; gorilla allows only one
// concurrent writer.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) lastActiveAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

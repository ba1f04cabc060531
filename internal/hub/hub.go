// Package hub implements the relay side of the session protocol: rooms of
// websocket clients, broadcast fan-out with sender exclusion, a per-room
// presence directory delivered as full snapshots, an optional Redis bridge
// for multi-instance deployments and an optional room archive.
package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"pairpad/internal/middleware"
	"pairpad/internal/models"
	"pairpad/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// roomMessage is one broadcast to fan out to a room.
type roomMessage struct {
	room   string
	data   []byte
	sender *client // skipped during fan-out; nil sends to everyone
}

// Hub coordinates all rooms on this instance. Room membership and message
// fan-out run on a single event goroutine fed by the register, unregister
// and broadcast channels.
type Hub struct {
	rooms      map[string]map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan *roomMessage
	mu         sync.RWMutex

	// presence directory per room, keyed by peer id
	presence map[string]map[string]models.PresenceRecord
	presMu   sync.RWMutex

	archive *repository.RoomArchive // nil disables archiving
	bridge  *RedisBridge            // nil disables cross-instance relay

	done chan struct{}
}

// New creates an idle hub; Start launches its event loop.
func New() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan *roomMessage, 256),
		presence:   make(map[string]map[string]models.PresenceRecord),
		done:       make(chan struct{}),
	}
}

// SetArchive enables room-snapshot archiving.
func (h *Hub) SetArchive(a *repository.RoomArchive) {
	h.archive = a
}

// SetBridge enables cross-instance relay through Redis.
func (h *Hub) SetBridge(b *RedisBridge) {
	h.bridge = b
	b.hub = h
}

// Start begins the hub event loop and the stale-client sweeper.
func (h *Hub) Start() {
	log.Println("starting relay hub...")

	go func() {
		for {
			select {
			case <-h.done:
				log.Println("hub event loop shutting down")
				return
			case c := <-h.register:
				h.handleRegister(c)
			case c := <-h.unregister:
				h.handleUnregister(c)
			case msg := <-h.broadcast:
				h.handleBroadcast(msg)
			}
		}
	}()

	go h.sweepLoop()

	if h.bridge != nil {
		h.bridge.Start()
	}
}

// handleRegister adds a client to its room and confirms the subscription.
func (h *Hub) handleRegister(c *client) {
	h.mu.Lock()
	if h.rooms[c.room] == nil {
		h.rooms[c.room] = make(map[*client]bool)
	}
	h.rooms[c.room][c] = true
	total := len(h.rooms[c.room])
	h.mu.Unlock()

	log.Printf("peer %s joined room %s (total: %d)", c.peerID, c.room, total)

	// Confirm the subscription, then hand the newcomer the current roster
	// so it does not wait for the next track to learn who is here.
	c.sendFrame(models.Frame{Type: models.FrameSubscribed})
	c.sendFrame(models.Frame{Type: models.FramePresenceSync, Directory: h.directory(c.room)})

	if h.bridge != nil {
		h.bridge.EnsureRoom(c.room)
	}
}

// handleUnregister drops a client, removes its presence entry and tells
// the remaining peers.
func (h *Hub) handleUnregister(c *client) {
	h.mu.Lock()
	clients, ok := h.rooms[c.room]
	if !ok || !clients[c] {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.rooms, c.room)
	}
	remaining := len(clients)
	h.mu.Unlock()

	log.Printf("peer %s left room %s (remaining: %d)", c.peerID, c.room, remaining)

	h.presMu.Lock()
	if dir, ok := h.presence[c.room]; ok {
		delete(dir, c.peerID)
		if len(dir) == 0 {
			delete(h.presence, c.room)
		}
	}
	h.presMu.Unlock()

	h.fanPresence(c.room)
}

// handleBroadcast fans a message out to every client in the room except
// the sender. Runs on the event goroutine, so stale clients must be
// unregistered inline: sending to h.unregister from here would block on
// the loop currently executing this function.
func (h *Hub) handleBroadcast(msg *roomMessage) {
	h.mu.RLock()
	clients := h.rooms[msg.room]
	h.mu.RUnlock()

	var stale []*client
	for c := range clients {
		if msg.sender != nil && c == msg.sender {
			continue
		}
		select {
		case c.send <- msg.data:
		default:
			// Buffer full: the connection is slow or dead.
			log.Printf("peer %s send buffer full, dropping connection", c.peerID)
			stale = append(stale, c)
		}
	}
	for _, c := range stale {
		h.handleUnregister(c)
	}
}

// Relay handles one broadcast frame from a local client: local fan-out,
// bridge publication and archiving.
func (h *Hub) Relay(ctx context.Context, c *client, raw []byte, env *models.Envelope) {
	h.broadcast <- &roomMessage{room: c.room, data: raw, sender: c}

	if h.bridge != nil {
		h.bridge.Publish(c.room, raw)
	}
	if h.archive != nil && env != nil {
		h.archiveEnvelope(ctx, c.room, env)
	}
}

// injectRemote fans a bridged message from another hub instance into the
// local clients of the room.
func (h *Hub) injectRemote(room string, data []byte) {
	h.broadcast <- &roomMessage{room: room, data: data, sender: nil}
}

// archiveEnvelope records the latest document state carried by a
// state-bearing envelope. Best effort: archive failures never interrupt
// the relay path.
func (h *Hub) archiveEnvelope(ctx context.Context, room string, env *models.Envelope) {
	var code, lang, updatedBy string
	switch env.Event {
	case models.EventCodeUpdate:
		code, lang, updatedBy = env.CodeUpdate.Code, string(env.CodeUpdate.Language), env.CodeUpdate.UpdatedBy
	case models.EventSyncState:
		code, lang = env.SyncState.Code, string(env.SyncState.Language)
	default:
		return
	}

	ctx, span := middleware.StartSpan(ctx, "Hub.ArchiveSnapshot",
		attribute.String("room.id", room),
		attribute.String("event", string(env.Event)),
	)
	defer span.End()

	if err := h.archive.Upsert(ctx, room, code, lang, updatedBy); err != nil {
		log.Printf("room %s: archive write failed: %v", room, err)
		middleware.AddSpanError(ctx, err)
	}
}

// Track stores a peer's presence record and fans the full directory to the
// whole room, the tracking peer included.
func (h *Hub) Track(room string, rec models.PresenceRecord) {
	h.presMu.Lock()
	if h.presence[room] == nil {
		h.presence[room] = make(map[string]models.PresenceRecord)
	}
	h.presence[room][rec.PeerID] = rec
	h.presMu.Unlock()

	h.fanPresence(room)
}

// directory snapshots a room's presence map.
func (h *Hub) directory(room string) map[string]models.PresenceRecord {
	h.presMu.RLock()
	defer h.presMu.RUnlock()
	dir := make(map[string]models.PresenceRecord, len(h.presence[room]))
	for id, rec := range h.presence[room] {
		dir[id] = rec
	}
	return dir
}

// fanPresence broadcasts the room's full directory to every client in it.
func (h *Hub) fanPresence(room string) {
	frame := models.Frame{Type: models.FramePresenceSync, Directory: h.directory(room)}
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("room %s: presence marshal failed: %v", room, err)
		return
	}
	h.broadcast <- &roomMessage{room: room, data: data, sender: nil}
}

// RoomCount reports how many rooms are active on this instance.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// sweepLoop periodically drops clients that stopped answering pings.
func (h *Hub) sweepLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

func (h *Hub) sweep() {
	const timeout = 5 * time.Minute
	now := time.Now()

	h.mu.RLock()
	var stale []*client
	for _, clients := range h.rooms {
		for c := range clients {
			if now.Sub(c.lastActiveAt()) > timeout {
				stale = append(stale, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		log.Printf("sweeping inactive peer %s from room %s", c.peerID, c.room)
		h.unregister <- c
	}
}

// Shutdown closes every connection and stops the event loop.
func (h *Hub) Shutdown() {
	log.Println("shutting down relay hub...")
	close(h.done)

	if h.bridge != nil {
		h.bridge.Close()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.rooms {
		for c := range clients {
			close(c.send)
			c.conn.Close()
		}
	}
	h.rooms = make(map[string]map[*client]bool)
	log.Println("hub shutdown complete")
}

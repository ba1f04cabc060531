package hub

import (
	"log"
	"net/http"
	"time"

	"pairpad/internal/middleware"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: validate origin once deployments sit behind a fixed host.
		return true
	},
}

// Handler upgrades HTTP connections into room memberships.
type Handler struct {
	hub *Hub
}

func NewHandler(h *Hub) *Handler {
	return &Handler{hub: h}
}

// HandleRoomConnection serves /ws/room/{id}. The peer id rides in the
// query string; a missing one gets generated so presence still works.
func (h *Handler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	room := mux.Vars(r)["id"]
	peerID := r.URL.Query().Get("peer_id")
	if peerID == "" {
		peerID = uuid.NewString()
	}

	ctx, span := middleware.StartSpan(ctx, "Hub.Connect",
		attribute.String("room.id", room),
		attribute.String("peer.id", peerID),
	)
	defer span.End()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		middleware.AddSpanError(ctx, err)
		return
	}

	c := newClient(h.hub, room, peerID, conn)
	c.mu.Lock()
	c.lastActive = time.Now()
	c.mu.Unlock()

	h.hub.register <- c

	go c.writePump()
	go c.readPump(ctx)
}

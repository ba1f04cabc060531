package api

import (
	"encoding/json"
	"net/http"

	"pairpad/internal/hub"
	"pairpad/internal/middleware"
	"pairpad/internal/repository"

	"github.com/gorilla/mux"
)

// Handler serves the hub's operational API.
type Handler struct {
	ws      *hub.Handler
	hub     *hub.Hub
	archive *repository.RoomArchive // nil when archiving is disabled
}

func NewHandler(ws *hub.Handler, h *hub.Hub, archive *repository.RoomArchive) *Handler {
	return &Handler{ws: ws, hub: h, archive: archive}
}

// Health reports liveness and the number of active rooms.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"rooms":  h.hub.RoomCount(),
	})
}

// GetRoomSnapshot returns the archived latest document state for a room.
func (h *Handler) GetRoomSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "archive disabled"})
		return
	}

	roomID := mux.Vars(r)["id"]
	snapshot, err := h.archive.Get(r.Context(), roomID)
	if err != nil {
		middleware.AddSpanError(r.Context(), err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "archive lookup failed"})
		return
	}
	if snapshot == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "room not found"})
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

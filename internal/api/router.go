package api

import (
	"pairpad/internal/middleware"

	"github.com/gorilla/mux"
)

// SetupRoutes builds the hub's HTTP surface: the websocket room endpoint
// plus a small operational API.
func SetupRoutes(h *Handler) *mux.Router {
	r := mux.NewRouter()

	// Tracing first, then recovery, then CORS.
	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.ErrorRecoveryMiddleware)
	r.Use(middleware.CORSMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.Health).Methods("GET")
	api.HandleFunc("/rooms/{id}", h.GetRoomSnapshot).Methods("GET")

	r.HandleFunc("/ws/room/{id}", h.ws.HandleRoomConnection)

	return r
}

package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	pkglog "github.com/weiawesome/live-cursors/pkg/log"
)

// NewRouter wires the relay routes.
func NewRouter(ws *WSHandler, api *HTTPHandler, logger zerolog.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(pkglog.HTTPMiddleware(logger))

	router.HandleFunc("/cursors", ws.HandleWebSocket)
	router.HandleFunc("/api/v1/rooms/{room_id}/presence", api.GetPresence).Methods(http.MethodGet)
	router.HandleFunc("/health", api.HealthCheck).Methods(http.MethodGet)

	return router
}

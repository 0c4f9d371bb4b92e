package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/weiawesome/live-cursors/internal/domain"
	"github.com/weiawesome/live-cursors/internal/service"
	pkglog "github.com/weiawesome/live-cursors/pkg/log"
	"github.com/weiawesome/live-cursors/pkg/response"
)

// HTTPHandler handles HTTP API requests for room presence.
type HTTPHandler struct {
	service service.RoomService
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(svc service.RoomService) *HTTPHandler {
	return &HTTPHandler{
		service: svc,
	}
}

// PresenceResponse is the API response for presence queries.
type PresenceResponse struct {
	RoomID string        `json:"room_id"`
	Count  int           `json:"count"`
	Peers  []domain.Peer `json:"peers"`
}

// GetPresence handles GET /api/v1/rooms/{room_id}/presence
func (h *HTTPHandler) GetPresence(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]
	if roomID == "" {
		response.BadRequest(w, "room_id is required")
		return
	}

	peers, err := h.service.GetRoomPresence(r.Context(), roomID)
	if err != nil {
		l := pkglog.Ctx(r.Context())
		l.Error().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to get room presence")
		response.InternalError(w, "failed to get room presence")
		return
	}
	if peers == nil {
		peers = []domain.Peer{}
	}

	response.OK(w, PresenceResponse{RoomID: roomID, Count: len(peers), Peers: peers})
}

// HealthCheck handles GET /health
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{"status": "ok"})
}

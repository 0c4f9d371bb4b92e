package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/weiawesome/live-cursors/internal/domain"
	"github.com/weiawesome/live-cursors/internal/hub"
	"github.com/weiawesome/live-cursors/internal/service"
	pkglog "github.com/weiawesome/live-cursors/pkg/log"
)

// WSHandler handles WebSocket connections for the cursors relay.
type WSHandler struct {
	hub      *hub.Hub
	service  service.RoomService
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(h *hub.Hub, svc service.RoomService) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket handles WebSocket upgrade and connection.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	l := pkglog.Ctx(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(h.hub, conn)

	// The request context ends when this handler returns; keep its logger only.
	connLogger := l.With().Str(pkglog.FieldClientID, client.ID).Logger()
	ctx := pkglog.WithLogger(context.WithoutCancel(r.Context()), connLogger)

	client.SetDisconnectHandler(func(c *hub.Client) {
		h.onDisconnect(ctx, c)
	})
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(func(c *hub.Client, message []byte) {
		h.handleMessage(ctx, c, message)
	})
}

func (h *WSHandler) handleMessage(ctx context.Context, c *hub.Client, message []byte) {
	if c.InRoom() {
		ctx = pkglog.WithRoom(ctx, c.RoomID, c.ConnectionID)
	}
	l := pkglog.Ctx(ctx)

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		l.Debug().Err(err).Msg("failed to parse message")
		c.SendMessage(domain.NewErrorMessage("invalid message format"))
		return
	}

	var err error
	switch base.Type {
	case domain.MsgTypeJoin:
		var msg domain.JoinMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.SendMessage(domain.NewErrorMessage("invalid join message"))
			return
		}
		if msg.RoomID == "" {
			c.SendMessage(domain.NewErrorMessage("room_id is required"))
			return
		}
		err = h.service.HandleJoin(ctx, c, msg.RoomID)

	case domain.MsgTypeLeave:
		var msg domain.LeaveMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.SendMessage(domain.NewErrorMessage("invalid leave message"))
			return
		}
		if msg.RoomID == "" {
			c.SendMessage(domain.NewErrorMessage("room_id is required"))
			return
		}
		err = h.service.HandleLeave(ctx, c, msg.RoomID)

	case domain.MsgTypePresence:
		var msg domain.PresenceMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.SendMessage(domain.NewErrorMessage("invalid presence message"))
			return
		}
		if msg.Patch.Empty() {
			return
		}
		err = h.service.HandlePresence(ctx, c, msg.Patch)

	case domain.MsgTypeBroadcast:
		var msg domain.BroadcastMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.SendMessage(domain.NewErrorMessage("invalid broadcast message"))
			return
		}
		err = h.service.HandleBroadcast(ctx, c, msg.Event)

	case domain.MsgTypePing:
		err = h.service.HandleHeartbeat(ctx, c)

	default:
		c.SendMessage(domain.NewErrorMessage("unknown message type: " + base.Type))
		return
	}

	if err != nil {
		l.Warn().Err(err).Str(pkglog.FieldMsgType, base.Type).Msg("message handling failed")
	}
}

func (h *WSHandler) onDisconnect(ctx context.Context, c *hub.Client) {
	if err := h.service.HandleDisconnect(ctx, c); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Msg("disconnect handling failed")
	}
}

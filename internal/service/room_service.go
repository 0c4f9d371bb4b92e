package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/live-cursors/internal/cursor"
	"github.com/weiawesome/live-cursors/internal/domain"
	"github.com/weiawesome/live-cursors/internal/hub"
	"github.com/weiawesome/live-cursors/internal/store"
	pkglog "github.com/weiawesome/live-cursors/pkg/log"
	"github.com/weiawesome/live-cursors/pkg/pubsub"
)

// Config holds room service configuration.
type Config struct {
	// PresenceTTL bounds how long a member record outlives its last activity.
	PresenceTTL time.Duration
	// InstanceID tags events published to other instances.
	InstanceID string
}

type roomService struct {
	hub       *hub.Hub
	store     store.PresenceStore
	publisher pubsub.Publisher
	config    Config
	sf        singleflight.Group
}

// NewRoomService creates a new RoomService.
func NewRoomService(h *hub.Hub, s store.PresenceStore, p pubsub.Publisher, cfg Config) RoomService {
	return &roomService{
		hub:       h,
		store:     s,
		publisher: p,
		config:    cfg,
	}
}

func (s *roomService) HandleJoin(ctx context.Context, c *hub.Client, roomID string) error {
	if c.InRoom() {
		if c.RoomID == roomID {
			return c.SendMessage(domain.NewErrorMessage("already in room"))
		}
		if err := s.HandleLeave(ctx, c, c.RoomID); err != nil {
			logFor(ctx).Warn().Err(err).Msg("failed to leave previous room")
		}
	}

	connID, err := s.store.NextConnectionID(ctx, roomID)
	if err != nil {
		logFor(ctx).Error().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to allocate connection id")
		return c.SendMessage(domain.NewErrorMessage("failed to join room"))
	}

	peer := domain.Peer{ConnectionID: connID}
	if err := s.store.Put(ctx, roomID, peer, s.config.PresenceTTL); err != nil {
		logFor(ctx).Error().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to store presence")
		return c.SendMessage(domain.NewErrorMessage("failed to join room"))
	}

	s.hub.JoinRoom(c, roomID, connID)

	members, err := s.store.List(ctx, roomID)
	if err != nil {
		logFor(ctx).Warn().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to list room members")
	}
	others := lo.Filter(members, func(p domain.Peer, _ int) bool { return p.ConnectionID != connID })

	if err := c.SendMessage(&domain.JoinedMessage{
		Type:         domain.MsgTypeJoined,
		RoomID:       roomID,
		ConnectionID: connID,
		Others:       others,
	}); err != nil {
		return err
	}

	s.relayPresence(ctx, c, roomID)
	return nil
}

func (s *roomService) HandleLeave(ctx context.Context, c *hub.Client, roomID string) error {
	if !c.InRoom() || c.RoomID != roomID {
		return nil
	}

	connID := c.ConnectionID
	if err := s.store.Remove(ctx, roomID, connID); err != nil {
		logFor(ctx).Warn().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to remove presence")
	}

	s.hub.LeaveRoom(c)

	msg := &domain.PeerLeftMessage{Type: domain.MsgTypePeerLeft, ConnectionID: connID}
	if err := s.hub.BroadcastToRoom(roomID, msg, c.ID); err != nil {
		return err
	}
	s.publish(ctx, pubsub.EventPeerLeft, roomID, domain.RelayPeerLeft{ConnectionID: connID})
	return nil
}

func (s *roomService) HandlePresence(ctx context.Context, c *hub.Client, patch domain.PresencePatch) error {
	if !c.InRoom() {
		return c.SendMessage(domain.NewErrorMessage("join a room first"))
	}
	if patch.Message != nil {
		truncated := cursor.Truncate(*patch.Message)
		patch.Message = &truncated
	}

	c.Presence = c.Presence.Apply(patch)

	if err := s.store.Put(ctx, c.RoomID, domain.Peer{ConnectionID: c.ConnectionID, Presence: c.Presence}, s.config.PresenceTTL); err != nil {
		logFor(ctx).Warn().Err(err).Str(pkglog.FieldRoomID, c.RoomID).Msg("failed to store presence")
		_ = c.SendMessage(domain.NewErrorMessage("failed to store presence"))
	}

	s.relayPresence(ctx, c, c.RoomID)
	return nil
}

func (s *roomService) HandleBroadcast(ctx context.Context, c *hub.Client, evt domain.ReactionEvent) error {
	if !c.InRoom() {
		return c.SendMessage(domain.NewErrorMessage("join a room first"))
	}

	msg := &domain.EventMessage{Type: domain.MsgTypeEvent, Event: evt}
	if err := s.hub.BroadcastToRoom(c.RoomID, msg, c.ID); err != nil {
		return err
	}
	s.publish(ctx, pubsub.EventBroadcast, c.RoomID, domain.RelayBroadcast{ConnectionID: c.ConnectionID, Event: evt})
	return nil
}

func (s *roomService) HandleHeartbeat(ctx context.Context, c *hub.Client) error {
	if c.InRoom() {
		if err := s.store.Refresh(ctx, c.RoomID, s.config.PresenceTTL); err != nil {
			logFor(ctx).Warn().Err(err).Msg("failed to refresh presence ttl")
		}
	}
	c.LastPing = time.Now()
	return c.SendMessage(&domain.BaseMessage{Type: domain.MsgTypePong})
}

func (s *roomService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	if c.InRoom() {
		return s.HandleLeave(ctx, c, c.RoomID)
	}
	return nil
}

func (s *roomService) HandleRemoteEvent(ctx context.Context, event *pubsub.Event) error {
	if event.Origin == s.config.InstanceID {
		return nil
	}

	var msg any
	switch event.Type {
	case pubsub.EventPresence:
		var p domain.RelayPresence
		if err := event.UnmarshalPayload(&p); err != nil {
			return fmt.Errorf("decode presence event: %w", err)
		}
		msg = &domain.PresenceUpdateMessage{Type: domain.MsgTypePresenceUpdate, ConnectionID: p.ConnectionID, Presence: p.Presence}
	case pubsub.EventBroadcast:
		var b domain.RelayBroadcast
		if err := event.UnmarshalPayload(&b); err != nil {
			return fmt.Errorf("decode broadcast event: %w", err)
		}
		msg = &domain.EventMessage{Type: domain.MsgTypeEvent, Event: b.Event}
	case pubsub.EventPeerLeft:
		var l domain.RelayPeerLeft
		if err := event.UnmarshalPayload(&l); err != nil {
			return fmt.Errorf("decode peer_left event: %w", err)
		}
		msg = &domain.PeerLeftMessage{Type: domain.MsgTypePeerLeft, ConnectionID: l.ConnectionID}
	default:
		logFor(ctx).Debug().Str(pkglog.FieldMsgType, event.Type).Msg("ignoring unknown relay event")
		return nil
	}

	return s.hub.BroadcastToRoom(event.RoomID, msg, "")
}

func (s *roomService) GetRoomPresence(ctx context.Context, roomID string) ([]domain.Peer, error) {
	// Concurrent queries for one room share a single store read.
	result, err, _ := s.sf.Do(roomID, func() (any, error) {
		return s.store.List(ctx, roomID)
	})
	if err != nil {
		return nil, err
	}

	peers, ok := result.([]domain.Peer)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	return slices.Clone(peers), nil
}

// relayPresence sends the client's full presence to the other local members
// and to other instances.
func (s *roomService) relayPresence(ctx context.Context, c *hub.Client, roomID string) {
	presence := c.Presence.Clone()
	msg := &domain.PresenceUpdateMessage{
		Type:         domain.MsgTypePresenceUpdate,
		ConnectionID: c.ConnectionID,
		Presence:     presence,
	}
	if err := s.hub.BroadcastToRoom(roomID, msg, c.ID); err != nil {
		logFor(ctx).Warn().Err(err).Msg("failed to broadcast presence")
	}
	s.publish(ctx, pubsub.EventPresence, roomID, domain.RelayPresence{ConnectionID: c.ConnectionID, Presence: presence})
}

func (s *roomService) publish(ctx context.Context, eventType, roomID string, payload any) {
	if s.publisher == nil {
		return
	}
	event, err := pubsub.NewEvent(eventType, roomID, s.config.InstanceID, payload)
	if err != nil {
		logFor(ctx).Error().Err(err).Msg("failed to encode relay event")
		return
	}
	if err := s.publisher.Publish(ctx, pubsub.RoomEventsChannel(roomID), event); err != nil {
		logFor(ctx).Warn().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to publish relay event")
	}
}

func logFor(ctx context.Context) *zerolog.Logger {
	l := pkglog.Ctx(ctx).With().Str(pkglog.FieldComponent, "room_service").Logger()
	return &l
}

// Package client connects a participant to a cursors relay over WebSocket.
// A Client is both the presence store and the broadcast channel of a session.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/weiawesome/live-cursors/internal/domain"
	pkglog "github.com/weiawesome/live-cursors/pkg/log"
)

var (
	// ErrNotConnected is returned once the connection is closed.
	ErrNotConnected = errors.New("client: not connected")
	// ErrSendBufferFull is returned when the write pump has fallen behind.
	// The message is dropped.
	ErrSendBufferFull = errors.New("client: send buffer full")
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 256
)

// Options configures Dial.
type Options struct {
	URL         string
	Room        string
	DialTimeout time.Duration
	// Heartbeat is the interval of application pings that keep the relay's
	// presence record alive. Zero disables them.
	Heartbeat time.Duration
	Dialer    *websocket.Dialer
	Logger    *zerolog.Logger
}

// Client is a joined relay connection.
type Client struct {
	conn   *websocket.Conn
	room   string
	connID int
	send   chan []byte
	logger zerolog.Logger

	mu        sync.Mutex
	peers     map[int]domain.Presence
	subSeq    int
	peerSubs  map[int]func([]domain.Peer)
	eventSubs map[int]func(domain.ReactionEvent)

	heartbeat time.Duration
	closed    chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to the relay and joins opts.Room. It returns once the relay
// has confirmed the join.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	ctx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()

	conn, _, err := dialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.URL, err)
	}

	joined, err := join(ctx, conn, opts.Room)
	if err != nil {
		conn.Close()
		return nil, err
	}

	logger := pkglog.Component(opts.Logger, "client").With().
		Str(pkglog.FieldRoomID, opts.Room).
		Int(pkglog.FieldConnectionID, joined.ConnectionID).
		Logger()

	c := &Client{
		conn:      conn,
		room:      opts.Room,
		connID:    joined.ConnectionID,
		send:      make(chan []byte, sendBuffer),
		logger:    logger,
		peers:     make(map[int]domain.Presence, len(joined.Others)),
		peerSubs:  make(map[int]func([]domain.Peer)),
		eventSubs: make(map[int]func(domain.ReactionEvent)),
		heartbeat: opts.Heartbeat,
		closed:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, p := range joined.Others {
		c.peers[p.ConnectionID] = p.Presence
	}

	go c.writePump()
	go c.readPump()

	logger.Debug().Int("others", len(joined.Others)).Msg("joined room")
	return c, nil
}

func join(ctx context.Context, conn *websocket.Conn, room string) (*domain.JoinedMessage, error) {
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
		conn.SetReadDeadline(deadline)
		defer conn.SetWriteDeadline(time.Time{})
		defer conn.SetReadDeadline(time.Time{})
	}

	if err := conn.WriteJSON(domain.JoinMessage{Type: domain.MsgTypeJoin, RoomID: room}); err != nil {
		return nil, fmt.Errorf("send join: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("await join: %w", err)
		}
		var base domain.BaseMessage
		if err := json.Unmarshal(data, &base); err != nil {
			continue
		}
		switch base.Type {
		case domain.MsgTypeJoined:
			var joined domain.JoinedMessage
			if err := json.Unmarshal(data, &joined); err != nil {
				return nil, fmt.Errorf("decode joined: %w", err)
			}
			return &joined, nil
		case domain.MsgTypeError:
			var e domain.ErrorMessage
			_ = json.Unmarshal(data, &e)
			return nil, fmt.Errorf("join rejected: %s", e.Message)
		}
	}
}

// ConnectionID returns the id the relay assigned to this participant.
func (c *Client) ConnectionID() int {
	return c.connID
}

// Done is closed when the connection has ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Publish sends a presence patch to the relay.
func (c *Client) Publish(ctx context.Context, patch domain.PresencePatch) error {
	return c.enqueue(ctx, domain.PresenceMessage{Type: domain.MsgTypePresence, Patch: patch})
}

// Broadcast sends an event to every other room member.
func (c *Client) Broadcast(ctx context.Context, evt domain.ReactionEvent) error {
	return c.enqueue(ctx, domain.BroadcastMessage{Type: domain.MsgTypeBroadcast, Event: evt})
}

// enqueue never blocks: callers run on the session loop.
func (c *Client) enqueue(ctx context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case <-c.closed:
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.closed:
		return ErrNotConnected
	default:
		return ErrSendBufferFull
	}
}

// Others returns the known room members other than self.
func (c *Client) Others() []domain.Peer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.othersLocked()
}

func (c *Client) othersLocked() []domain.Peer {
	peers := make([]domain.Peer, 0, len(c.peers))
	for id, presence := range c.peers {
		peers = append(peers, domain.Peer{ConnectionID: id, Presence: presence.Clone()})
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].ConnectionID < peers[j].ConnectionID })
	return peers
}

// SubscribeOthers registers fn for peer list changes.
func (c *Client) SubscribeOthers(fn func([]domain.Peer)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subSeq++
	key := c.subSeq
	c.peerSubs[key] = fn
	return func() {
		c.mu.Lock()
		delete(c.peerSubs, key)
		c.mu.Unlock()
	}
}

// OnEvent registers fn for events broadcast by other members.
func (c *Client) OnEvent(fn func(domain.ReactionEvent)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subSeq++
	key := c.subSeq
	c.eventSubs[key] = fn
	return func() {
		c.mu.Lock()
		delete(c.eventSubs, key)
		c.mu.Unlock()
	}
}

// Close leaves the room and closes the connection.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		leave, _ := json.Marshal(domain.LeaveMessage{Type: domain.MsgTypeLeave, RoomID: c.room})
		select {
		case c.send <- leave:
		default:
		}
		close(c.closed)
	})
	<-c.done
	return nil
}

func (c *Client) readPump() {
	defer func() {
		c.closeOnce.Do(func() { close(c.closed) })
		c.conn.Close()
		close(c.done)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.logger.Warn().Err(err).Msg("connection lost")
			}
			return
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		c.logger.Debug().Err(err).Msg("dropping undecodable frame")
		return
	}

	switch base.Type {
	case domain.MsgTypePresenceUpdate:
		var msg domain.PresenceUpdateMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.ConnectionID == c.connID {
			return
		}
		c.updatePeers(func() { c.peers[msg.ConnectionID] = msg.Presence })

	case domain.MsgTypePeerLeft:
		var msg domain.PeerLeftMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		c.updatePeers(func() { delete(c.peers, msg.ConnectionID) })

	case domain.MsgTypeEvent:
		var msg domain.EventMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		c.mu.Lock()
		fns := make([]func(domain.ReactionEvent), 0, len(c.eventSubs))
		for _, fn := range c.eventSubs {
			fns = append(fns, fn)
		}
		c.mu.Unlock()
		for _, fn := range fns {
			fn(msg.Event)
		}

	case domain.MsgTypeError:
		var msg domain.ErrorMessage
		_ = json.Unmarshal(data, &msg)
		c.logger.Debug().Str("error", msg.Message).Msg("relay reported error")

	case domain.MsgTypePong:
	default:
		c.logger.Debug().Str(pkglog.FieldMsgType, base.Type).Msg("ignoring frame")
	}
}

func (c *Client) updatePeers(mutate func()) {
	c.mu.Lock()
	mutate()
	peers := c.othersLocked()
	fns := make([]func([]domain.Peer), 0, len(c.peerSubs))
	for _, fn := range c.peerSubs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(peers)
	}
}

func (c *Client) writePump() {
	var tick <-chan time.Time
	if c.heartbeat > 0 {
		ticker := time.NewTicker(c.heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}
	ping, _ := json.Marshal(domain.BaseMessage{Type: domain.MsgTypePing})

	write := func(data []byte) bool {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(websocket.TextMessage, data) == nil
	}

	for {
		select {
		case data := <-c.send:
			if !write(data) {
				c.conn.Close()
				return
			}
		case <-tick:
			if !write(ping) {
				c.conn.Close()
				return
			}
		case <-c.closed:
			// Flush what is queued (including the leave), then close politely.
			for {
				select {
				case data := <-c.send:
					if !write(data) {
						c.conn.Close()
						return
					}
					continue
				default:
				}
				break
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			c.conn.Close()
			return
		case <-c.done:
			return
		}
	}
}

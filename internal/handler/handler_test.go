package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/live-cursors/internal/config"
	"github.com/weiawesome/live-cursors/internal/domain"
	"github.com/weiawesome/live-cursors/internal/hub"
	"github.com/weiawesome/live-cursors/internal/service"
	"github.com/weiawesome/live-cursors/internal/store"
	"github.com/weiawesome/live-cursors/pkg/pubsub"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	h := hub.NewHub(config.WebSocketConfig{
		PingInterval:   time.Second,
		PongWait:       5 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     64,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	bus := pubsub.NewMemoryPubSub()
	svc := service.NewRoomService(h, store.NewMemoryStore(), bus, service.Config{PresenceTTL: time.Minute, InstanceID: "test"})
	router := NewRouter(NewWSHandler(h, svc), NewHTTPHandler(svc), zerolog.Nop())

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		bus.Close()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/cursors"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

// readType reads frames until one of the given type arrives.
func readType(t *testing.T, conn *websocket.Conn, msgType string, out any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var base domain.BaseMessage
		require.NoError(t, json.Unmarshal(data, &base))
		if base.Type == msgType {
			require.NoError(t, json.Unmarshal(data, out))
			return
		}
	}
}

func join(t *testing.T, conn *websocket.Conn, room string) domain.JoinedMessage {
	t.Helper()
	send(t, conn, domain.JoinMessage{Type: domain.MsgTypeJoin, RoomID: room})
	var joined domain.JoinedMessage
	readType(t, conn, domain.MsgTypeJoined, &joined)
	return joined
}

func TestJoinPresenceAndBroadcast(t *testing.T) {
	srv := newTestServer(t)
	a, b := dial(t, srv), dial(t, srv)

	joinedA := join(t, a, "lobby")
	require.Equal(t, 0, joinedA.ConnectionID)
	require.Empty(t, joinedA.Others)

	joinedB := join(t, b, "lobby")
	require.Equal(t, 1, joinedB.ConnectionID)
	require.Len(t, joinedB.Others, 1)

	var arrival domain.PresenceUpdateMessage
	readType(t, a, domain.MsgTypePresenceUpdate, &arrival)
	require.Equal(t, 1, arrival.ConnectionID)

	send(t, a, domain.PresenceMessage{Type: domain.MsgTypePresence, Patch: domain.CursorAt(domain.Point{X: 10, Y: 20})})
	var update domain.PresenceUpdateMessage
	readType(t, b, domain.MsgTypePresenceUpdate, &update)
	require.Equal(t, 0, update.ConnectionID)
	require.Equal(t, &domain.Point{X: 10, Y: 20}, update.Presence.Cursor)

	evt := domain.ReactionEvent{X: 10, Y: 20, Value: "🔥"}
	send(t, a, domain.BroadcastMessage{Type: domain.MsgTypeBroadcast, Event: evt})
	var got domain.EventMessage
	readType(t, b, domain.MsgTypeEvent, &got)
	require.Equal(t, evt, got.Event)

	// The sender only gets the pong, not its own event.
	send(t, a, domain.BaseMessage{Type: domain.MsgTypePing})
	require.NoError(t, a.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := a.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"pong"}`, string(data))
}

func TestPeerLeftOnDisconnect(t *testing.T) {
	srv := newTestServer(t)
	a, b := dial(t, srv), dial(t, srv)
	join(t, a, "lobby")
	join(t, b, "lobby")

	require.NoError(t, b.Close())

	var left domain.PeerLeftMessage
	readType(t, a, domain.MsgTypePeerLeft, &left)
	require.Equal(t, 1, left.ConnectionID)
}

func TestMalformedFramesGetErrors(t *testing.T) {
	srv := newTestServer(t)
	a := dial(t, srv)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("not json")))
	var e domain.ErrorMessage
	readType(t, a, domain.MsgTypeError, &e)
	require.Equal(t, "invalid message format", e.Message)

	send(t, a, domain.BaseMessage{Type: "teleport"})
	readType(t, a, domain.MsgTypeError, &e)
	require.Equal(t, "unknown message type: teleport", e.Message)

	send(t, a, domain.BroadcastMessage{Type: domain.MsgTypeBroadcast})
	readType(t, a, domain.MsgTypeError, &e)
	require.Equal(t, "join a room first", e.Message)
}

func TestPresenceEndpoint(t *testing.T) {
	srv := newTestServer(t)
	a := dial(t, srv)
	join(t, a, "lobby")
	send(t, a, domain.PresenceMessage{Type: domain.MsgTypePresence, Patch: domain.MessageIs("hello")})

	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/api/v1/rooms/lobby/presence")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var body PresenceResponse
		if json.NewDecoder(resp.Body).Decode(&body) != nil {
			return false
		}
		return body.Count == 1 && body.Peers[0].Presence.Message == "hello"
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

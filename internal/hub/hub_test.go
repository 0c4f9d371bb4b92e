package hub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weiawesome/live-cursors/internal/config"
	"github.com/weiawesome/live-cursors/internal/domain"
)

func runHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(config.WebSocketConfig{SendBuffer: 8})
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h
}

func recv(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	h := runHub(t)
	a, b, c := NewClient(h, nil), NewClient(h, nil), NewClient(h, nil)
	for _, cl := range []*Client{a, b, c} {
		h.Register(cl)
	}
	h.JoinRoom(a, "lobby", 0)
	h.JoinRoom(b, "lobby", 1)
	h.JoinRoom(c, "other", 0)
	require.Equal(t, 2, h.RoomSize("lobby"))

	msg := domain.EventMessage{Type: domain.MsgTypeEvent, Event: domain.ReactionEvent{X: 1, Y: 2, Value: "🔥"}}
	require.NoError(t, h.BroadcastToRoom("lobby", msg, a.ID))

	var got domain.EventMessage
	require.NoError(t, json.Unmarshal(recv(t, b), &got))
	require.Equal(t, msg, got)

	// A marker sent after the broadcast proves nothing else was queued.
	require.NoError(t, a.SendMessage(domain.BaseMessage{Type: "marker"}))
	require.JSONEq(t, `{"type":"marker"}`, string(recv(t, a)))
	require.Empty(t, c.Send)
}

func TestLeaveAndUnregister(t *testing.T) {
	h := runHub(t)
	a := NewClient(h, nil)
	h.Register(a)
	h.JoinRoom(a, "lobby", 4)
	require.True(t, a.InRoom())
	require.Equal(t, 4, a.ConnectionID)

	h.LeaveRoom(a)
	require.False(t, a.InRoom())
	require.Zero(t, h.RoomSize("lobby"))

	h.Unregister(a)
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-a.Send:
			return !ok
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	require.NoError(t, a.SendMessage(domain.BaseMessage{Type: "late"}), "send after close is dropped")
}

func TestRunClosesClientsOnCancel(t *testing.T) {
	h := NewHub(config.WebSocketConfig{SendBuffer: 8})
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	a := NewClient(h, nil)
	h.Register(a)
	h.JoinRoom(a, "lobby", 0)

	cancel()
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	_, ok := <-a.Send
	require.False(t, ok)
	require.Zero(t, h.RoomSize("lobby"))
}

func TestSendRacingUnregister(t *testing.T) {
	h := runHub(t)

	for i := 0; i < 50; i++ {
		c := NewClient(h, nil)
		h.Register(c)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = c.SendMessage(domain.BaseMessage{Type: "pong"})
			}
		}()
		go func() {
			defer wg.Done()
			h.Unregister(c)
		}()
		wg.Wait()

		require.Eventually(t, func() bool {
			c.sendMu.Lock()
			defer c.sendMu.Unlock()
			return c.sendClosed
		}, time.Second, time.Millisecond)
		require.NoError(t, c.SendMessage(domain.BaseMessage{Type: "late"}))
	}
}

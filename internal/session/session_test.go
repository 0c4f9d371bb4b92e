package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weiawesome/live-cursors/internal/cursor"
	"github.com/weiawesome/live-cursors/internal/domain"
	"github.com/weiawesome/live-cursors/internal/loopback"
	"github.com/weiawesome/live-cursors/internal/timer"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func mount(t *testing.T, store PresenceStore, channel BroadcastChannel, clock *timer.Manual) *Session {
	t.Helper()
	s := New(store, channel, Options{Timers: clock, Now: clock.Now})
	require.NoError(t, s.Mount(context.Background()))
	t.Cleanup(s.Unmount)
	return s
}

func TestScenarioHoldReactionEmitsOnCadence(t *testing.T) {
	clock := timer.NewManual(epoch)
	store, channel := newFakeStore(), newFakeChannel()
	s := mount(t, store, channel, clock)

	require.NoError(t, s.KeyUp("e"))
	require.NoError(t, s.PickReaction("🔥"))
	require.NoError(t, s.PointerDown(100, 100))

	clock.Advance(250 * time.Millisecond)

	particles, err := s.Particles()
	require.NoError(t, err)
	require.Len(t, particles, 2)
	for _, p := range particles {
		require.Equal(t, domain.Point{X: 100, Y: 100}, p.Point)
		require.Equal(t, "🔥", p.Value)
	}
	require.Equal(t, []domain.ReactionEvent{
		{X: 100, Y: 100, Value: "🔥"},
		{X: 100, Y: 100, Value: "🔥"},
	}, channel.broadcasts())

	require.NoError(t, s.PointerUp())
	clock.Advance(300 * time.Millisecond)
	_, err = s.State()
	require.NoError(t, err)
	require.Len(t, channel.broadcasts(), 2, "release stops emission")
}

func TestScenarioChatKeepsPreviousLine(t *testing.T) {
	clock := timer.NewManual(epoch)
	store := newFakeStore()
	s := mount(t, store, newFakeChannel(), clock)

	prevent, err := s.KeyDown("/")
	require.NoError(t, err)
	require.True(t, prevent)

	require.NoError(t, s.KeyUp("/"))
	require.NoError(t, s.ChatInput("hi"))
	require.NoError(t, s.ChatKeyDown("Enter"))
	require.NoError(t, s.ChatInput("there"))

	state, err := s.State()
	require.NoError(t, err)
	prev := "hi"
	require.Equal(t, cursor.Chat{Message: "there", PreviousMessage: &prev}, state)

	presence, err := s.Presence()
	require.NoError(t, err)
	require.Equal(t, "there", presence.Message)
	require.Equal(t, []domain.PresencePatch{domain.MessageIs("hi"), domain.MessageIs("there")}, store.published())
}

func TestScenarioLeaveDuringReaction(t *testing.T) {
	clock := timer.NewManual(epoch)
	store, channel := newFakeStore(), newFakeChannel()
	s := mount(t, store, channel, clock)

	require.NoError(t, s.KeyUp("e"))
	require.NoError(t, s.PickReaction("🔥"))
	require.NoError(t, s.PointerDown(100, 100))
	require.NoError(t, s.PointerLeave())

	clock.Advance(500 * time.Millisecond)

	state, err := s.State()
	require.NoError(t, err)
	require.Equal(t, cursor.Hidden{}, state)

	presence, err := s.Presence()
	require.NoError(t, err)
	require.Nil(t, presence.Cursor)
	require.Equal(t, domain.CursorGone(), store.published()[len(store.published())-1])

	require.Empty(t, channel.broadcasts())
	particles, err := s.Particles()
	require.NoError(t, err)
	require.Empty(t, particles)
}

func TestScenarioBroadcastReachesPeer(t *testing.T) {
	clock := timer.NewManual(epoch)
	room := loopback.NewRoom()
	memberA, memberB := room.Join(), room.Join()
	a := mount(t, memberA, memberA, clock)
	b := mount(t, memberB, memberB, clock)

	require.NoError(t, a.KeyUp("e"))
	require.NoError(t, a.PickReaction("🎉"))
	require.NoError(t, a.PointerDown(40, 60))

	clock.Advance(100 * time.Millisecond)

	fromA, err := a.Particles()
	require.NoError(t, err)
	require.Len(t, fromA, 1)

	atB, err := b.Particles()
	require.NoError(t, err)
	require.Len(t, atB, 1)
	require.Equal(t, fromA[0].Point, atB[0].Point)
	require.Equal(t, fromA[0].Value, atB[0].Value)

	peers, err := b.Peers()
	require.NoError(t, err)
	require.Len(t, peers, 1)
	require.Equal(t, &domain.Point{X: 40, Y: 60}, peers[0].Presence.Cursor)

	frame, err := b.Frame()
	require.NoError(t, err)
	require.Equal(t, "There are 1 other users online.", frame.WhoIsHere)
	require.Equal(t, "#DC2626", frame.Peers[0].Color)
}

func TestEvictionBoundary(t *testing.T) {
	clock := timer.NewManual(epoch)
	channel := newFakeChannel()
	s := mount(t, newFakeStore(), channel, clock)

	channel.deliver(domain.ReactionEvent{X: 1, Y: 2, Value: "👀"})
	particles, err := s.Particles()
	require.NoError(t, err)
	require.Len(t, particles, 1)
	require.Equal(t, epoch, particles[0].Timestamp)

	clock.Advance(3999 * time.Millisecond)
	particles, err = s.Particles()
	require.NoError(t, err)
	require.Len(t, particles, 1)

	clock.Advance(1001 * time.Millisecond)
	particles, err = s.Particles()
	require.NoError(t, err)
	require.Empty(t, particles)
}

func TestBroadcastFailureIsSwallowed(t *testing.T) {
	clock := timer.NewManual(epoch)
	channel := newFakeChannel()
	channel.err = errors.New("offline")
	s := mount(t, newFakeStore(), channel, clock)

	require.NoError(t, s.KeyUp("e"))
	require.NoError(t, s.PickReaction("🔥"))
	require.NoError(t, s.PointerDown(5, 5))
	clock.Advance(100 * time.Millisecond)

	particles, err := s.Particles()
	require.NoError(t, err)
	require.Len(t, particles, 1)
}

func TestInitialAndUpdatedPeers(t *testing.T) {
	clock := timer.NewManual(epoch)
	store := newFakeStore()
	store.others = []domain.Peer{{ConnectionID: 3}}
	s := mount(t, store, newFakeChannel(), clock)

	peers, err := s.Peers()
	require.NoError(t, err)
	require.Equal(t, []domain.Peer{{ConnectionID: 3}}, peers)

	store.setOthers(nil)
	peers, err = s.Peers()
	require.NoError(t, err)
	require.Empty(t, peers)
}

func TestPeerChangeDuringMountIsKept(t *testing.T) {
	clock := timer.NewManual(epoch)
	store := newFakeStore()
	store.others = []domain.Peer{{ConnectionID: 1}}
	joined := []domain.Peer{{ConnectionID: 1}, {ConnectionID: 2}}
	// A member joins right after the initial list is read.
	store.afterOthers = func() { store.setOthers(joined) }

	s := mount(t, store, newFakeChannel(), clock)

	peers, err := s.Peers()
	require.NoError(t, err)
	require.Equal(t, joined, peers)
}

func TestUnmountReleasesTimersAndSubscriptions(t *testing.T) {
	clock := timer.NewManual(epoch)
	store, channel := newFakeStore(), newFakeChannel()
	s := New(store, channel, Options{Timers: clock, Now: clock.Now})

	require.NoError(t, s.Mount(context.Background()))
	require.ErrorIs(t, s.Mount(context.Background()), ErrAlreadyMounted)
	require.Equal(t, 2, clock.Active())
	require.Equal(t, 1, store.subscribers())
	require.Equal(t, 1, channel.subscribers())

	s.Unmount()
	s.Unmount()

	require.Zero(t, clock.Active())
	require.Zero(t, store.subscribers())
	require.Zero(t, channel.subscribers())

	require.ErrorIs(t, s.KeyUp("e"), ErrUnmounted)
	_, err := s.Frame()
	require.ErrorIs(t, err, ErrUnmounted)
	require.ErrorIs(t, s.Mount(context.Background()), ErrUnmounted)

	channel.deliver(domain.ReactionEvent{Value: "late"})
}

func TestContextCancelUnmounts(t *testing.T) {
	clock := timer.NewManual(epoch)
	store, channel := newFakeStore(), newFakeChannel()
	s := New(store, channel, Options{Timers: clock, Now: clock.Now})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Mount(ctx))
	cancel()

	require.Eventually(t, func() bool {
		return clock.Active() == 0 && store.subscribers() == 0 && channel.subscribers() == 0
	}, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		return errors.Is(s.KeyUp("e"), ErrUnmounted)
	}, time.Second, time.Millisecond)
}

func TestDoBeforeMount(t *testing.T) {
	s := New(newFakeStore(), newFakeChannel(), Options{Timers: timer.NewManual(epoch)})
	require.ErrorIs(t, s.KeyUp("e"), ErrUnmounted)
	s.Unmount()
	require.ErrorIs(t, s.Mount(context.Background()), ErrUnmounted)
}

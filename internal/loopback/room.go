// Package loopback connects participants of one process through an
// in-memory room. Members implement both the presence store and the
// broadcast channel; callbacks run synchronously on the publishing goroutine.
package loopback

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/weiawesome/live-cursors/internal/domain"
)

// ErrLeft is returned by a member that has left its room.
var ErrLeft = errors.New("loopback: member left the room")

// Room is an in-memory set of members.
type Room struct {
	mu      sync.Mutex
	nextID  int
	members map[int]*Member
}

// NewRoom creates an empty room.
func NewRoom() *Room {
	return &Room{members: make(map[int]*Member)}
}

// Join adds a member. Connection ids start at 0 and increase in join order.
func (r *Room) Join() *Member {
	r.mu.Lock()
	m := &Member{
		room:      r,
		id:        r.nextID,
		peerSubs:  make(map[int]func([]domain.Peer)),
		eventSubs: make(map[int]func(domain.ReactionEvent)),
	}
	r.nextID++
	r.members[m.id] = m
	notify := r.peerNotificationsLocked(m.id)
	r.mu.Unlock()

	notify()
	return m
}

// Size returns the number of members.
func (r *Room) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// othersLocked lists every member except self, ordered by connection id.
func (r *Room) othersLocked(self int) []domain.Peer {
	peers := make([]domain.Peer, 0, len(r.members))
	for id, m := range r.members {
		if id == self {
			continue
		}
		peers = append(peers, domain.Peer{ConnectionID: id, Presence: m.presence})
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].ConnectionID < peers[j].ConnectionID })
	return peers
}

// peerNotificationsLocked snapshots the peer list of every member other than
// changed and returns a func delivering them outside the lock.
func (r *Room) peerNotificationsLocked(changed int) func() {
	type delivery struct {
		fns   []func([]domain.Peer)
		peers []domain.Peer
	}
	var out []delivery
	for id, m := range r.members {
		if id == changed || len(m.peerSubs) == 0 {
			continue
		}
		out = append(out, delivery{fns: m.peerCallbacksLocked(), peers: r.othersLocked(id)})
	}
	return func() {
		for _, d := range out {
			for _, fn := range d.fns {
				fn(d.peers)
			}
		}
	}
}

// Member is one participant's handle on a Room.
type Member struct {
	room      *Room
	id        int
	presence  domain.Presence
	left      bool
	subSeq    int
	peerSubs  map[int]func([]domain.Peer)
	eventSubs map[int]func(domain.ReactionEvent)
}

// ConnectionID returns the member's id within the room.
func (m *Member) ConnectionID() int {
	return m.id
}

// Publish merges patch into this member's presence and notifies the others.
func (m *Member) Publish(_ context.Context, patch domain.PresencePatch) error {
	r := m.room
	r.mu.Lock()
	if m.left {
		r.mu.Unlock()
		return ErrLeft
	}
	m.presence = m.presence.Apply(patch)
	notify := r.peerNotificationsLocked(m.id)
	r.mu.Unlock()

	notify()
	return nil
}

// Others returns every other member's presence.
func (m *Member) Others() []domain.Peer {
	m.room.mu.Lock()
	defer m.room.mu.Unlock()
	if m.left {
		return nil
	}
	return m.room.othersLocked(m.id)
}

// SubscribeOthers registers fn for peer list changes.
func (m *Member) SubscribeOthers(fn func([]domain.Peer)) func() {
	r := m.room
	r.mu.Lock()
	defer r.mu.Unlock()
	m.subSeq++
	key := m.subSeq
	m.peerSubs[key] = fn
	return func() {
		r.mu.Lock()
		delete(m.peerSubs, key)
		r.mu.Unlock()
	}
}

// Broadcast delivers evt to every other member.
func (m *Member) Broadcast(_ context.Context, evt domain.ReactionEvent) error {
	r := m.room
	r.mu.Lock()
	if m.left {
		r.mu.Unlock()
		return ErrLeft
	}
	var fns []func(domain.ReactionEvent)
	for id, other := range r.members {
		if id == m.id {
			continue
		}
		for _, fn := range other.eventSubs {
			fns = append(fns, fn)
		}
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(evt)
	}
	return nil
}

// OnEvent registers fn for events broadcast by other members.
func (m *Member) OnEvent(fn func(domain.ReactionEvent)) func() {
	r := m.room
	r.mu.Lock()
	defer r.mu.Unlock()
	m.subSeq++
	key := m.subSeq
	m.eventSubs[key] = fn
	return func() {
		r.mu.Lock()
		delete(m.eventSubs, key)
		r.mu.Unlock()
	}
}

// Leave removes the member and notifies the others. It is idempotent.
func (m *Member) Leave() {
	r := m.room
	r.mu.Lock()
	if m.left {
		r.mu.Unlock()
		return
	}
	m.left = true
	delete(r.members, m.id)
	notify := r.peerNotificationsLocked(m.id)
	r.mu.Unlock()

	notify()
}

func (m *Member) peerCallbacksLocked() []func([]domain.Peer) {
	keys := make([]int, 0, len(m.peerSubs))
	for k := range m.peerSubs {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	fns := make([]func([]domain.Peer), 0, len(keys))
	for _, k := range keys {
		fns = append(fns, m.peerSubs[k])
	}
	return fns
}

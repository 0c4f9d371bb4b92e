package session

import (
	"context"
	"sync"

	"github.com/weiawesome/live-cursors/internal/domain"
)

type fakeStore struct {
	mu      sync.Mutex
	patches []domain.PresencePatch
	others  []domain.Peer
	subs    map[int]func([]domain.Peer)
	seq     int
	err     error
	// afterOthers runs after Others has taken its snapshot.
	afterOthers func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{subs: make(map[int]func([]domain.Peer))}
}

func (s *fakeStore) Publish(_ context.Context, patch domain.PresencePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patches = append(s.patches, patch)
	return s.err
}

func (s *fakeStore) Others() []domain.Peer {
	s.mu.Lock()
	peers := append([]domain.Peer(nil), s.others...)
	hook := s.afterOthers
	s.afterOthers = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return peers
}

func (s *fakeStore) SubscribeOthers(fn func([]domain.Peer)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	key := s.seq
	s.subs[key] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, key)
	}
}

func (s *fakeStore) setOthers(peers []domain.Peer) {
	s.mu.Lock()
	s.others = peers
	fns := make([]func([]domain.Peer), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(peers)
	}
}

func (s *fakeStore) published() []domain.PresencePatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PresencePatch(nil), s.patches...)
}

func (s *fakeStore) subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

type fakeChannel struct {
	mu   sync.Mutex
	sent []domain.ReactionEvent
	subs map[int]func(domain.ReactionEvent)
	seq  int
	err  error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{subs: make(map[int]func(domain.ReactionEvent))}
}

func (c *fakeChannel) Broadcast(_ context.Context, evt domain.ReactionEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, evt)
	return c.err
}

func (c *fakeChannel) OnEvent(fn func(domain.ReactionEvent)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	key := c.seq
	c.subs[key] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, key)
	}
}

func (c *fakeChannel) deliver(evt domain.ReactionEvent) {
	c.mu.Lock()
	fns := make([]func(domain.ReactionEvent), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(evt)
	}
}

func (c *fakeChannel) broadcasts() []domain.ReactionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.ReactionEvent(nil), c.sent...)
}

func (c *fakeChannel) subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

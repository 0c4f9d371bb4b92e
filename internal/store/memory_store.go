package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/weiawesome/live-cursors/internal/domain"
)

// memoryStore implements PresenceStore for a single relay instance.
// TTLs are not enforced; records go away on Remove.
type memoryStore struct {
	mu    sync.Mutex
	seq   map[string]int
	rooms map[string]map[int]domain.Presence
}

// NewMemoryStore creates an in-process presence store.
func NewMemoryStore() PresenceStore {
	return &memoryStore{
		seq:   make(map[string]int),
		rooms: make(map[string]map[int]domain.Presence),
	}
}

func (s *memoryStore) NextConnectionID(_ context.Context, roomID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.seq[roomID]
	s.seq[roomID] = id + 1
	return id, nil
}

func (s *memoryStore) Put(_ context.Context, roomID string, peer domain.Peer, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		room = make(map[int]domain.Presence)
		s.rooms[roomID] = room
	}
	room[peer.ConnectionID] = peer.Presence.Clone()
	return nil
}

func (s *memoryStore) Remove(_ context.Context, roomID string, connectionID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[roomID]; ok {
		delete(room, connectionID)
		if len(room) == 0 {
			delete(s.rooms, roomID)
		}
	}
	return nil
}

func (s *memoryStore) List(_ context.Context, roomID string) ([]domain.Peer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := s.rooms[roomID]
	peers := make([]domain.Peer, 0, len(room))
	for id, presence := range room {
		peers = append(peers, domain.Peer{ConnectionID: id, Presence: presence})
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].ConnectionID < peers[j].ConnectionID })
	return peers, nil
}

func (s *memoryStore) Refresh(context.Context, string, time.Duration) error {
	return nil
}

func (s *memoryStore) Close() error {
	return nil
}

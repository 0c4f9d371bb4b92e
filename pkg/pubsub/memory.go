package pubsub

import (
	"context"
	"errors"
	"path"
	"sync"
)

// ErrClosed is returned by a MemoryPubSub after Close.
var ErrClosed = errors.New("pubsub: closed")

type memorySubscription struct {
	pattern bool
	ch      chan *Event
	done    chan struct{}
	once    sync.Once
}

func (s *memorySubscription) close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// MemoryPubSub is an in-process PubSub for a single server instance and for
// tests. Patterns use Redis glob semantics for '*'.
type MemoryPubSub struct {
	mu     sync.RWMutex
	subs   map[string]*memorySubscription
	closed bool
}

// NewMemoryPubSub creates an empty in-process bus.
func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{subs: make(map[string]*memorySubscription)}
}

// Publish delivers the event to every matching subscription without blocking.
// Subscribers whose buffer is full miss the event.
func (m *MemoryPubSub) Publish(_ context.Context, channel string, event *Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}

	for key, sub := range m.subs {
		if sub.pattern {
			if ok, _ := path.Match(key, channel); !ok {
				continue
			}
		} else if key != channel {
			continue
		}

		select {
		case <-sub.done:
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe subscribes to a specific channel.
func (m *MemoryPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	return m.subscribe(ctx, channel, false)
}

// SubscribePattern subscribes to channels matching a glob pattern.
func (m *MemoryPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}
	return m.subscribe(ctx, pattern, true)
}

func (m *MemoryPubSub) subscribe(ctx context.Context, key string, pattern bool) (<-chan *Event, error) {
	sub := &memorySubscription{
		pattern: pattern,
		ch:      make(chan *Event, subscriptionBuffer),
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if existing, ok := m.subs[key]; ok {
		existing.close()
	}
	m.subs[key] = sub
	m.mu.Unlock()

	out := make(chan *Event, subscriptionBuffer)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				m.remove(key, sub)
				return
			case <-sub.done:
				return
			case ev := <-sub.ch:
				select {
				case out <- ev:
				case <-ctx.Done():
					m.remove(key, sub)
					return
				case <-sub.done:
					return
				}
			}
		}
	}()
	return out, nil
}

func (m *MemoryPubSub) remove(key string, sub *memorySubscription) {
	m.mu.Lock()
	if m.subs[key] == sub {
		delete(m.subs, key)
	}
	m.mu.Unlock()
	sub.close()
}

// Unsubscribe ends a channel or pattern subscription.
func (m *MemoryPubSub) Unsubscribe(_ context.Context, channel string) error {
	m.mu.Lock()
	sub, ok := m.subs[channel]
	delete(m.subs, channel)
	m.mu.Unlock()

	if ok {
		sub.close()
	}
	return nil
}

// Close ends all subscriptions.
func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for key, sub := range m.subs {
		sub.close()
		delete(m.subs, key)
	}
	return nil
}

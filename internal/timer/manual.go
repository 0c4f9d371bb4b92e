package timer

import (
	"sort"
	"sync"
	"time"
)

type manualTimer struct {
	seq      int
	interval time.Duration
	next     time.Time
	fn       func()
	active   bool
}

// Manual is a Service driven by virtual time. Callbacks fire only from
// Advance, on the calling goroutine, in deadline order.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

// NewManual returns a Manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Every implements Service. The first call fires one interval from now.
func (m *Manual) Every(interval time.Duration, fn func()) func() {
	if interval <= 0 {
		panic("timer: non-positive interval")
	}

	m.mu.Lock()
	m.seq++
	t := &manualTimer{seq: m.seq, interval: interval, next: m.now.Add(interval), fn: fn, active: true}
	m.timers = append(m.timers, t)
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		t.active = false
		for i, other := range m.timers {
			if other == t {
				m.timers = append(m.timers[:i], m.timers[i+1:]...)
				break
			}
		}
	}
}

// Advance moves virtual time forward by d, firing every callback whose
// deadline falls within the window. Ties fire in registration order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		t := m.nextDue(target)
		if t == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = t.next
		t.next = t.next.Add(t.interval)
		fn := t.fn
		m.mu.Unlock()

		fn()
	}
}

func (m *Manual) nextDue(target time.Time) *manualTimer {
	due := make([]*manualTimer, 0, len(m.timers))
	for _, t := range m.timers {
		if t.active && !t.next.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].next.Equal(due[j].next) {
			return due[i].seq < due[j].seq
		}
		return due[i].next.Before(due[j].next)
	})
	return due[0]
}

// Active returns the number of uncancelled timers.
func (m *Manual) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

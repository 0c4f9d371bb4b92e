// Package session hosts a participant engine on a single event loop.
//
// Every input, query, timer tick and inbound transport callback runs as a work
// item on one goroutine in FIFO order, so the engine needs no locks. Inputs and
// queries wait for their item; ticks and transport callbacks are posted
// without waiting and are dropped when the queue is full.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/weiawesome/live-cursors/internal/cursor"
	"github.com/weiawesome/live-cursors/internal/domain"
	"github.com/weiawesome/live-cursors/internal/reaction"
	"github.com/weiawesome/live-cursors/internal/render"
	"github.com/weiawesome/live-cursors/internal/timer"
	pkglog "github.com/weiawesome/live-cursors/pkg/log"
)

var (
	// ErrUnmounted is returned for work submitted to a session that is not
	// running.
	ErrUnmounted = errors.New("session: not mounted")
	// ErrAlreadyMounted is returned by a second Mount.
	ErrAlreadyMounted = errors.New("session: already mounted")
)

// DefaultQueueSize is the work queue capacity.
const DefaultQueueSize = 256

// Options configures a Session. Zero values select the defaults.
type Options struct {
	EmitInterval  time.Duration
	SweepInterval time.Duration
	Lifetime      time.Duration
	QueueSize     int
	Timers        timer.Service
	Now           func() time.Time
	Logger        *zerolog.Logger
}

type lifecycle int

const (
	idle lifecycle = iota
	running
	stopped
)

// Session runs an Engine on its own goroutine.
type Session struct {
	engine   *Engine
	store    PresenceStore
	channel  BroadcastChannel
	timers   timer.Service
	emitInt  time.Duration
	sweepInt time.Duration
	logger   zerolog.Logger

	work chan func(context.Context)
	stop chan struct{}
	done chan struct{}

	mu       sync.Mutex
	state    lifecycle
	releases []func()
	cancel   context.CancelFunc
}

// New creates an unmounted session.
func New(store PresenceStore, channel BroadcastChannel, opts Options) *Session {
	if opts.EmitInterval <= 0 {
		opts.EmitInterval = reaction.EmitInterval
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = reaction.SweepInterval
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Timers == nil {
		opts.Timers = timer.Ticker{}
	}

	logger := pkglog.Component(opts.Logger, "session")
	return &Session{
		engine: NewEngine(store, channel, EngineOptions{
			Lifetime: opts.Lifetime,
			Now:      opts.Now,
			Logger:   opts.Logger,
		}),
		store:    store,
		channel:  channel,
		timers:   opts.Timers,
		emitInt:  opts.EmitInterval,
		sweepInt: opts.SweepInterval,
		logger:   logger,
		work:     make(chan func(context.Context), opts.QueueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Mount starts the loop, the emission and eviction timers, and the broadcast
// and presence subscriptions. Cancelling ctx unmounts the session.
func (s *Session) Mount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case running:
		return ErrAlreadyMounted
	case stopped:
		return ErrUnmounted
	}
	s.state = running

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.loop(loopCtx)

	s.releases = append(s.releases,
		s.timers.Every(s.emitInt, func() {
			s.post(func(ctx context.Context) { s.engine.EmitTick(ctx) })
		}),
		s.timers.Every(s.sweepInt, func() {
			s.post(func(context.Context) { s.engine.Sweep() })
		}),
		s.channel.OnEvent(func(evt domain.ReactionEvent) {
			s.post(func(context.Context) { s.engine.ReceiveEvent(evt) })
		}),
		s.store.SubscribeOthers(func(peers []domain.Peer) {
			s.post(func(context.Context) { s.engine.SetPeers(peers) })
		}),
	)

	// The initial list is read on the loop, after SubscribeOthers.
	s.post(func(context.Context) { s.engine.SetPeers(s.store.Others()) })

	go func() {
		select {
		case <-ctx.Done():
			s.Unmount()
		case <-s.done:
		}
	}()

	s.logger.Debug().Msg("session mounted")
	return nil
}

// Unmount releases both timers and both subscriptions, stops the loop and
// waits for it to exit. It is safe to call more than once.
func (s *Session) Unmount() {
	s.mu.Lock()
	if s.state != running {
		s.state = stopped
		s.mu.Unlock()
		return
	}
	s.state = stopped
	releases := s.releases
	s.releases = nil
	s.mu.Unlock()

	for i := len(releases) - 1; i >= 0; i-- {
		releases[i]()
	}

	close(s.stop)
	<-s.done
	s.cancel()

	s.logger.Debug().Msg("session unmounted")
}

func (s *Session) loop(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case fn := <-s.work:
			fn(ctx)
		}
	}
}

// post enqueues fn without waiting. It reports whether fn was queued.
func (s *Session) post(fn func(context.Context)) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.work <- fn:
		return true
	default:
		s.logger.Debug().Msg("work queue full, item dropped")
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
func (s *Session) Do(fn func(ctx context.Context, e *Engine)) error {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()
	if st != running {
		return ErrUnmounted
	}

	finished := make(chan struct{})
	item := func(ctx context.Context) {
		defer close(finished)
		fn(ctx, s.engine)
	}

	select {
	case s.work <- item:
	case <-s.done:
		return ErrUnmounted
	}

	select {
	case <-finished:
		return nil
	case <-s.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrUnmounted
		}
	}
}

func query[T any](s *Session, fn func(e *Engine) T) (T, error) {
	var out T
	err := s.Do(func(_ context.Context, e *Engine) { out = fn(e) })
	return out, err
}

// KeyDown reports whether the default action of key must be suppressed.
func (s *Session) KeyDown(key string) (bool, error) {
	return query(s, func(e *Engine) bool { return e.KeyDown(key) })
}

// KeyUp handles a window-level key release.
func (s *Session) KeyUp(key string) error {
	return s.Do(func(ctx context.Context, e *Engine) { e.KeyUp(ctx, key) })
}

// ChatInput replaces the chat line.
func (s *Session) ChatInput(text string) error {
	return s.Do(func(ctx context.Context, e *Engine) { e.ChatInput(ctx, text) })
}

// ChatKeyDown handles Enter and Escape in the chat field.
func (s *Session) ChatKeyDown(key string) error {
	return s.Do(func(_ context.Context, e *Engine) { e.ChatKeyDown(key) })
}

// PickReaction selects an emoji.
func (s *Session) PickReaction(value string) error {
	return s.Do(func(_ context.Context, e *Engine) { e.PickReaction(value) })
}

// PointerMove moves the cursor.
func (s *Session) PointerMove(x, y float64) error {
	return s.Do(func(ctx context.Context, e *Engine) { e.PointerMove(ctx, x, y) })
}

// PointerDown presses at (x, y).
func (s *Session) PointerDown(x, y float64) error {
	return s.Do(func(ctx context.Context, e *Engine) { e.PointerDown(ctx, x, y) })
}

// PointerUp releases the pointer.
func (s *Session) PointerUp() error {
	return s.Do(func(_ context.Context, e *Engine) { e.PointerUp() })
}

// PointerLeave reports the pointer leaving the surface.
func (s *Session) PointerLeave() error {
	return s.Do(func(ctx context.Context, e *Engine) { e.PointerLeave(ctx) })
}

// Frame projects the current view.
func (s *Session) Frame() (render.Frame, error) {
	return query(s, func(e *Engine) render.Frame { return e.Frame() })
}

// State returns the interaction state.
func (s *Session) State() (cursor.State, error) {
	return query(s, func(e *Engine) cursor.State { return e.State() })
}

// Presence returns the local presence copy.
func (s *Session) Presence() (domain.Presence, error) {
	return query(s, func(e *Engine) domain.Presence { return e.Presence() })
}

// Particles returns the live particles.
func (s *Session) Particles() ([]domain.Particle, error) {
	return query(s, func(e *Engine) []domain.Particle { return e.Particles() })
}

// Peers returns the known peers.
func (s *Session) Peers() ([]domain.Peer, error) {
	return query(s, func(e *Engine) []domain.Peer { return e.Peers() })
}

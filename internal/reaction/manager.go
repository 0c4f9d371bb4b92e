// Package reaction keeps the ordered sequence of reaction particles: it emits
// particles while a reaction is held, appends particles received from peers,
// and evicts particles once they are older than the configured lifetime.
package reaction

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/weiawesome/live-cursors/internal/domain"
	pkglog "github.com/weiawesome/live-cursors/pkg/log"
)

// Defaults for the emission cadence, the sweep cadence and particle lifetime.
const (
	EmitInterval  = 100 * time.Millisecond
	SweepInterval = time.Second
	Lifetime      = 4 * time.Second
)

// Broadcaster delivers an event to every other participant.
type Broadcaster interface {
	Broadcast(ctx context.Context, evt domain.ReactionEvent) error
}

// Source exposes what an emission tick samples.
type Source interface {
	// Cursor returns the local cursor, nil when off the surface.
	Cursor() *domain.Point
	// Emitting returns the held reaction and whether it is pressed.
	Emitting() (string, bool)
}

// Options configures a Manager. Zero values select the defaults.
type Options struct {
	Lifetime time.Duration
	Now      func() time.Time
	IDs      *IDSource
	Logger   *zerolog.Logger
}

// Manager owns the particle sequence. It is not safe for concurrent use; the
// session loop serialises every call.
type Manager struct {
	broadcaster Broadcaster
	particles   []domain.Particle
	lifetime    time.Duration
	now         func() time.Time
	ids         *IDSource
	logger      zerolog.Logger
}

// NewManager creates a Manager that broadcasts emitted reactions through b.
func NewManager(b Broadcaster, opts Options) *Manager {
	if opts.Lifetime <= 0 {
		opts.Lifetime = Lifetime
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.IDs == nil {
		opts.IDs = NewIDSource()
	}
	return &Manager{
		broadcaster: b,
		lifetime:    opts.Lifetime,
		now:         opts.Now,
		ids:         opts.IDs,
		logger:      pkglog.Component(opts.Logger, "reaction"),
	}
}

// EmitTick appends and broadcasts one particle when src holds a pressed
// reaction over a known cursor. It reports whether a particle was emitted.
func (m *Manager) EmitTick(ctx context.Context, src Source) bool {
	value, pressed := src.Emitting()
	if !pressed {
		return false
	}
	cursor := src.Cursor()
	if cursor == nil {
		return false
	}

	m.Emit(ctx, *cursor, value)
	return true
}

// Emit appends a local particle at p and broadcasts it. A failed broadcast
// keeps the local particle.
func (m *Manager) Emit(ctx context.Context, p domain.Point, value string) {
	m.append(p, value)

	evt := domain.ReactionEvent{X: p.X, Y: p.Y, Value: value}
	if err := m.broadcaster.Broadcast(ctx, evt); err != nil {
		m.logger.Debug().Err(err).Str(pkglog.FieldReaction, value).Msg("broadcast failed")
	}
}

// Receive appends a particle for an event from a peer, stamped with the
// local receipt time.
func (m *Manager) Receive(evt domain.ReactionEvent) {
	m.append(evt.Point(), evt.Value)
}

func (m *Manager) append(p domain.Point, value string) {
	now := m.now()
	m.particles = append(m.particles, domain.Particle{
		ID:        m.ids.Next(now),
		Value:     value,
		Timestamp: now,
		Point:     p,
	})
}

// Sweep removes every particle older than the lifetime and returns how many
// were removed.
func (m *Manager) Sweep() int {
	now := m.now()
	before := len(m.particles)
	m.particles = lo.Filter(m.particles, func(p domain.Particle, _ int) bool {
		return now.Sub(p.Timestamp) <= m.lifetime
	})
	removed := before - len(m.particles)
	if removed > 0 {
		m.logger.Trace().Int(pkglog.FieldParticles, len(m.particles)).Int("evicted", removed).Msg("swept particles")
	}
	return removed
}

// Particles returns a copy of the live particles in arrival order.
func (m *Manager) Particles() []domain.Particle {
	out := make([]domain.Particle, len(m.particles))
	copy(out, m.particles)
	return out
}

// Len returns the number of live particles.
func (m *Manager) Len() int {
	return len(m.particles)
}

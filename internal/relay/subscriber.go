// Package relay receives room events published by other relay instances and
// hands them to the local room service.
package relay

import (
	"context"
	"time"

	"github.com/weiawesome/live-cursors/internal/service"
	pkglog "github.com/weiawesome/live-cursors/pkg/log"
	"github.com/weiawesome/live-cursors/pkg/pubsub"
)

// Handler consumes a relayed room event.
type Handler interface {
	HandleRemoteEvent(ctx context.Context, event *pubsub.Event) error
}

var _ Handler = (service.RoomService)(nil)

// Subscriber pattern-subscribes to every room's event channel.
type Subscriber struct {
	bus        pubsub.Subscriber
	handler    Handler
	instanceID string
	retryDelay time.Duration
	doneCh     chan struct{}
}

// NewSubscriber creates a subscriber delivering events not published by
// instanceID to handler.
func NewSubscriber(bus pubsub.Subscriber, handler Handler, instanceID string) *Subscriber {
	return &Subscriber{
		bus:        bus,
		handler:    handler,
		instanceID: instanceID,
		retryDelay: 2 * time.Second,
		doneCh:     make(chan struct{}),
	}
}

// Done returns a channel that is closed when Run() exits.
func (s *Subscriber) Done() <-chan struct{} { return s.doneCh }

// Run subscribes and dispatches events until ctx is done. It resubscribes
// when the event stream ends unexpectedly.
func (s *Subscriber) Run(ctx context.Context) {
	defer close(s.doneCh)
	l := pkglog.Component(nil, "relay")

	for {
		err := s.runSubscription(ctx)
		if ctx.Err() != nil {
			return
		}
		l.Warn().Err(err).Dur("retry_in", s.retryDelay).Msg("relay subscription ended, resubscribing")

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retryDelay):
		}
	}
}

func (s *Subscriber) runSubscription(ctx context.Context) error {
	events, err := s.bus.SubscribePattern(ctx, pubsub.PatternRoomEvents)
	if err != nil {
		return err
	}
	defer s.bus.Unsubscribe(context.Background(), pubsub.PatternRoomEvents)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			s.handleEvent(ctx, event)
		}
	}
}

func (s *Subscriber) handleEvent(ctx context.Context, event *pubsub.Event) {
	if event == nil || event.RoomID == "" || event.Origin == s.instanceID {
		return
	}

	if err := s.handler.HandleRemoteEvent(ctx, event); err != nil {
		l := pkglog.Component(nil, "relay")
		l.Warn().Err(err).
			Str(pkglog.FieldRoomID, event.RoomID).
			Str(pkglog.FieldMsgType, event.Type).
			Msg("failed to deliver relayed event")
	}
}

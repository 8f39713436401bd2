package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/anonto42/feedpulse/backend/internal/metrics"
)

// Transport moves opaque messages over a single broadcast channel.
type Transport interface {
	// Publish hands data to the channel. It must respect ctx cancellation.
	Publish(ctx context.Context, data []byte) error
	// Subscribe returns a channel receiving every message published after
	// the call returns. Call the returned cancel function to unsubscribe;
	// the channel is closed afterwards.
	Subscribe(ctx context.Context) (<-chan []byte, func(), error)
	Close() error
}

// Handler is invoked once per envelope, sequentially, in arrival order.
type Handler func(ctx context.Context, env *Envelope)

// Publisher is the write-path view of the bus.
type Publisher interface {
	Publish(ctx context.Context, payload Payload) (*Envelope, error)
}

// Subscriber is the consumer view of the bus.
type Subscriber interface {
	Subscribe(ctx context.Context, h Handler) (Subscription, error)
}

// Subscription is an active handler registration.
type Subscription interface {
	Close() error
}

const defaultPublishTimeout = 5 * time.Second

// Bus builds envelopes, publishes them through a Transport and fans
// decoded envelopes out to handlers. Delivery is best effort and
// at-most-once: nothing is acknowledged, retried or stored.
type Bus struct {
	transport      Transport
	log            log.FieldLogger
	publishTimeout time.Duration
	clock          *clock

	mu     sync.Mutex
	closed bool
	subs   map[*subscription]struct{}
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for dropped messages and handler panics.
func WithLogger(l log.FieldLogger) Option {
	return func(b *Bus) { b.log = l }
}

// WithPublishTimeout bounds how long Publish waits on the transport.
func WithPublishTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.publishTimeout = d
		}
	}
}

func withNow(now func() time.Time) Option {
	return func(b *Bus) { b.clock.now = now }
}

// New returns a Bus on top of t. The bus owns t and closes it on Close.
func New(t Transport, opts ...Option) *Bus {
	b := &Bus{
		transport:      t,
		log:            log.StandardLogger(),
		publishTimeout: defaultPublishTimeout,
		clock:          &clock{now: time.Now},
		subs:           make(map[*subscription]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish wraps payload in a fresh envelope and broadcasts it. Invalid
// payloads fail with ErrInvalidEnvelope before anything is sent; transport
// failures are returned as *TransportError.
func (b *Bus) Publish(ctx context.Context, payload Payload) (*Envelope, error) {
	if payload == nil {
		metrics.EventsPublishFailed.WithLabelValues("invalid").Inc()
		return nil, invalid("nil payload")
	}
	if err := payload.validate(); err != nil {
		metrics.EventsPublishFailed.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if b.isClosed() {
		return nil, ErrBusClosed
	}

	env := &Envelope{
		ID:        uuid.NewString(),
		Type:      payload.EventType(),
		Payload:   payload,
		Timestamp: b.clock.stamp(),
		Version:   SchemaVersion,
	}
	data, err := Encode(env)
	if err != nil {
		metrics.EventsPublishFailed.WithLabelValues("encode").Inc()
		return nil, &TransportError{Op: "encode", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, b.publishTimeout)
	defer cancel()
	if err := b.transport.Publish(ctx, data); err != nil {
		metrics.EventsPublishFailed.WithLabelValues("transport").Inc()
		return nil, &TransportError{Op: "publish", Err: err}
	}

	metrics.EventsPublished.WithLabelValues(string(env.Type)).Inc()
	b.log.WithFields(log.Fields{"event_id": env.ID, "event_type": env.Type}).Debug("event published")
	return env, nil
}

// Subscribe starts delivering envelopes to h until the subscription or the
// bus is closed, or ctx is cancelled. Messages that fail to decode are
// logged and dropped without interrupting delivery.
func (b *Bus) Subscribe(ctx context.Context, h Handler) (Subscription, error) {
	if b.isClosed() {
		return nil, ErrBusClosed
	}
	msgs, unsubscribe, err := b.transport.Subscribe(ctx)
	if err != nil {
		return nil, &TransportError{Op: "subscribe", Err: err}
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &subscription{bus: b, done: make(chan struct{})}
	s.stop = func() {
		cancel()
		unsubscribe()
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		s.stop()
		return nil, ErrBusClosed
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go b.consume(ctx, msgs, h, unsubscribe, s.done)
	return s, nil
}

func (b *Bus) consume(ctx context.Context, msgs <-chan []byte, h Handler, unsubscribe func(), done chan<- struct{}) {
	defer close(done)
	// In-flight handlers are not interrupted by unsubscribing.
	handlerCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			unsubscribe()
			return
		case raw, ok := <-msgs:
			if !ok {
				return
			}
			env, err := Decode(raw)
			if err != nil {
				metrics.EventsDropped.WithLabelValues("malformed").Inc()
				b.log.WithError(err).Warn("dropping malformed event")
				continue
			}
			metrics.EventsReceived.WithLabelValues(string(env.Type)).Inc()
			b.dispatch(handlerCtx, h, env)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, env *Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithFields(log.Fields{"event_id": env.ID, "event_type": env.Type, "panic": r}).
				Error("event handler panicked")
		}
	}()
	h(ctx, env)
}

// Close stops every subscription and closes the transport.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	return b.transport.Close()
}

func (b *Bus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Bus) forget(s *subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

type subscription struct {
	bus  *Bus
	stop func()
	done chan struct{}
	once sync.Once
}

// Close unsubscribes and waits for the consumer goroutine to return.
func (s *subscription) Close() error {
	s.once.Do(func() {
		s.stop()
		<-s.done
		s.bus.forget(s)
	})
	return nil
}

// clock hands out timestamps that never go backwards within a process,
// even if the wall clock is stepped.
type clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func (c *clock) stamp() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}

// IsTransportError reports whether err came from the bus transport.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

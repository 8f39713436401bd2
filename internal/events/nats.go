package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/anonto42/feedpulse/backend/internal/metrics"
)

const natsBufferSize = 256

// NATSTransport broadcasts over a core NATS subject.
type NATSTransport struct {
	conn    *nats.Conn
	subject string
}

// DialNATS connects to NATS with automatic reconnection. Extra options
// (e.g. disconnect handlers) are appended to the defaults.
//
// Messages waiting for a slow subscriber are held by the client up to its
// pending limits; anything dropped past them is reported to the error
// handler, which logs it.
func DialNATS(url, subject string, opts ...nats.Option) (*NATSTransport, error) {
	if subject == "" {
		subject = DefaultChannel
	}
	defaults := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.ErrorHandler(logAsyncError),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSTransport{conn: nc, subject: subject}, nil
}

// Publish waits for the server to acknowledge the flush, so an unreachable
// server surfaces as an error instead of a silently buffered message.
func (t *NATSTransport) Publish(ctx context.Context, data []byte) error {
	if err := t.conn.Publish(t.subject, data); err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok {
		return t.conn.Flush()
	}
	return t.conn.FlushWithContext(ctx)
}

func (t *NATSTransport) Subscribe(ctx context.Context) (<-chan []byte, func(), error) {
	ch := make(chan []byte, natsBufferSize)

	var (
		mu     sync.Mutex
		closed bool
		once   sync.Once
		done   = make(chan struct{})
	)

	sub, err := t.conn.Subscribe(t.subject, func(msg *nats.Msg) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- msg.Data:
		case <-done:
		}
	})
	if err != nil {
		close(ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", t.subject, err)
	}
	if err := t.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		close(ch)
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}

	cancel := func() {
		once.Do(func() {
			close(done)
			_ = sub.Unsubscribe()
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}
	return ch, cancel, nil
}

// logAsyncError reports errors raised outside any call, most notably
// nats.ErrSlowConsumer when a subscription's pending limits overflow.
func logAsyncError(_ *nats.Conn, sub *nats.Subscription, err error) {
	entry := log.WithError(err)
	if sub != nil {
		entry = entry.WithField("subject", sub.Subject)
	}
	if errors.Is(err, nats.ErrSlowConsumer) {
		metrics.EventsDropped.WithLabelValues("overflow").Inc()
		entry.Warn("nats subscriber fell behind, messages dropped")
		return
	}
	entry.Warn("nats async error")
}

func (t *NATSTransport) Close() error {
	t.conn.Close()
	return nil
}

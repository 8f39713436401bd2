// Package translator turns domain events into stored notifications and
// hands them to real-time delivery.
package translator

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/anonto42/feedpulse/backend/internal/events"
	"github.com/anonto42/feedpulse/backend/internal/metrics"
	"github.com/anonto42/feedpulse/backend/internal/models"
)

// NotificationCreator persists notifications.
type NotificationCreator interface {
	Create(ctx context.Context, typ models.NotificationType, userID, targetID, message string) (*models.Notification, error)
}

// Deliverer pushes a stored notification to the recipient's live
// connections and reports how many accepted it.
type Deliverer interface {
	Deliver(ctx context.Context, n *models.Notification) int
}

const defaultStoreTimeout = 5 * time.Second

// Translator applies the notification rules to each event it receives.
// Failures are confined to the event that caused them.
type Translator struct {
	store        NotificationCreator
	delivery     Deliverer
	log          log.FieldLogger
	storeTimeout time.Duration
}

type Option func(*Translator)

func WithLogger(l log.FieldLogger) Option {
	return func(t *Translator) { t.log = l }
}

// WithStoreTimeout bounds each store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(t *Translator) {
		if d > 0 {
			t.storeTimeout = d
		}
	}
}

func New(store NotificationCreator, delivery Deliverer, opts ...Option) *Translator {
	t := &Translator{
		store:        store,
		delivery:     delivery,
		log:          log.StandardLogger(),
		storeTimeout: defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start subscribes the translator to sub. Closing the returned
// subscription stops it.
func (t *Translator) Start(ctx context.Context, sub events.Subscriber) (events.Subscription, error) {
	s, err := sub.Subscribe(ctx, t.Handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe translator: %w", err)
	}
	t.log.Info("notification translator started")
	return s, nil
}

// Handle processes one envelope. It never returns an error: whatever goes
// wrong is logged and the next event is processed normally.
func (t *Translator) Handle(ctx context.Context, env *events.Envelope) {
	start := time.Now()
	defer func() {
		metrics.TranslationDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
	}()

	logger := t.log.WithFields(log.Fields{"event_id": env.ID, "event_type": env.Type})

	switch p := env.Payload.(type) {
	case events.PostLiked:
		t.notify(ctx, logger, env.Type, notice{
			typ:       models.NotificationPostLike,
			recipient: p.Post.AuthorID,
			actor:     p.User.ID,
			target:    p.Like.ID,
			message:   fmt.Sprintf("%s liked your post", p.User.Username),
		})
	case events.PostCommented:
		t.notify(ctx, logger, env.Type, notice{
			typ:       models.NotificationPostComment,
			recipient: p.Post.AuthorID,
			actor:     p.Author.ID,
			target:    p.Comment.ID,
			message:   fmt.Sprintf("%s commented on your post", p.Author.Username),
		})
	case events.PostCreated:
		logger.WithField("post", p.Post.ID).Debug("post created, no notification")
	case events.UserCreated:
		logger.WithField("user", p.User.ID).Debug("user created, no notification")
	case events.Unrecognized:
		logger.Warn("ignoring unrecognized event")
	default:
		logger.Warnf("ignoring payload of type %T", p)
	}
}

type notice struct {
	typ       models.NotificationType
	recipient string
	actor     string
	target    string
	message   string
}

func (t *Translator) notify(ctx context.Context, logger log.FieldLogger, et events.EventType, n notice) {
	logger = logger.WithField("user", n.recipient)

	// Nobody is notified about their own activity.
	if n.recipient == n.actor {
		metrics.NotificationsSuppressed.WithLabelValues(string(et)).Inc()
		logger.Debug("self notification suppressed")
		return
	}

	storeCtx, cancel := context.WithTimeout(ctx, t.storeTimeout)
	stored, err := t.store.Create(storeCtx, n.typ, n.recipient, n.target, n.message)
	cancel()
	if err != nil {
		metrics.NotificationsFailed.Inc()
		logger.WithError(err).Error("failed to store notification")
		return
	}
	metrics.NotificationsCreated.WithLabelValues(string(n.typ)).Inc()

	delivered := t.delivery.Deliver(ctx, stored)
	logger.WithFields(log.Fields{"notification": stored.ID, "connections": delivered}).
		Debug("notification created")
}

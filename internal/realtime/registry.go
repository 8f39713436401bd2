// Package realtime tracks live client connections per user and pushes
// notifications to them.
package realtime

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/anonto42/feedpulse/backend/internal/metrics"
	"github.com/anonto42/feedpulse/backend/internal/models"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendQueueFull    = errors.New("send queue full")
)

// Conn is one live client connection.
type Conn interface {
	// Send queues n for this connection without waiting on network I/O.
	Send(n *models.Notification) error
	Close() error
}

// Registry maps user ids to their live connections. A user may hold any
// number of connections (several devices or tabs); a connection belongs to
// at most one user.
type Registry struct {
	mu     sync.RWMutex
	users  map[string]map[Conn]struct{}
	owners map[Conn]string
	log    log.FieldLogger
}

func NewRegistry(logger log.FieldLogger) *Registry {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Registry{
		users:  make(map[string]map[Conn]struct{}),
		owners: make(map[Conn]string),
		log:    logger,
	}
}

// Register adds c to userID's set. Registering the same pair twice is a
// no-op; registering c under another user moves it there.
func (r *Registry) Register(userID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.owners[c]; ok {
		if prev == userID {
			return
		}
		r.removeLocked(prev, c)
	}
	set, ok := r.users[userID]
	if !ok {
		set = make(map[Conn]struct{})
		r.users[userID] = set
	}
	set[c] = struct{}{}
	r.owners[c] = userID
	metrics.LiveConnections.Set(float64(len(r.owners)))
}

// Unregister removes c from whichever user holds it. Unknown connections
// are ignored.
func (r *Registry) Unregister(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owners[c]
	if !ok {
		return
	}
	r.removeLocked(userID, c)
	metrics.LiveConnections.Set(float64(len(r.owners)))
}

func (r *Registry) removeLocked(userID string, c Conn) {
	delete(r.owners, c)
	set := r.users[userID]
	delete(set, c)
	if len(set) == 0 {
		delete(r.users, userID)
	}
}

// Deliver pushes n to every connection of n.UserID and returns how many
// accepted it. A failing connection does not affect the others. A user
// without connections is not an error: the notification stays in the store.
// Sending stops early once ctx is done.
func (r *Registry) Deliver(ctx context.Context, n *models.Notification) int {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.users[n.UserID]))
	for c := range r.users[n.UserID] {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	if len(conns) == 0 {
		metrics.Pushes.WithLabelValues("offline").Inc()
		return 0
	}

	delivered := 0
	for _, c := range conns {
		if ctx.Err() != nil {
			break
		}
		if err := c.Send(n); err != nil {
			metrics.Pushes.WithLabelValues("failed").Inc()
			r.log.WithError(err).WithFields(log.Fields{"user": n.UserID, "notification": n.ID}).
				Warn("push to connection failed")
			continue
		}
		metrics.Pushes.WithLabelValues("sent").Inc()
		delivered++
	}
	return delivered
}

// Connections returns the number of live connections held by userID.
func (r *Registry) Connections(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID])
}

// Len returns the total number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}

// Close drops every registration and closes the connections.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := make([]Conn, 0, len(r.owners))
	for c := range r.owners {
		conns = append(conns, c)
	}
	r.users = make(map[string]map[Conn]struct{})
	r.owners = make(map[Conn]string)
	r.mu.Unlock()
	metrics.LiveConnections.Set(0)

	for _, c := range conns {
		if err := c.Close(); err != nil {
			r.log.WithError(err).Debug("closing connection")
		}
	}
}

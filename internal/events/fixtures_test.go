package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/feedpulse/backend/internal/models"
)

func likedBy(likeID, postID, authorID, userID, username string) PostLiked {
	return PostLiked{
		Like: models.Like{ID: likeID, PostID: postID, UserID: userID},
		Post: models.Post{ID: postID, AuthorID: authorID, Content: "hello"},
		User: models.User{ID: userID, Username: username},
	}
}

// recorder collects envelopes delivered to a handler.
type recorder struct {
	mu   sync.Mutex
	envs []*Envelope
}

func (r *recorder) handle(_ context.Context, env *Envelope) {
	r.mu.Lock()
	r.envs = append(r.envs, env)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []*Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Envelope(nil), r.envs...)
}

func (r *recorder) waitFor(t *testing.T, n int) []*Envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := r.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d envelopes, got %d", n, len(r.snapshot()))
	return nil
}

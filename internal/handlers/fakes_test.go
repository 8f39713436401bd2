package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/feedpulse/backend/internal/events"
	"github.com/anonto42/feedpulse/backend/internal/models"
	"github.com/anonto42/feedpulse/backend/internal/repositories"
	"github.com/anonto42/feedpulse/backend/validators"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
	seq   int
}

func newFakeUsers(users ...models.User) *fakeUsers {
	f := &fakeUsers{users: make(map[string]*models.User)}
	for i := range users {
		u := users[i]
		f.users[u.ID] = &u
	}
	return f
}

func (f *fakeUsers) CreateUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email || u.Username == user.Username {
			return repositories.ErrDuplicate
		}
	}
	f.seq++
	user.ID = fmt.Sprintf("U%d", 100+f.seq)
	user.CreatedAt = time.Now()
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetUsers(context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]models.User, 0, len(f.users))
	for _, u := range f.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

type fakePosts struct {
	mu    sync.Mutex
	posts map[string]*models.Post
	seq   int
}

func newFakePosts(posts ...models.Post) *fakePosts {
	f := &fakePosts{posts: make(map[string]*models.Post)}
	for i := range posts {
		p := posts[i]
		f.posts[p.ID] = &p
	}
	return f
}

func (f *fakePosts) CreatePost(_ context.Context, post *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	post.ID = fmt.Sprintf("P%d", 100+f.seq)
	post.CreatedAt = time.Now()
	cp := *post
	f.posts[post.ID] = &cp
	return nil
}

func (f *fakePosts) GetPostByID(_ context.Context, id string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePosts) GetAllPosts(_ context.Context, skip, limit int64) ([]models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	posts := make([]models.Post, 0, len(f.posts))
	for _, p := range f.posts {
		posts = append(posts, *p)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID > posts[j].ID })
	if skip >= int64(len(posts)) {
		return []models.Post{}, nil
	}
	posts = posts[skip:]
	if int64(len(posts)) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (f *fakePosts) IncrementLikesCount(_ context.Context, postID string) error {
	return f.bump(postID, func(p *models.Post) { p.LikesCount++ })
}

func (f *fakePosts) IncrementCommentsCount(_ context.Context, postID string) error {
	return f.bump(postID, func(p *models.Post) { p.CommentsCount++ })
}

func (f *fakePosts) bump(postID string, fn func(*models.Post)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[postID]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(p)
	return nil
}

type fakeLikes struct {
	mu    sync.Mutex
	likes []models.Like
}

func (f *fakeLikes) CreateLike(_ context.Context, like *models.Like) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.likes {
		if l.PostID == like.PostID && l.UserID == like.UserID {
			return repositories.ErrDuplicate
		}
	}
	like.ID = fmt.Sprintf("L%d", len(f.likes)+1)
	like.CreatedAt = time.Now()
	f.likes = append(f.likes, *like)
	return nil
}

func (f *fakeLikes) HasUserLikedPost(_ context.Context, postID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.likes {
		if l.PostID == postID && l.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLikes) GetLikesByPostID(_ context.Context, postID string) ([]models.Like, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Like, 0)
	for _, l := range f.likes {
		if l.PostID == postID {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeComments struct {
	mu       sync.Mutex
	comments []models.Comment
}

func (f *fakeComments) CreateComment(_ context.Context, comment *models.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	comment.ID = fmt.Sprintf("C%d", len(f.comments)+1)
	comment.CreatedAt = time.Now()
	f.comments = append(f.comments, *comment)
	return nil
}

func (f *fakeComments) GetCommentsByPostID(_ context.Context, postID string) ([]models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Comment, 0)
	for _, c := range f.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeNotifications struct {
	mu    sync.Mutex
	items []models.Notification
	err   error
}

func (f *fakeNotifications) Create(_ context.Context, typ models.NotificationType, userID, targetID, message string) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := models.Notification{
		ID:        fmt.Sprintf("N%d", len(f.items)+1),
		Type:      typ,
		UserID:    userID,
		TargetID:  targetID,
		Message:   message,
		CreatedAt: time.Now(),
	}
	f.items = append(f.items, n)
	return &n, nil
}

func (f *fakeNotifications) ListByUser(_ context.Context, userID string) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, &repositories.StoreError{Op: "list notifications", Err: f.err}
	}
	out := make([]models.Notification, 0)
	for i := len(f.items) - 1; i >= 0; i-- {
		if f.items[i].UserID == userID {
			out = append(out, f.items[i])
		}
	}
	return out, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, id string) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].IsRead = true
			n := f.items[i]
			return &n, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeNotifications) CountUnread(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, item := range f.items {
		if item.UserID == userID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads []events.Payload
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, p events.Payload) (*events.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, &events.TransportError{Op: "publish", Err: f.err}
	}
	f.payloads = append(f.payloads, p)
	return &events.Envelope{
		ID:        fmt.Sprintf("e%d", len(f.payloads)),
		Type:      p.EventType(),
		Payload:   p,
		Timestamp: time.Now().UTC(),
		Version:   events.SchemaVersion,
	}, nil
}

func (f *fakePublisher) published() []events.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.Payload(nil), f.payloads...)
}

func newTestEcho() (*echo.Echo, *echo.Group) {
	e := echo.New()
	e.Validator = validators.NewValidator()
	return e, e.Group("/api")
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

var (
	alice = models.User{ID: "U1", Username: "alice", Email: "alice@example.com"}
	bob   = models.User{ID: "U2", Username: "bob", Email: "bob@example.com"}
	carol = models.User{ID: "U3", Username: "carol", Email: "carol@example.com"}
	hello = models.Post{ID: "P1", Content: "hello", AuthorID: alice.ID}
)

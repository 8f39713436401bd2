package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/anonto42/feedpulse/backend/internal/events"
	"github.com/anonto42/feedpulse/backend/internal/models"
	"github.com/anonto42/feedpulse/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

const (
	defaultPostLimit = 20
	maxPostLimit     = 100
)

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	postRepository    repositories.PostRepository
	userRepository    repositories.UserRepository // to check the author exists
	commentRepository repositories.CommentRepository
	likeRepository    repositories.LikeRepository
	bus               events.Publisher
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(
	postRepo repositories.PostRepository,
	userRepo repositories.UserRepository,
	commentRepo repositories.CommentRepository,
	likeRepo repositories.LikeRepository,
	bus events.Publisher,
) *PostHandler {
	return &PostHandler{
		postRepository:    postRepo,
		userRepository:    userRepo,
		commentRepository: commentRepo,
		likeRepository:    likeRepo,
		bus:               bus,
	}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.GET("/posts", h.GetPosts)
	g.GET("/posts/:id", h.GetPost)
}

// CreatePost stores a post and announces it with POST_CREATED
func (h *PostHandler) CreatePost(c echo.Context) error {
	var req models.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := h.userRepository.GetUserByID(ctx, req.AuthorID); err != nil {
		return storeError(err, "Author not found")
	}

	post := &models.Post{Content: req.Content, AuthorID: req.AuthorID}
	if err := h.postRepository.CreatePost(ctx, post); err != nil {
		return storeError(err, "Post not found")
	}

	if err := publish(c, h.bus, events.PostCreated{Post: *post}); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, post)
}

// GetPost retrieves a post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	post, err := h.postRepository.GetPostByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "Post not found")
	}
	return c.JSON(http.StatusOK, post)
}

// GetPosts lists posts newest first, paginated by skip and limit. Each post
// carries its author, its comments with their authors and its likes with
// the liking users.
func (h *PostHandler) GetPosts(c echo.Context) error {
	skip, _ := strconv.ParseInt(c.QueryParam("skip"), 10, 64)
	limit, _ := strconv.ParseInt(c.QueryParam("limit"), 10, 64)
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultPostLimit
	}
	if limit > maxPostLimit {
		limit = maxPostLimit
	}

	ctx := c.Request().Context()
	posts, err := h.postRepository.GetAllPosts(ctx, skip, limit)
	if err != nil {
		return storeError(err, "Posts not found")
	}

	users := userCache{repo: h.userRepository, seen: make(map[string]*models.User)}
	feed := make([]models.PostView, 0, len(posts))
	for _, post := range posts {
		view, err := h.postView(ctx, post, &users)
		if err != nil {
			return storeError(err, "Posts not found")
		}
		feed = append(feed, view)
	}
	return c.JSON(http.StatusOK, feed)
}

func (h *PostHandler) postView(ctx context.Context, post models.Post, users *userCache) (models.PostView, error) {
	view := models.PostView{Post: post}
	var err error
	if view.Author, err = users.get(ctx, post.AuthorID); err != nil {
		return view, err
	}

	comments, err := h.commentRepository.GetCommentsByPostID(ctx, post.ID)
	if err != nil {
		return view, err
	}
	view.Comments = make([]models.CommentView, 0, len(comments))
	for _, comment := range comments {
		author, err := users.get(ctx, comment.AuthorID)
		if err != nil {
			return view, err
		}
		view.Comments = append(view.Comments, models.CommentView{Comment: comment, Author: author})
	}

	likes, err := h.likeRepository.GetLikesByPostID(ctx, post.ID)
	if err != nil {
		return view, err
	}
	view.Likes = make([]models.LikeView, 0, len(likes))
	for _, like := range likes {
		user, err := users.get(ctx, like.UserID)
		if err != nil {
			return view, err
		}
		view.Likes = append(view.Likes, models.LikeView{Like: like, User: user})
	}
	return view, nil
}

// userCache resolves each user at most once per request. Unknown users
// resolve to nil.
type userCache struct {
	repo repositories.UserRepository
	seen map[string]*models.User
}

func (u *userCache) get(ctx context.Context, id string) (*models.User, error) {
	if user, ok := u.seen[id]; ok {
		return user, nil
	}
	user, err := u.repo.GetUserByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		user, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.seen[id] = user
	return user, nil
}

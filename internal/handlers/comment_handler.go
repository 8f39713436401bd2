package handlers

import (
	"net/http"

	"github.com/anonto42/feedpulse/backend/internal/events"
	"github.com/anonto42/feedpulse/backend/internal/models"
	"github.com/anonto42/feedpulse/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// CommentHandler handles HTTP requests related to comments
type CommentHandler struct {
	commentRepository repositories.CommentRepository
	postRepository    repositories.PostRepository
	userRepository    repositories.UserRepository
	bus               events.Publisher
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(commentRepo repositories.CommentRepository, postRepo repositories.PostRepository, userRepo repositories.UserRepository, bus events.Publisher) *CommentHandler {
	return &CommentHandler{
		commentRepository: commentRepo,
		postRepository:    postRepo,
		userRepository:    userRepo,
		bus:               bus,
	}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.POST("/posts/:id/comment", h.CreateComment)
	g.GET("/posts/:id/comments", h.GetCommentsByPostID)
}

// CreateComment records a comment and announces it with POST_COMMENTED
func (h *CommentHandler) CreateComment(c echo.Context) error {
	postID := c.Param("id")

	var req models.CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	post, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return storeError(err, "Post not found")
	}
	author, err := h.userRepository.GetUserByID(ctx, req.AuthorID)
	if err != nil {
		return storeError(err, "Author not found")
	}

	comment := &models.Comment{Content: req.Content, PostID: postID, AuthorID: author.ID}
	if err := h.commentRepository.CreateComment(ctx, comment); err != nil {
		return storeError(err, "Comment not found")
	}

	if err := h.postRepository.IncrementCommentsCount(ctx, postID); err != nil {
		log.WithError(err).WithField("post", postID).Warn("failed to increment comments count")
	} else {
		post.CommentsCount++
	}

	if err := publish(c, h.bus, events.PostCommented{Comment: *comment, Post: *post, Author: *author}); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, comment)
}

// GetCommentsByPostID lists a post's comments, oldest first
func (h *CommentHandler) GetCommentsByPostID(c echo.Context) error {
	comments, err := h.commentRepository.GetCommentsByPostID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "Comments not found")
	}
	return c.JSON(http.StatusOK, comments)
}

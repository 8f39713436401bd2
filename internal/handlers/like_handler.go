package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/feedpulse/backend/internal/events"
	"github.com/anonto42/feedpulse/backend/internal/models"
	"github.com/anonto42/feedpulse/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// LikeHandler handles HTTP requests related to likes
type LikeHandler struct {
	likeRepository repositories.LikeRepository
	postRepository repositories.PostRepository // To update like counts in posts
	userRepository repositories.UserRepository // To fetch the liking user for the event
	bus            events.Publisher
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(likeRepo repositories.LikeRepository, postRepo repositories.PostRepository, userRepo repositories.UserRepository, bus events.Publisher) *LikeHandler {
	return &LikeHandler{
		likeRepository: likeRepo,
		postRepository: postRepo,
		userRepository: userRepo,
		bus:            bus,
	}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/posts/:id/like", h.LikePost)
}

// LikePost records a like and announces it with POST_LIKED
func (h *LikeHandler) LikePost(c echo.Context) error {
	postID := c.Param("id")

	var req models.CreateLikeRequest
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
	user, err := h.userRepository.GetUserByID(ctx, req.UserID)
	if err != nil {
		return storeError(err, "User not found")
	}

	// Check if user has already liked the post
	hasLiked, err := h.likeRepository.HasUserLikedPost(ctx, postID, user.ID)
	if err != nil {
		return storeError(err, "Like not found")
	}
	if hasLiked {
		return echo.NewHTTPError(http.StatusConflict, "Post already liked by this user")
	}

	like := &models.Like{PostID: postID, UserID: user.ID}
	if err := h.likeRepository.CreateLike(ctx, like); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return echo.NewHTTPError(http.StatusConflict, "Post already liked by this user")
		}
		return storeError(err, "Like not found")
	}

	if err := h.postRepository.IncrementLikesCount(ctx, postID); err != nil {
		log.WithError(err).WithField("post", postID).Warn("failed to increment likes count")
	} else {
		post.LikesCount++
	}

	if err := publish(c, h.bus, events.PostLiked{Like: *like, Post: *post, User: *user}); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, like)
}

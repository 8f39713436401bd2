package handlers

import (
	"net/http"

	"github.com/anonto42/feedpulse/backend/internal/events"
	"github.com/anonto42/feedpulse/backend/internal/models"
	"github.com/anonto42/feedpulse/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	userRepository repositories.UserRepository
	bus            events.Publisher
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository, bus events.Publisher) *UserHandler {
	return &UserHandler{userRepository: userRepo, bus: bus}
}

// RegisterUserRoutes registers user-related routes
func (h *UserHandler) RegisterUserRoutes(g *echo.Group) {
	g.POST("/users", h.CreateUser)
	g.GET("/users", h.GetUsers)
	g.GET("/users/:id", h.GetUser)
}

// CreateUser stores a user and announces it with USER_CREATED
func (h *UserHandler) CreateUser(c echo.Context) error {
	var req models.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user := &models.User{Username: req.Username, Email: req.Email}
	if err := h.userRepository.CreateUser(c.Request().Context(), user); err != nil {
		return storeError(err, "User not found")
	}

	if err := publish(c, h.bus, events.UserCreated{User: *user}); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) GetUsers(c echo.Context) error {
	users, err := h.userRepository.GetUsers(c.Request().Context())
	if err != nil {
		return storeError(err, "Users not found")
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) GetUser(c echo.Context) error {
	user, err := h.userRepository.GetUserByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "User not found")
	}
	return c.JSON(http.StatusOK, user)
}

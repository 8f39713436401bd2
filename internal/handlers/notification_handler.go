package handlers

import (
	"net/http"

	"github.com/anonto42/feedpulse/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifRepo repositories.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notificationRepository: notifRepo}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
}

// GetNotifications lists a user's notifications, newest first
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	userID := c.QueryParam("userId")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "userId is required")
	}

	notifications, err := h.notificationRepository.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return storeError(err, "Notifications not found")
	}
	return c.JSON(http.StatusOK, notifications)
}

func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	userID := c.QueryParam("userId")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "userId is required")
	}

	count, err := h.notificationRepository.CountUnread(c.Request().Context(), userID)
	if err != nil {
		return storeError(err, "Notifications not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"userId": userID, "unreadCount": count})
}

// MarkAsRead marks one notification read; repeating it is harmless
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	notification, err := h.notificationRepository.MarkRead(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "Notification not found")
	}
	return c.JSON(http.StatusOK, notification)
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/anonto42/feedpulse/backend/internal/events"
	"github.com/anonto42/feedpulse/backend/internal/repositories"
)

// storeError maps repository errors onto HTTP errors.
func storeError(err error, notFound string) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, notFound)
	case errors.Is(err, repositories.ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, "Resource already exists").SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
}

// publish sends payload on the bus. The write it describes is already
// committed, so a failure answers 503 rather than rolling anything back.
func publish(c echo.Context, bus events.Publisher, payload events.Payload) error {
	env, err := bus.Publish(c.Request().Context(), payload)
	if err != nil {
		log.WithError(err).WithField("event_type", payload.EventType()).Error("failed to publish event")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Event bus unavailable").SetInternal(err)
	}
	log.WithFields(log.Fields{"event_id": env.ID, "event_type": env.Type}).Debug("event published")
	return nil
}

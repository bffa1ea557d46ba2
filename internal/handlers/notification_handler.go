package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/n-crespo/theopendissent/backend/internal/middleware"
	"github.com/n-crespo/theopendissent/backend/internal/repositories"
	"github.com/n-crespo/theopendissent/backend/internal/store"
)

// NotificationHandler handles notification-related HTTP requests. Records
// are created by the trigger pipeline; clients only mark read and delete.
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifRepo repositories.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notificationRepository: notifRepo}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.DELETE("/notifications", h.Delete)
}

// MarkAsRead flips a notification's read flag
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	uid := middleware.UIDFromContext(c)

	err := h.notificationRepository.MarkAsRead(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Notification not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}

// Delete removes a batch of the caller's notification records
func (h *NotificationHandler) Delete(c echo.Context) error {
	uid := middleware.UIDFromContext(c)

	var req struct {
		IDs []string `json:"ids"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if len(req.IDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "No notification ids given")
	}

	if err := h.notificationRepository.Delete(c.Request().Context(), uid, req.IDs); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/flowbridge/flowbridge/internal/callbacks"
)

// SettingsHandler manages bot callback registrations.
type SettingsHandler struct {
	callbacks *callbacks.Service
	logger    *slog.Logger
}

func NewSettingsHandler(log *slog.Logger, svc *callbacks.Service) *SettingsHandler {
	return &SettingsHandler{
		callbacks: svc,
		logger:    log.With(slog.String("handler", "settings")),
	}
}

func (h *SettingsHandler) Register(e *echo.Echo) {
	e.PUT("/settings", h.Update)
	e.DELETE("/settings/:bot", h.Delete)
}

type settingsRequest struct {
	Bot     string `json:"bot"`
	Webhook struct {
		URL string `json:"url"`
	} `json:"webhook"`
}

func (h *SettingsHandler) Update(c echo.Context) error {
	var req settingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Bot) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bot is required")
	}
	if strings.TrimSpace(req.Webhook.URL) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "webhook.url is required")
	}

	if err := h.callbacks.Register(c.Request().Context(), req.Bot, req.Webhook.URL); err != nil {
		if errors.Is(err, callbacks.ErrInvalidCallbackURL) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		h.logger.Error("callback registration failed",
			slog.String("bot", req.Bot),
			slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not store registration")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SettingsHandler) Delete(c echo.Context) error {
	bot := strings.TrimSpace(c.Param("bot"))
	if bot == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bot is required")
	}
	if err := h.callbacks.Unregister(c.Request().Context(), bot); err != nil {
		h.logger.Error("callback removal failed",
			slog.String("bot", bot),
			slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not remove registration")
	}
	return c.NoContent(http.StatusNoContent)
}

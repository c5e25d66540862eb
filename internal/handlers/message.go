package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/flowbridge/flowbridge/internal/rocketchat"
	"github.com/flowbridge/flowbridge/internal/router"
)

// MessageHandler accepts outbound messages from bots and routes them into
// chat rooms.
type MessageHandler struct {
	router   *router.Router
	validate *validator.Validate
	logger   *slog.Logger
}

func NewMessageHandler(log *slog.Logger, r *router.Router) *MessageHandler {
	return &MessageHandler{
		router:   r,
		validate: validator.New(),
		logger:   log.With(slog.String("handler", "message")),
	}
}

func (h *MessageHandler) Register(e *echo.Echo) {
	e.POST("/message", h.Send)
}

type sendMessageRequest struct {
	User        string                  `json:"user" validate:"required"`
	Bot         string                  `json:"bot" validate:"required"`
	Text        string                  `json:"text"`
	Attachments []rocketchat.Attachment `json:"attachments"`
}

func (h *MessageHandler) Send(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	id, err := h.router.SendOutbound(c.Request().Context(), req.User, req.Bot, req.Text, req.Attachments)
	if err != nil {
		var addrErr *router.AddressingError
		if errors.As(err, &addrErr) {
			return echo.NewHTTPError(http.StatusBadRequest, addrErr.Error())
		}
		var nfErr *router.NotFoundError
		if errors.As(err, &nfErr) {
			// A bad target user is the caller's addressing mistake; a missing
			// bot or visitor is a stale reference.
			if nfErr.Kind == "user" {
				return echo.NewHTTPError(http.StatusBadRequest, nfErr.Error())
			}
			return echo.NewHTTPError(http.StatusNotFound, nfErr.Error())
		}
		h.logger.Error("outbound send failed",
			slog.String("urn", req.User),
			slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "message delivery failed")
	}

	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

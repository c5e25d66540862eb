package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/flowbridge/flowbridge/internal/events"
	"github.com/flowbridge/flowbridge/internal/router"
)

// EventsHandler receives the chat platform's event webhook. The platform
// fires and forgets: every accepted event is answered 204 regardless of what
// forwarding later does with it.
type EventsHandler struct {
	filter *events.Filter
	router *router.Router
	logger *slog.Logger
	debug  bool
}

func NewEventsHandler(log *slog.Logger, filter *events.Filter, r *router.Router, debug bool) *EventsHandler {
	return &EventsHandler{
		filter: filter,
		router: r,
		logger: log.With(slog.String("handler", "events")),
		debug:  debug,
	}
}

func (h *EventsHandler) Register(e *echo.Echo) {
	e.POST("/events", h.Receive)
}

func (h *EventsHandler) Receive(c echo.Context) error {
	var ev events.Event
	if err := c.Bind(&ev); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	decision := h.filter.Decide(ev)
	if !decision.Forward {
		if h.debug {
			h.logger.Debug("event dropped",
				slog.String("type", string(ev.Type)),
				slog.String("reason", decision.Reason))
		}
		return c.NoContent(http.StatusNoContent)
	}

	ctx := c.Request().Context()
	switch ev.Type {
	case events.TypeMessage:
		h.forwardMessage(c, ev)
	case events.TypeRoomClosed:
		if ev.Room.Visitor != nil {
			h.router.NotifyRoomClosed(ctx, ev.Room.Visitor.Token, ev.Closure)
		}
	case events.TypeRoomTransferred:
		if ev.Room.Visitor != nil {
			h.router.NotifyRoomTransferred(ctx, ev.Room.Visitor.Token, ev.Transfer)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// forwardMessage pushes the message to the appropriate callback. Delivery
// failures are an operator concern, never bounced back to the platform.
func (h *EventsHandler) forwardMessage(c echo.Context, ev events.Event) {
	ctx := c.Request().Context()
	switch ev.Room.Kind {
	case events.RoomLivechat:
		visitor := *ev.Room.Visitor
		h.router.SyncVisitorRoomField(ctx, visitor.Token, ev.Room.ID)
		if err := h.router.ForwardLivechat(ctx, ev.Room.ServedBy, visitor, ev.Message); err != nil {
			h.logger.Error("livechat forward failed",
				slog.String("room_id", ev.Room.ID),
				slog.Any("error", err))
		}
	case events.RoomDirect:
		bot, _ := ev.Room.Counterpart(ev.Sender)
		if err := h.router.ForwardDirect(ctx, bot, ev.Sender, ev.Message); err != nil {
			h.logger.Error("direct forward failed",
				slog.String("room_id", ev.Room.ID),
				slog.Any("error", err))
		}
	}
}

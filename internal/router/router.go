package router

import (
	"context"
	"errors"
	"log/slog"

	"github.com/flowbridge/flowbridge/internal/attachments"
	"github.com/flowbridge/flowbridge/internal/events"
	"github.com/flowbridge/flowbridge/internal/rocketchat"
	"github.com/flowbridge/flowbridge/internal/webhook"
)

// ChatGateway is the chat platform surface the router depends on.
type ChatGateway interface {
	GetUser(ctx context.Context, username string) (*rocketchat.User, error)
	GetVisitor(ctx context.Context, token string) (*rocketchat.Visitor, error)
	SendDirectMessage(ctx context.Context, username, text string, atts []rocketchat.Attachment) (string, error)
	SendLivechatMessage(ctx context.Context, visitorToken, text string, atts []rocketchat.Attachment) (string, error)
	BaseURL() string
}

// CallbackResolver looks up a bot's registered forwarding endpoint. A miss is
// (_, false, nil), not an error.
type CallbackResolver interface {
	Resolve(ctx context.Context, botUsername string) (string, bool, error)
}

// Dispatcher delivers webhook payloads.
type Dispatcher interface {
	Deliver(ctx context.Context, dest webhook.Destination, payload any, origin string, policy webhook.RetryPolicy) error
}

// FlowTrigger drives the flow-automation side. Implementations are best
// effort and never return errors.
type FlowTrigger interface {
	StartFlow(ctx context.Context, flowID, visitorToken string, extra map[string]any)
	UpdateContactField(ctx context.Context, visitorToken, field, value string)
}

// Router connects the two directions of the bridge: outbound sends from bots
// into chat rooms, and inbound event forwarding to callbacks and flows.
type Router struct {
	logger     *slog.Logger
	gateway    ChatGateway
	callbacks  CallbackResolver
	dispatcher Dispatcher
	flows      FlowTrigger

	secret           string
	roomFieldName    string
	closeRoomFlow    string
	transferRoomFlow string
}

type Options struct {
	Secret           string
	RoomFieldName    string
	CloseRoomFlow    string
	TransferRoomFlow string
}

func New(log *slog.Logger, gateway ChatGateway, callbacks CallbackResolver, dispatcher Dispatcher, flows FlowTrigger, opts Options) *Router {
	return &Router{
		logger:           log.With(slog.String("service", "router")),
		gateway:          gateway,
		callbacks:        callbacks,
		dispatcher:       dispatcher,
		flows:            flows,
		secret:           opts.Secret,
		roomFieldName:    opts.RoomFieldName,
		closeRoomFlow:    opts.CloseRoomFlow,
		transferRoomFlow: opts.TransferRoomFlow,
	}
}

// SendOutbound delivers a bot-submitted message to the endpoint named by
// rawURN and returns the created message id. The bot account must exist on
// the chat platform even though delivery runs under the bridge's own
// credentials.
func (r *Router) SendOutbound(ctx context.Context, rawURN, botUsername, text string, atts []rocketchat.Attachment) (string, error) {
	urn, err := ParseURN(rawURN)
	if err != nil {
		return "", err
	}

	if _, err := r.gateway.GetUser(ctx, botUsername); err != nil {
		if errors.Is(err, rocketchat.ErrUserNotFound) {
			return "", &NotFoundError{Kind: "bot", ID: botUsername}
		}
		return "", err
	}

	switch urn.Scheme {
	case SchemeDirect:
		user, err := r.gateway.GetUser(ctx, urn.ID)
		if err != nil {
			if errors.Is(err, rocketchat.ErrUserNotFound) {
				return "", &NotFoundError{Kind: "user", ID: urn.ID}
			}
			return "", err
		}
		return r.gateway.SendDirectMessage(ctx, user.Username, text, atts)
	case SchemeLivechat:
		visitor, err := r.gateway.GetVisitor(ctx, urn.ID)
		if err != nil {
			if errors.Is(err, rocketchat.ErrVisitorNotFound) {
				return "", &NotFoundError{Kind: "visitor", ID: urn.ID}
			}
			return "", err
		}
		return r.gateway.SendLivechatMessage(ctx, visitor.Token, text, atts)
	default:
		return "", &AddressingError{URN: rawURN, Reason: "unknown scheme"}
	}
}

// ForwardDirect pushes a direct-room message to the counterpart bot's
// registered callback. An unregistered bot is a silent skip. Direct forwards
// get a single delivery attempt.
func (r *Router) ForwardDirect(ctx context.Context, botUsername string, sender events.Sender, msg *events.MessagePayload) error {
	callbackURL, ok, err := r.resolveCallback(ctx, botUsername)
	if err != nil || !ok {
		return err
	}

	payload := webhook.NewMessagePayload(
		string(SchemeDirect), sender.Username, sender.Username, sender.Name,
		msg.Text, attachments.BuildDescriptors(r.gateway.BaseURL(), msg.Attachments))
	dest := webhook.Callback{URL: callbackURL, Secret: r.secret}
	return r.dispatcher.Deliver(ctx, dest, payload, "direct forward", webhook.NoRetry)
}

// ForwardLivechat pushes a visitor message to the serving agent's registered
// callback, retrying per the livechat policy. Exhaustion surfaces as a
// DeliveryError for the caller to log.
func (r *Router) ForwardLivechat(ctx context.Context, agentUsername string, visitor events.Visitor, msg *events.MessagePayload) error {
	callbackURL, ok, err := r.resolveCallback(ctx, agentUsername)
	if err != nil || !ok {
		return err
	}

	payload := webhook.NewMessagePayload(
		string(SchemeLivechat), visitor.Token, visitor.Username, visitor.Name,
		msg.Text, attachments.BuildDescriptors(r.gateway.BaseURL(), msg.Attachments))
	dest := webhook.Callback{URL: callbackURL, Secret: r.secret}
	return r.dispatcher.Deliver(ctx, dest, payload, "livechat forward", webhook.LivechatRetry)
}

// NotifyRoomClosed starts the configured close-room flow for the visitor.
func (r *Router) NotifyRoomClosed(ctx context.Context, visitorToken string, extra map[string]any) {
	if r.closeRoomFlow == "" {
		return
	}
	r.flows.StartFlow(ctx, r.closeRoomFlow, visitorToken, extra)
}

// NotifyRoomTransferred starts the configured transfer-room flow for the
// visitor.
func (r *Router) NotifyRoomTransferred(ctx context.Context, visitorToken string, extra map[string]any) {
	if r.transferRoomFlow == "" {
		return
	}
	r.flows.StartFlow(ctx, r.transferRoomFlow, visitorToken, extra)
}

// SyncVisitorRoomField mirrors the visitor's current room id onto their flows
// contact so flow runs can reference the conversation.
func (r *Router) SyncVisitorRoomField(ctx context.Context, visitorToken, roomID string) {
	if r.roomFieldName == "" {
		return
	}
	r.flows.UpdateContactField(ctx, visitorToken, r.roomFieldName, roomID)
}

func (r *Router) resolveCallback(ctx context.Context, botUsername string) (string, bool, error) {
	callbackURL, ok, err := r.callbacks.Resolve(ctx, botUsername)
	if err != nil {
		return "", false, err
	}
	if !ok {
		r.logger.Debug("no callback registered, skipping forward",
			slog.String("bot", botUsername))
		return "", false, nil
	}
	return callbackURL, true, nil
}

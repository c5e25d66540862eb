package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/flowbridge/flowbridge/internal/events"
	"github.com/flowbridge/flowbridge/internal/rocketchat"
	"github.com/flowbridge/flowbridge/internal/webhook"
)

type fakeGateway struct {
	users    map[string]*rocketchat.User
	visitors map[string]*rocketchat.Visitor

	directCalls   int
	livechatCalls int
	lastTarget    string
	lastText      string
}

func (g *fakeGateway) GetUser(_ context.Context, username string) (*rocketchat.User, error) {
	if u, ok := g.users[username]; ok {
		return u, nil
	}
	return nil, rocketchat.ErrUserNotFound
}

func (g *fakeGateway) GetVisitor(_ context.Context, token string) (*rocketchat.Visitor, error) {
	if v, ok := g.visitors[token]; ok {
		return v, nil
	}
	return nil, rocketchat.ErrVisitorNotFound
}

func (g *fakeGateway) SendDirectMessage(_ context.Context, username, text string, _ []rocketchat.Attachment) (string, error) {
	g.directCalls++
	g.lastTarget = username
	g.lastText = text
	return "msg-direct", nil
}

func (g *fakeGateway) SendLivechatMessage(_ context.Context, visitorToken, text string, _ []rocketchat.Attachment) (string, error) {
	g.livechatCalls++
	g.lastTarget = visitorToken
	g.lastText = text
	return "msg-livechat", nil
}

func (g *fakeGateway) BaseURL() string { return "https://chat.example.com" }

type fakeResolver struct {
	urls map[string]string
}

func (r *fakeResolver) Resolve(_ context.Context, botUsername string) (string, bool, error) {
	u, ok := r.urls[botUsername]
	return u, ok, nil
}

type capturedDelivery struct {
	dest    webhook.Destination
	payload any
	origin  string
	policy  webhook.RetryPolicy
}

type fakeDispatcher struct {
	deliveries []capturedDelivery
	err        error
}

func (d *fakeDispatcher) Deliver(_ context.Context, dest webhook.Destination, payload any, origin string, policy webhook.RetryPolicy) error {
	d.deliveries = append(d.deliveries, capturedDelivery{dest: dest, payload: payload, origin: origin, policy: policy})
	return d.err
}

type fakeFlows struct {
	started []string
	fields  map[string]string
}

func (f *fakeFlows) StartFlow(_ context.Context, flowID, visitorToken string, _ map[string]any) {
	f.started = append(f.started, flowID+"/"+visitorToken)
}

func (f *fakeFlows) UpdateContactField(_ context.Context, visitorToken, field, value string) {
	if f.fields == nil {
		f.fields = map[string]string{}
	}
	f.fields[visitorToken+"/"+field] = value
}

func newTestRouter(gw *fakeGateway, cb *fakeResolver, disp *fakeDispatcher, flows *fakeFlows, opts Options) *Router {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(log, gw, cb, disp, flows, opts)
}

func TestSendOutboundMalformedURN(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{users: map[string]*rocketchat.User{}}
	r := newTestRouter(gw, &fakeResolver{}, &fakeDispatcher{}, &fakeFlows{}, Options{})

	_, err := r.SendOutbound(context.Background(), "no-scheme-here", "bot", "hi", nil)
	var addrErr *AddressingError
	if !errors.As(err, &addrErr) {
		t.Fatalf("expected AddressingError, got %v", err)
	}
	if gw.directCalls+gw.livechatCalls != 0 {
		t.Fatal("no delivery may happen for a malformed urn")
	}
}

func TestSendOutboundUnknownScheme(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{users: map[string]*rocketchat.User{
		"bot": {Username: "bot"},
	}}
	r := newTestRouter(gw, &fakeResolver{}, &fakeDispatcher{}, &fakeFlows{}, Options{})

	_, err := r.SendOutbound(context.Background(), "telegram:12345", "bot", "hi", nil)
	var addrErr *AddressingError
	if !errors.As(err, &addrErr) {
		t.Fatalf("expected AddressingError, got %v", err)
	}
}

func TestSendOutboundMissingBot(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{users: map[string]*rocketchat.User{}}
	r := newTestRouter(gw, &fakeResolver{}, &fakeDispatcher{}, &fakeFlows{}, Options{})

	_, err := r.SendOutbound(context.Background(), "direct:alice", "ghost-bot", "hi", nil)
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) || nfErr.Kind != "bot" {
		t.Fatalf("expected bot NotFoundError, got %v", err)
	}
}

func TestSendOutboundDirect(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{users: map[string]*rocketchat.User{
		"bot":   {Username: "bot"},
		"alice": {Username: "alice"},
	}}
	r := newTestRouter(gw, &fakeResolver{}, &fakeDispatcher{}, &fakeFlows{}, Options{})

	id, err := r.SendOutbound(context.Background(), "direct:alice", "bot", "hello", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "msg-direct" || gw.lastTarget != "alice" {
		t.Fatalf("unexpected delivery: id=%q target=%q", id, gw.lastTarget)
	}
}

func TestSendOutboundLivechatMissingVisitor(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		users:    map[string]*rocketchat.User{"bot": {Username: "bot"}},
		visitors: map[string]*rocketchat.Visitor{},
	}
	r := newTestRouter(gw, &fakeResolver{}, &fakeDispatcher{}, &fakeFlows{}, Options{})

	_, err := r.SendOutbound(context.Background(), "livechat:tok1", "bot", "hi", nil)
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) || nfErr.Kind != "visitor" {
		t.Fatalf("expected visitor NotFoundError, got %v", err)
	}
}

func TestSendOutboundLivechatIdentifierWithColon(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		users:    map[string]*rocketchat.User{"bot": {Username: "bot"}},
		visitors: map[string]*rocketchat.Visitor{"tok:with:colons": {Token: "tok:with:colons"}},
	}
	r := newTestRouter(gw, &fakeResolver{}, &fakeDispatcher{}, &fakeFlows{}, Options{})

	id, err := r.SendOutbound(context.Background(), "livechat:tok:with:colons", "bot", "hi", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "msg-livechat" || gw.lastTarget != "tok:with:colons" {
		t.Fatalf("unexpected delivery: id=%q target=%q", id, gw.lastTarget)
	}
}

func TestForwardLivechatPayload(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	disp := &fakeDispatcher{}
	cb := &fakeResolver{urls: map[string]string{"agent-bot": "https://cb.example.com/x"}}
	r := newTestRouter(gw, cb, disp, &fakeFlows{}, Options{Secret: "shh"})

	visitor := events.Visitor{Token: "v1", Username: "v1", Name: "Visitor"}
	msg := &events.MessagePayload{ID: "m1", Text: "hello"}
	if err := r.ForwardLivechat(context.Background(), "agent-bot", visitor, msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(disp.deliveries) != 1 {
		t.Fatalf("expected one delivery, got %d", len(disp.deliveries))
	}
	got := disp.deliveries[0]
	if got.policy != webhook.LivechatRetry {
		t.Fatalf("livechat forwards must use the livechat retry policy, got %+v", got.policy)
	}
	dest, ok := got.dest.(webhook.Callback)
	if !ok || dest.URL != "https://cb.example.com/x" || dest.Secret != "shh" {
		t.Fatalf("unexpected destination: %+v", got.dest)
	}
	payload, ok := got.payload.(webhook.MessagePayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", got.payload)
	}
	if payload.User.URN != "livechat:v1" || payload.User.FullName != "Visitor" || payload.Text != "hello" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Attachments != nil {
		t.Fatal("payload without attachments must stay sparse")
	}
}

func TestForwardDirectUsesSingleAttempt(t *testing.T) {
	t.Parallel()

	disp := &fakeDispatcher{}
	cb := &fakeResolver{urls: map[string]string{"helper": "https://cb.example.com/y"}}
	r := newTestRouter(&fakeGateway{}, cb, disp, &fakeFlows{}, Options{Secret: "shh"})

	sender := events.Sender{Username: "alice", Name: "Alice"}
	msg := &events.MessagePayload{ID: "m2", Text: "hi"}
	if err := r.ForwardDirect(context.Background(), "helper", sender, msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(disp.deliveries) != 1 || disp.deliveries[0].policy != webhook.NoRetry {
		t.Fatalf("direct forwards must deliver once, got %+v", disp.deliveries)
	}
	payload := disp.deliveries[0].payload.(webhook.MessagePayload)
	if payload.User.URN != "direct:alice" {
		t.Fatalf("unexpected urn: %q", payload.User.URN)
	}
}

func TestForwardSkipsUnregisteredBot(t *testing.T) {
	t.Parallel()

	disp := &fakeDispatcher{}
	r := newTestRouter(&fakeGateway{}, &fakeResolver{}, disp, &fakeFlows{}, Options{})

	msg := &events.MessagePayload{ID: "m3", Text: "hi"}
	if err := r.ForwardDirect(context.Background(), "unregistered", events.Sender{Username: "alice"}, msg); err != nil {
		t.Fatalf("silent skip must not error: %v", err)
	}
	if err := r.ForwardLivechat(context.Background(), "unregistered", events.Visitor{Token: "v1"}, msg); err != nil {
		t.Fatalf("silent skip must not error: %v", err)
	}
	if len(disp.deliveries) != 0 {
		t.Fatalf("no delivery expected, got %d", len(disp.deliveries))
	}
}

func TestNotifyLifecycleFlows(t *testing.T) {
	t.Parallel()

	flows := &fakeFlows{}
	opts := Options{CloseRoomFlow: "close-flow", TransferRoomFlow: "transfer-flow"}
	r := newTestRouter(&fakeGateway{}, &fakeResolver{}, &fakeDispatcher{}, flows, opts)

	r.NotifyRoomClosed(context.Background(), "v1", nil)
	r.NotifyRoomTransferred(context.Background(), "v1", nil)
	if len(flows.started) != 2 || flows.started[0] != "close-flow/v1" || flows.started[1] != "transfer-flow/v1" {
		t.Fatalf("unexpected flow starts: %v", flows.started)
	}

	none := newTestRouter(&fakeGateway{}, &fakeResolver{}, &fakeDispatcher{}, flows, Options{})
	none.NotifyRoomClosed(context.Background(), "v1", nil)
	if len(flows.started) != 2 {
		t.Fatal("unconfigured flows must not be started")
	}
}

func TestSyncVisitorRoomField(t *testing.T) {
	t.Parallel()

	flows := &fakeFlows{}
	r := newTestRouter(&fakeGateway{}, &fakeResolver{}, &fakeDispatcher{}, flows, Options{RoomFieldName: "roomid"})
	r.SyncVisitorRoomField(context.Background(), "v1", "room-9")
	if flows.fields["v1/roomid"] != "room-9" {
		t.Fatalf("unexpected field sync: %v", flows.fields)
	}

	off := newTestRouter(&fakeGateway{}, &fakeResolver{}, &fakeDispatcher{}, flows, Options{})
	off.SyncVisitorRoomField(context.Background(), "v1", "room-9")
	if len(flows.fields) != 1 {
		t.Fatal("field sync must be gated on a configured field name")
	}
}

func TestParseURN(t *testing.T) {
	t.Parallel()

	urn, err := ParseURN("direct:alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if urn.Scheme != SchemeDirect || urn.ID != "alice" {
		t.Fatalf("unexpected urn: %+v", urn)
	}
	if urn.String() != "direct:alice" {
		t.Fatalf("unexpected string form: %q", urn.String())
	}

	for _, raw := range []string{"", "noseparator", ":id", "scheme:"} {
		if _, err := ParseURN(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

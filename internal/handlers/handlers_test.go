package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/flowbridge/flowbridge/internal/events"
	"github.com/flowbridge/flowbridge/internal/rocketchat"
	"github.com/flowbridge/flowbridge/internal/router"
	"github.com/flowbridge/flowbridge/internal/webhook"
)

type stubGateway struct {
	users    map[string]bool
	visitors map[string]bool
}

func (g *stubGateway) GetUser(_ context.Context, username string) (*rocketchat.User, error) {
	if g.users[username] {
		return &rocketchat.User{Username: username}, nil
	}
	return nil, rocketchat.ErrUserNotFound
}

func (g *stubGateway) GetVisitor(_ context.Context, token string) (*rocketchat.Visitor, error) {
	if g.visitors[token] {
		return &rocketchat.Visitor{Token: token}, nil
	}
	return nil, rocketchat.ErrVisitorNotFound
}

func (g *stubGateway) SendDirectMessage(context.Context, string, string, []rocketchat.Attachment) (string, error) {
	return "m-1", nil
}

func (g *stubGateway) SendLivechatMessage(context.Context, string, string, []rocketchat.Attachment) (string, error) {
	return "m-2", nil
}

func (g *stubGateway) BaseURL() string { return "https://chat.example.com" }

type stubResolver struct {
	urls map[string]string
}

func (r *stubResolver) Resolve(_ context.Context, bot string) (string, bool, error) {
	u, ok := r.urls[bot]
	return u, ok, nil
}

type stubDispatcher struct {
	count   int
	lastURL string
}

func (d *stubDispatcher) Deliver(_ context.Context, dest webhook.Destination, _ any, _ string, _ webhook.RetryPolicy) error {
	d.count++
	d.lastURL = dest.Endpoint()
	return nil
}

type stubFlows struct {
	started int
	synced  int
}

func (f *stubFlows) StartFlow(context.Context, string, string, map[string]any) { f.started++ }
func (f *stubFlows) UpdateContactField(context.Context, string, string, string) {
	f.synced++
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMessageTestServer(gw *stubGateway) *echo.Echo {
	r := router.New(discardLogger(), gw, &stubResolver{}, &stubDispatcher{}, &stubFlows{}, router.Options{})
	e := echo.New()
	NewMessageHandler(discardLogger(), r).Register(e)
	return e
}

func postJSON(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSendMessageCreated(t *testing.T) {
	t.Parallel()

	e := newMessageTestServer(&stubGateway{users: map[string]bool{"bot": true, "alice": true}})
	rec := postJSON(e, "/message", `{"user":"direct:alice","bot":"bot","text":"hi"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["id"] != "m-1" {
		t.Fatalf("unexpected id: %q", resp["id"])
	}
}

func TestSendMessageValidation(t *testing.T) {
	t.Parallel()

	e := newMessageTestServer(&stubGateway{users: map[string]bool{"bot": true, "alice": true}})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing bot", `{"user":"direct:alice","text":"hi"}`, http.StatusBadRequest},
		{"missing user", `{"bot":"bot","text":"hi"}`, http.StatusBadRequest},
		{"malformed urn", `{"user":"alice","bot":"bot","text":"hi"}`, http.StatusBadRequest},
		{"unknown scheme", `{"user":"sms:123","bot":"bot","text":"hi"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := postJSON(e, "/message", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d; body %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestSendMessageNotFoundMapping(t *testing.T) {
	t.Parallel()

	e := newMessageTestServer(&stubGateway{users: map[string]bool{"bot": true}})

	rec := postJSON(e, "/message", `{"user":"direct:ghost","bot":"bot","text":"hi"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown target user: status = %d, want 400", rec.Code)
	}

	rec = postJSON(e, "/message", `{"user":"direct:ghost","bot":"no-such-bot","text":"hi"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown bot: status = %d, want 404", rec.Code)
	}

	rec = postJSON(e, "/message", `{"user":"livechat:gone","bot":"bot","text":"hi"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown visitor: status = %d, want 404", rec.Code)
	}
}

func newEventsTestServer(disp *stubDispatcher, flows *stubFlows, resolver *stubResolver) *echo.Echo {
	r := router.New(discardLogger(), &stubGateway{}, resolver, disp, flows, router.Options{
		Secret:           "shh",
		RoomFieldName:    "roomid",
		CloseRoomFlow:    "11111111-1111-1111-1111-111111111111",
		TransferRoomFlow: "22222222-2222-2222-2222-222222222222",
	})
	filter := events.NewFilter("11111111-1111-1111-1111-111111111111", "22222222-2222-2222-2222-222222222222")
	e := echo.New()
	NewEventsHandler(discardLogger(), filter, r, false).Register(e)
	return e
}

func TestReceiveLivechatMessageForwardsAndSyncs(t *testing.T) {
	t.Parallel()

	disp := &stubDispatcher{}
	flows := &stubFlows{}
	resolver := &stubResolver{urls: map[string]string{"agent-bot": "https://cb.example.com/x"}}
	e := newEventsTestServer(disp, flows, resolver)

	body := `{
		"type": "message",
		"room": {"id": "r1", "kind": "livechat", "served_by": "agent-bot", "visitor": {"token": "v1", "username": "v1", "name": "Visitor"}},
		"sender": {"username": "v1"},
		"message": {"id": "m1", "text": "hello"}
	}`
	rec := postJSON(e, "/events", body)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204; body %s", rec.Code, rec.Body.String())
	}
	if disp.count != 1 || disp.lastURL != "https://cb.example.com/x" {
		t.Fatalf("expected one forward to callback, got count=%d url=%q", disp.count, disp.lastURL)
	}
	if flows.synced != 1 {
		t.Fatalf("expected one room field sync, got %d", flows.synced)
	}
}

func TestReceiveDroppedEventStillAccepted(t *testing.T) {
	t.Parallel()

	disp := &stubDispatcher{}
	e := newEventsTestServer(disp, &stubFlows{}, &stubResolver{})

	body := `{
		"type": "message",
		"room": {"id": "r1", "kind": "livechat", "visitor": {"token": "v1"}},
		"sender": {"username": "v1"},
		"message": {"id": "m1", "text": "hello"}
	}`
	rec := postJSON(e, "/events", body)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if disp.count != 0 {
		t.Fatal("queued room message must not be forwarded")
	}
}

func TestReceiveRoomClosedStartsFlow(t *testing.T) {
	t.Parallel()

	flows := &stubFlows{}
	e := newEventsTestServer(&stubDispatcher{}, flows, &stubResolver{})

	body := `{
		"type": "room_closed",
		"room": {"id": "r1", "kind": "livechat", "visitor": {"token": "v1"}},
		"sender": {"username": "agent-bot"},
		"closure": {"comment": "resolved"}
	}`
	rec := postJSON(e, "/events", body)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if flows.started != 1 {
		t.Fatalf("expected one flow start, got %d", flows.started)
	}
}

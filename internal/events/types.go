package events

import "strings"

// Type tags the inbound chat event union.
type Type string

const (
	TypeMessage         Type = "message"
	TypeRoomClosed      Type = "room_closed"
	TypeRoomTransferred Type = "room_transferred"
)

// RoomKind distinguishes the two supported room flavors.
type RoomKind string

const (
	RoomDirect   RoomKind = "direct"
	RoomLivechat RoomKind = "livechat"
)

const (
	roleBot           = "bot"
	roleLivechatAgent = "livechat-agent"
)

type Sender struct {
	Username string   `json:"username"`
	Name     string   `json:"name"`
	Roles    []string `json:"roles,omitempty"`
}

// HasRole reports whether the sender carries the given platform role.
func (s Sender) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type Visitor struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type Room struct {
	ID   string   `json:"id"`
	Kind RoomKind `json:"kind"`
	// Usernames lists every participant of a direct room in platform order.
	Usernames []string `json:"usernames,omitempty"`
	// ServedBy is the username of the assigned livechat agent; empty while
	// the visitor is still queued.
	ServedBy string   `json:"served_by,omitempty"`
	Visitor  *Visitor `json:"visitor,omitempty"`
}

// Counterpart returns the direct-room participant that is not the sender.
func (r Room) Counterpart(sender Sender) (string, bool) {
	for _, username := range r.Usernames {
		if username != sender.Username {
			return username, true
		}
	}
	return "", false
}

// Attachment is the host platform's message attachment metadata. Media kind
// markers are mutually exclusive; all empty means a plain document.
type Attachment struct {
	ImageType string `json:"image_type,omitempty"`
	VideoType string `json:"video_type,omitempty"`
	AudioType string `json:"audio_type,omitempty"`
	// Link is the attachment's path relative to the chat server root.
	Link string `json:"link"`
}

type MessagePayload struct {
	ID          string       `json:"id"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Event is the tagged union delivered by the host chat platform. Exactly one
// payload field is populated per Type; the rest stay nil.
type Event struct {
	Type     Type            `json:"type"`
	Room     Room            `json:"room"`
	Sender   Sender          `json:"sender"`
	Message  *MessagePayload `json:"message,omitempty"`
	Closure  map[string]any  `json:"closure,omitempty"`
	Transfer map[string]any  `json:"transfer,omitempty"`
}

// IsEmptyMessage reports whether a message event carries neither text nor
// attachments.
func (e Event) IsEmptyMessage() bool {
	if e.Message == nil {
		return true
	}
	return strings.TrimSpace(e.Message.Text) == "" && len(e.Message.Attachments) == 0
}

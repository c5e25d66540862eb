package rocketchat

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrVisitorNotFound = errors.New("visitor not found")
	ErrRoomNotFound    = errors.New("room not found")
)

type User struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type Visitor struct {
	ID       string `json:"_id"`
	Token    string `json:"token"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type Room struct {
	ID string `json:"_id"`
}

// Attachment is an outbound attachment reference as submitted by a bot:
// a media kind plus a publicly fetchable URL.
type Attachment struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// MessageAttachment is the chat platform's inline attachment shape for
// chat.postMessage. Exactly one media URL is set.
type MessageAttachment struct {
	ImageURL string `json:"image_url,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
	VideoURL string `json:"video_url,omitempty"`
}
